package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	id "verichain/pkg/domain"
)

// custodyABI is the subset of the ERC-721 credential contract we call.
const custodyABI = `[
{"type":"function","name":"safeMint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"uri","type":"string"}],"outputs":[]},
{"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
{"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}]}
]`

var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// ChainClient is the subset of *ethclient.Client the adapter needs.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// EthereumConfig configures the ERC-721 adapter.
type EthereumConfig struct {
	Contract     common.Address
	MinterKey    *ecdsa.PrivateKey
	CustodyKey   *ecdsa.PrivateKey
	PollInterval time.Duration
	// GasHeadroomPercent is added on top of the node's gas estimate.
	GasHeadroomPercent uint64
}

// Ethereum is a custody ledger backed by an ERC-721 contract. The minter
// account mints straight to the custody account; the custody account signs
// transfers to holders.
type Ethereum struct {
	client   ChainClient
	contract common.Address
	abi      abi.ABI
	chainID  *big.Int
	minter   *accountSigner
	custody  *accountSigner
	poll     time.Duration
	headroom uint64
	logger   *slog.Logger

	// sent remembers the nonce of every transaction this process signed until
	// its outcome is known, so a dropped one can be told apart from a slow one.
	sentMu sync.Mutex
	sent   map[TxRef]uint64
}

// accountSigner serializes submissions for one account so nonces are
// allocated strictly in order.
type accountSigner struct {
	mu    sync.Mutex
	key   *ecdsa.PrivateKey
	addr  common.Address
	nonce *uint64
}

func newAccountSigner(key *ecdsa.PrivateKey) *accountSigner {
	return &accountSigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

// ParsePrivateKey accepts hex keys with or without 0x.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// NewEthereum resolves the chain id once and returns a ready adapter.
func NewEthereum(ctx context.Context, client ChainClient, cfg EthereumConfig, logger *slog.Logger) (*Ethereum, error) {
	if cfg.MinterKey == nil || cfg.CustodyKey == nil {
		return nil, errors.New("ledger: minter and custody keys are required")
	}
	if cfg.Contract == (common.Address{}) {
		return nil, errors.New("ledger: contract address is required")
	}
	parsed, err := abi.JSON(strings.NewReader(custodyABI))
	if err != nil {
		return nil, fmt.Errorf("parse custody abi: %w", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	headroom := cfg.GasHeadroomPercent
	if headroom == 0 {
		headroom = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ethereum{
		client:   client,
		contract: cfg.Contract,
		abi:      parsed,
		chainID:  chainID,
		minter:   newAccountSigner(cfg.MinterKey),
		custody:  newAccountSigner(cfg.CustodyKey),
		poll:     poll,
		headroom: headroom,
		logger:   logger,
		sent:     make(map[TxRef]uint64),
	}, nil
}

func (e *Ethereum) CustodyAccount() id.Address {
	return e.custody.addr
}

func (e *Ethereum) MintToCustody(ctx context.Context, metadataPointer string) (TxRef, error) {
	data, err := e.abi.Pack("safeMint", e.custody.addr, metadataPointer)
	if err != nil {
		return "", fmt.Errorf("%w: pack safeMint: %w", ErrNotSubmitted, err)
	}
	return e.submit(ctx, e.minter, data)
}

func (e *Ethereum) AwaitMint(ctx context.Context, ref TxRef) (MintReceipt, error) {
	receipt, err := e.await(ctx, ref, e.minter)
	if err != nil {
		return MintReceipt{}, err
	}
	tokenID, ok := e.mintedTokenID(receipt)
	if !ok {
		return MintReceipt{}, fmt.Errorf("%w: no mint Transfer event in %s", ErrReverted, ref)
	}
	return MintReceipt{TokenID: tokenID, TxRef: ref}, nil
}

func (e *Ethereum) TransferCustody(ctx context.Context, tokenID string, from, to id.Address) (TxRef, error) {
	if from != e.custody.addr {
		return "", fmt.Errorf("%w: custody signer is %s, not %s", ErrNotSubmitted, e.custody.addr.Hex(), from.Hex())
	}
	token, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return "", fmt.Errorf("%w: invalid token id %q", ErrNotSubmitted, tokenID)
	}
	data, err := e.abi.Pack("transferFrom", from, to, token)
	if err != nil {
		return "", fmt.Errorf("%w: pack transferFrom: %w", ErrNotSubmitted, err)
	}
	return e.submit(ctx, e.custody, data)
}

func (e *Ethereum) AwaitTransfer(ctx context.Context, ref TxRef) error {
	_, err := e.await(ctx, ref, e.custody)
	return err
}

func (e *Ethereum) OwnerOf(ctx context.Context, tokenID string) (id.Address, error) {
	token, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return id.Address{}, fmt.Errorf("%w: invalid token id %q", ErrUnavailable, tokenID)
	}
	data, err := e.abi.Pack("ownerOf", token)
	if err != nil {
		return id.Address{}, fmt.Errorf("%w: pack ownerOf: %w", ErrUnavailable, err)
	}
	out, err := e.client.CallContract(ctx, ethereum.CallMsg{To: &e.contract, Data: data}, nil)
	if err != nil {
		return id.Address{}, fmt.Errorf("%w: ownerOf: %w", ErrUnavailable, err)
	}
	values, err := e.abi.Unpack("ownerOf", out)
	if err != nil || len(values) != 1 {
		return id.Address{}, fmt.Errorf("%w: decode ownerOf: %v", ErrUnavailable, err)
	}
	owner, ok := values[0].(common.Address)
	if !ok {
		return id.Address{}, fmt.Errorf("%w: unexpected ownerOf type %T", ErrUnavailable, values[0])
	}
	return owner, nil
}

// submit signs and sends one transaction from signer. The transaction hash is
// known before sending, so a send that times out still yields a TxRef with
// ErrUnconfirmed.
func (e *Ethereum) submit(ctx context.Context, signer *accountSigner, data []byte) (TxRef, error) {
	signer.mu.Lock()
	defer signer.mu.Unlock()

	if signer.nonce == nil {
		n, err := e.client.PendingNonceAt(ctx, signer.addr)
		if err != nil {
			return "", fmt.Errorf("%w: fetch nonce: %w", ErrNotSubmitted, err)
		}
		signer.nonce = &n
	}

	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: gas price: %w", ErrNotSubmitted, err)
	}
	gas, err := e.client.EstimateGas(ctx, ethereum.CallMsg{From: signer.addr, To: &e.contract, Data: data})
	if err != nil {
		// Estimation executes the call, so a revert here means the ledger
		// would reject it. Nothing was sent.
		return "", fmt.Errorf("%w: estimate gas: %w", ErrNotSubmitted, err)
	}
	gas += gas * e.headroom / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    *signer.nonce,
		To:       &e.contract,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(e.chainID), signer.key)
	if err != nil {
		return "", fmt.Errorf("%w: sign: %w", ErrNotSubmitted, err)
	}
	ref := TxRef(signed.Hash().Hex())
	e.track(ref, signed.Nonce())

	if err := e.client.SendTransaction(ctx, signed); err != nil {
		// Either way the next submission re-reads the pending nonce. Bumping
		// locally would leave a gap the node queues behind forever when this
		// transaction never arrived.
		signer.nonce = nil
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			e.logger.WarnContext(ctx, "ledger send outcome unknown",
				"tx_ref", ref.String(),
				"account", signer.addr.Hex(),
				"error", err,
			)
			return ref, fmt.Errorf("%w: send: %w", ErrUnconfirmed, err)
		}
		e.forget(ref)
		return "", fmt.Errorf("%w: send: %w", ErrNotSubmitted, err)
	}
	*signer.nonce++
	return ref, nil
}

// await polls for the receipt until ctx is done. Running out of time is
// ErrUnconfirmed, never a failure: the transaction may still land. A
// transaction whose nonce was consumed by another one can never land and is
// ErrUnknownTx.
func (e *Ethereum) await(ctx context.Context, ref TxRef, signer *accountSigner) (*types.Receipt, error) {
	hash := common.HexToHash(ref.String())
	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()

	for {
		receipt, err := e.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			e.forget(ref)
			if receipt.Status != types.ReceiptStatusSuccessful {
				return nil, fmt.Errorf("%w: %s", ErrReverted, ref)
			}
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			if e.dropped(ctx, ref, hash, signer) {
				// The nonce check raced a block: look once more before giving up.
				if late, err := e.client.TransactionReceipt(ctx, hash); err == nil && late != nil {
					continue
				}
				e.forget(ref)
				e.logger.WarnContext(ctx, "ledger transaction dropped",
					"tx_ref", ref.String(),
					"account", signer.addr.Hex(),
				)
				return nil, fmt.Errorf("%w: %s was dropped", ErrUnknownTx, ref)
			}
		case err != nil:
			e.logger.WarnContext(ctx, "ledger receipt lookup failed",
				"tx_ref", ref.String(),
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrUnconfirmed, ref, ctx.Err())
		case <-ticker.C:
		}
	}
}

// dropped reports whether a transaction without a receipt can no longer be
// mined. That holds when the account's confirmed nonce has moved past the
// transaction's nonce, or, for a transaction signed before a restart, when the
// node has never seen it and holds nothing pending for the account.
// Lookup failures answer false.
func (e *Ethereum) dropped(ctx context.Context, ref TxRef, hash common.Hash, signer *accountSigner) bool {
	confirmed, err := e.client.NonceAt(ctx, signer.addr, nil)
	if err != nil {
		return false
	}
	if nonce, ok := e.nonceOf(ref); ok {
		return confirmed > nonce
	}

	tx, _, err := e.client.TransactionByHash(ctx, hash)
	if err == nil {
		return confirmed > tx.Nonce()
	}
	if !errors.Is(err, ethereum.NotFound) {
		return false
	}
	pending, err := e.client.PendingNonceAt(ctx, signer.addr)
	return err == nil && pending == confirmed
}

func (e *Ethereum) track(ref TxRef, nonce uint64) {
	e.sentMu.Lock()
	defer e.sentMu.Unlock()
	e.sent[ref] = nonce
}

func (e *Ethereum) forget(ref TxRef) {
	e.sentMu.Lock()
	defer e.sentMu.Unlock()
	delete(e.sent, ref)
}

func (e *Ethereum) nonceOf(ref TxRef) (uint64, bool) {
	e.sentMu.Lock()
	defer e.sentMu.Unlock()
	n, ok := e.sent[ref]
	return n, ok
}

// mintedTokenID finds the Transfer(0x0, custody, tokenId) log emitted by our contract.
func (e *Ethereum) mintedTokenID(receipt *types.Receipt) (string, bool) {
	for _, lg := range receipt.Logs {
		if lg.Address != e.contract || len(lg.Topics) != 4 || lg.Topics[0] != transferTopic {
			continue
		}
		if common.BytesToAddress(lg.Topics[1].Bytes()) != (common.Address{}) {
			continue
		}
		return new(big.Int).SetBytes(lg.Topics[3].Bytes()).String(), true
	}
	return "", false
}
