package ledger

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	id "verichain/pkg/domain"
)

type txKind int

const (
	txMint txKind = iota
	txTransfer
)

type memTx struct {
	kind    txKind
	tokenID string
	err     error
}

// Memory is an in-process ledger simulator. Transactions execute at
// submission, like a chain that keeps going after the caller disappears;
// Await only reports the stored outcome.
type Memory struct {
	mu        sync.Mutex
	custody   id.Address
	nextToken uint64
	nonce     uint64
	owners    map[string]id.Address
	uris      map[string]string
	txs       map[TxRef]*memTx
}

type MemoryOption func(*Memory)

// WithFirstTokenID sets the id given to the first minted token. Default is 1.
func WithFirstTokenID(n uint64) MemoryOption {
	return func(m *Memory) {
		m.nextToken = n
	}
}

func NewMemory(custody id.Address, opts ...MemoryOption) *Memory {
	m := &Memory{
		custody:   custody,
		nextToken: 1,
		owners:    make(map[string]id.Address),
		uris:      make(map[string]string),
		txs:       make(map[TxRef]*memTx),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) CustodyAccount() id.Address {
	return m.custody
}

func (m *Memory) MintToCustody(ctx context.Context, metadataPointer string) (TxRef, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotSubmitted, err)
	}
	if metadataPointer == "" {
		return "", fmt.Errorf("%w: empty metadata pointer", ErrNotSubmitted)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tokenID := strconv.FormatUint(m.nextToken, 10)
	m.nextToken++
	m.owners[tokenID] = m.custody
	m.uris[tokenID] = metadataPointer

	ref := m.newRef("mint")
	m.txs[ref] = &memTx{kind: txMint, tokenID: tokenID}
	return ref, nil
}

func (m *Memory) AwaitMint(ctx context.Context, ref TxRef) (MintReceipt, error) {
	tx, err := m.await(ctx, ref, txMint)
	if err != nil {
		return MintReceipt{}, err
	}
	return MintReceipt{TokenID: tx.tokenID, TxRef: ref}, nil
}

func (m *Memory) TransferCustody(ctx context.Context, tokenID string, from, to id.Address) (TxRef, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotSubmitted, err)
	}
	if from != m.custody {
		return "", fmt.Errorf("%w: signer does not control %s", ErrNotSubmitted, from.Hex())
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ref := m.newRef("transfer")
	tx := &memTx{kind: txTransfer, tokenID: tokenID}
	owner, ok := m.owners[tokenID]
	switch {
	case !ok:
		tx.err = fmt.Errorf("%w: token %s does not exist", ErrReverted, tokenID)
	case owner != from:
		tx.err = fmt.Errorf("%w: token %s not owned by %s", ErrReverted, tokenID, from.Hex())
	default:
		m.owners[tokenID] = to
	}
	m.txs[ref] = tx
	return ref, nil
}

func (m *Memory) AwaitTransfer(ctx context.Context, ref TxRef) error {
	_, err := m.await(ctx, ref, txTransfer)
	return err
}

func (m *Memory) OwnerOf(ctx context.Context, tokenID string) (id.Address, error) {
	if err := ctx.Err(); err != nil {
		return id.Address{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.owners[tokenID]
	if !ok {
		return id.Address{}, fmt.Errorf("%w: token %s does not exist", ErrUnavailable, tokenID)
	}
	return owner, nil
}

// MetadataOf returns the pointer a token was minted with.
func (m *Memory) MetadataOf(tokenID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uri, ok := m.uris[tokenID]
	return uri, ok
}

// TransferCount returns how many transfers were submitted for tokenID.
func (m *Memory) TransferCount(tokenID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, tx := range m.txs {
		if tx.kind == txTransfer && tx.tokenID == tokenID {
			n++
		}
	}
	return n
}

// MintCount returns the number of mints submitted.
func (m *Memory) MintCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, tx := range m.txs {
		if tx.kind == txMint {
			n++
		}
	}
	return n
}

func (m *Memory) await(ctx context.Context, ref TxRef, kind txKind) (*memTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnconfirmed, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[ref]
	if !ok || tx.kind != kind {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTx, ref)
	}
	if tx.err != nil {
		return nil, tx.err
	}
	return tx, nil
}

// newRef must be called with mu held.
func (m *Memory) newRef(kind string) TxRef {
	m.nonce++
	return TxRef(crypto.Keccak256Hash([]byte(fmt.Sprintf("%s:%s:%d", kind, m.custody.Hex(), m.nonce))).Hex())
}
