// Package ledger talks to the custody ledger: an external, asynchronous,
// append-only record of token ownership.
//
// Every mutating call is split into submission and confirmation. Errors are
// classified so callers can tell whether a retry could duplicate a ledger
// side effect:
//
//   - ErrNotSubmitted: nothing reached the ledger; retrying is safe.
//   - ErrUnconfirmed: a transaction may be in flight; read ownership before
//     doing anything else.
//   - ErrReverted: the ledger executed and rejected the transaction.
//   - ErrUnknownTx: the transaction is not on the ledger and can no longer
//     land; like a revert, nothing happened.
package ledger

import (
	"context"
	"errors"

	id "verichain/pkg/domain"
)

var (
	ErrNotSubmitted = errors.New("ledger: transaction not submitted")
	ErrUnconfirmed  = errors.New("ledger: transaction outcome unknown")
	ErrReverted     = errors.New("ledger: transaction reverted")
	ErrUnavailable  = errors.New("ledger: unavailable")
	ErrUnknownTx    = errors.New("ledger: unknown transaction")
)

// TxRef identifies a submitted transaction.
type TxRef string

func (r TxRef) String() string { return string(r) }

// MintReceipt is the confirmed outcome of a mint.
type MintReceipt struct {
	TokenID string
	TxRef   TxRef
}

// Ledger is the full custody ledger contract. Implementations must be safe
// for concurrent use and serialize submissions per signing account.
type Ledger interface {
	// MintToCustody submits a mint to the custody account. When it returns
	// ErrUnconfirmed the TxRef is still set and must be recorded.
	MintToCustody(ctx context.Context, metadataPointer string) (TxRef, error)
	AwaitMint(ctx context.Context, ref TxRef) (MintReceipt, error)
	// TransferCustody submits a transfer of tokenID. Same TxRef rule as MintToCustody.
	TransferCustody(ctx context.Context, tokenID string, from, to id.Address) (TxRef, error)
	AwaitTransfer(ctx context.Context, ref TxRef) error
	// OwnerOf is read-only and side-effect free.
	OwnerOf(ctx context.Context, tokenID string) (id.Address, error)
	CustodyAccount() id.Address
}

// IsRetrySafe reports whether err guarantees nothing reached the ledger.
func IsRetrySafe(err error) bool {
	return errors.Is(err, ErrNotSubmitted)
}
