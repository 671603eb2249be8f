// internal/blockchain/blockchain.go
package blockchain

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	// ErrAccountNotFound is returned when a requested on-chain account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrBlockHeightExceeded is returned by a confirmation watch once the block height
	// has passed the anchor's last valid block height.
	ErrBlockHeightExceeded = errors.New("block height exceeded")
)

// Client определяет сетевые операции, которые нужны отправителю транзакций.
type Client interface {
	// GetLatestAnchor fetches a recent blockhash and its last valid block height.
	GetLatestAnchor(ctx context.Context, commitment rpc.CommitmentType) (Anchor, error)
	// SimulateTransaction runs the transaction against the current bank state.
	SimulateTransaction(ctx context.Context, tx *solana.Transaction, opts SimulateOptions) (*SimulationResult, error)
	// SendRawTransaction submits already signed wire bytes.
	SendRawTransaction(ctx context.Context, raw []byte, opts TransactionOptions) (solana.Signature, error)
	// ConfirmTransaction blocks until the signature reaches commitment, or fails with
	// ErrBlockHeightExceeded once the anchor is no longer valid.
	ConfirmTransaction(ctx context.Context, sig solana.Signature, anchor Anchor, commitment rpc.CommitmentType) (*ConfirmationResult, error)
	// GetAddressLookupTable returns the addresses stored in a lookup table,
	// or ErrAccountNotFound.
	GetAddressLookupTable(ctx context.Context, table solana.PublicKey) (solana.PublicKeySlice, error)
	// EstimatePriorityFee returns a compute unit price in micro-lamports picked at
	// the given percentile of recent prioritization fees.
	EstimatePriorityFee(ctx context.Context, tx *solana.Transaction, percentile float64) (uint64, error)
}

// Signer signs transactions on behalf of a wallet. Signing may involve out-of-band
// interaction, so it can block for an arbitrary amount of time.
type Signer interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
}
