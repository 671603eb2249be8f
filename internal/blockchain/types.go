// internal/blockchain/types.go
package blockchain

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Anchor binds a transaction to a submission window.
type Anchor struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// IsZero reports whether the anchor carries no blockhash.
func (a Anchor) IsZero() bool {
	return a.Blockhash.IsZero()
}

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
	// MaxRetries is passed to the node as is; nil leaves the node default.
	MaxRetries *uint
}

// SimulateOptions controls a simulateTransaction call.
type SimulateOptions struct {
	Commitment             rpc.CommitmentType
	SigVerify              bool
	ReplaceRecentBlockhash bool
}

// SimulationResult представляет результат симуляции транзакции.
type SimulationResult struct {
	Err           interface{}
	Logs          []string
	UnitsConsumed *uint64
}

// ConfirmationResult is what a confirmation watch resolves to. Err holds the
// on-chain execution error, if any.
type ConfirmationResult struct {
	Slot uint64
	Err  interface{}
}
