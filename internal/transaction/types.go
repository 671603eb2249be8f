// internal/transaction/types.go
package transaction

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/rovshanmuradov/bridgetx/internal/blockchain"
)

// Stage is a step of the submission state machine.
type Stage int

const (
	StageBuilding Stage = iota
	StageSigned
	StageSubmitted
	StageConfirming
	StageResubmitting
	StageConfirmed
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageBuilding:
		return "BUILDING"
	case StageSigned:
		return "SIGNED"
	case StageSubmitted:
		return "SUBMITTED"
	case StageConfirming:
		return "CONFIRMING"
	case StageResubmitting:
		return "RESUBMITTING"
	case StageConfirmed:
		return "CONFIRMED"
	case StageFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions follow s.
func (s Stage) Terminal() bool {
	return s == StageConfirmed || s == StageFailed
}

// Event is emitted on every stage transition.
type Event struct {
	Stage     Stage
	Signature solana.Signature
	// Resends is the number of resends issued so far.
	Resends int
	Budget  *Budget
	Err     error
	Time    time.Time
}

// Observer receives stage transitions. It is called synchronously from the
// submitting goroutine and must not block.
type Observer func(Event)

// Request is one submission.
type Request struct {
	Transaction *solana.Transaction
	// CoSigners sign before the wallet, each filling only its own slot.
	CoSigners []blockchain.Signer
	// Commitment overrides Config.Commitment when set.
	Commitment rpc.CommitmentType
}
