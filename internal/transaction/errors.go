// internal/transaction/errors.go
package transaction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Kind classifies a fatal submission failure.
type Kind int

const (
	// KindPrecondition: no signer, no network client or no transaction.
	KindPrecondition Kind = iota + 1
	// KindSimulation: simulation failed with a non-retryable error.
	KindSimulation
	// KindBuild: anchor, lookup table or message assembly failed.
	KindBuild
	// KindSign: a signer failed or the signed transaction is invalid.
	KindSign
	// KindSubmit: the first submission was rejected.
	KindSubmit
	// KindExpired: the anchor expired before confirmation.
	KindExpired
	// KindExecution: the transaction landed but failed on chain.
	KindExecution
	// KindConfirm: the confirmation watch failed or was cancelled.
	KindConfirm
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindSimulation:
		return "simulation"
	case KindBuild:
		return "build"
	case KindSign:
		return "sign"
	case KindSubmit:
		return "submit"
	case KindExpired:
		return "expired"
	case KindExecution:
		return "execution"
	case KindConfirm:
		return "confirm"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the single failure type returned by the submitter and the estimator.
type Error struct {
	Kind Kind
	Op   string
	Err  error
	// Detail holds the raw simulation or on-chain error payload, if any.
	Detail interface{}
	// Logs is the full simulation log sequence for KindSimulation.
	Logs []string
	// Signature is set once the transaction has been signed.
	Signature solana.Signature
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if !e.Signature.IsZero() {
		fmt.Fprintf(&b, " (signature %s)", e.Signature)
	}
	if len(e.Logs) > 0 {
		b.WriteString("\nLogs:\n  ")
		b.WriteString(strings.Join(e.Logs, "\n  "))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: KindExpired}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Err == nil
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == k
}

// KindOf returns the kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// withSignature attaches sig to err if it is an *Error.
func withSignature(err error, sig solana.Signature) error {
	var e *Error
	if errors.As(err, &e) && e.Signature.IsZero() {
		e.Signature = sig
	}
	return err
}
