package transaction

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", &Error{Kind: KindSubmit, Op: "send transaction", Err: base})

	assert.True(t, IsKind(err, KindSubmit))
	assert.False(t, IsKind(err, KindExpired))
	assert.Equal(t, KindSubmit, KindOf(err))
	assert.Equal(t, Kind(0), KindOf(base))
	assert.ErrorIs(t, err, base)
	assert.True(t, errors.Is(err, &Error{Kind: KindSubmit}))
	assert.False(t, errors.Is(err, &Error{Kind: KindSign}))
}

func TestErrorMessage(t *testing.T) {
	e := &Error{
		Kind: KindSimulation,
		Op:   "simulate transaction",
		Err:  errors.New("simulation failed"),
		Logs: []string{"Program log: first", "Program log: second"},
	}
	msg := e.Error()
	assert.Contains(t, msg, "simulation: simulate transaction: simulation failed")
	assert.Contains(t, msg, "Program log: first\n  Program log: second")
	assert.Equal(t, "expired", KindExpired.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
