// internal/transaction/validator.go
package transaction

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

var (
	ErrInvalidSignature   = errors.New("invalid transaction signature")
	ErrInvalidBlockhash   = errors.New("invalid blockhash")
	ErrInvalidInstruction = errors.New("invalid instruction")
)

// Validator проверяет подписанную транзакцию перед отправкой.
type Validator struct {
	logger *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{
		logger: logger.Named("tx-validator"),
	}
}

func (v *Validator) ValidateTransaction(tx *solana.Transaction) error {
	if err := v.ValidateBlockhash(tx); err != nil {
		return err
	}

	if err := v.ValidateInstructions(tx.Message.Instructions); err != nil {
		return err
	}

	return v.ValidateSignatures(tx)
}

// ValidateSignatures checks that every required signer slot holds a valid signature.
func (v *Validator) ValidateSignatures(tx *solana.Transaction) error {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if required == 0 || len(tx.Signatures) != required {
		return fmt.Errorf("%w: have %d signatures, need %d", ErrInvalidSignature, len(tx.Signatures), required)
	}
	if len(tx.Message.AccountKeys) < required {
		return fmt.Errorf("%w: %d signers but %d account keys", ErrInvalidSignature, required, len(tx.Message.AccountKeys))
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	for i := 0; i < required; i++ {
		signer := tx.Message.AccountKeys[i]
		if tx.Signatures[i].IsZero() {
			return fmt.Errorf("%w: missing signature for %s", ErrInvalidSignature, signer)
		}
		if !tx.Signatures[i].Verify(signer, msg) {
			v.logger.Debug("Signature does not verify", zap.String("signer", signer.String()))
			return fmt.Errorf("%w: bad signature for %s", ErrInvalidSignature, signer)
		}
	}
	return nil
}

func (v *Validator) ValidateBlockhash(tx *solana.Transaction) error {
	if tx.Message.RecentBlockhash.IsZero() {
		return ErrInvalidBlockhash
	}
	return nil
}

func (v *Validator) ValidateInstructions(instructions []solana.CompiledInstruction) error {
	if len(instructions) == 0 {
		return ErrInvalidInstruction
	}
	return nil
}
