// internal/transaction/unsigned.go
package transaction

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/bridgetx/internal/blockchain"
	"github.com/rovshanmuradov/bridgetx/internal/blockchain/solbc"
	"github.com/rovshanmuradov/bridgetx/internal/blockchain/solbc/computebudget"
)

// Variant is the wire format of a message.
type Variant int

const (
	VariantLegacy Variant = iota
	VariantVersioned
)

func (v Variant) String() string {
	if v == VariantVersioned {
		return "v0"
	}
	return "legacy"
}

// Unsigned is an immutable unsigned transaction. Every With* method returns a
// new value and leaves the receiver untouched.
type Unsigned struct {
	payer        solana.PublicKey
	instructions []solana.Instruction
	anchor       blockchain.Anchor
	tables       map[solana.PublicKey]solana.PublicKeySlice
	variant      Variant
}

// NewUnsigned builds a legacy transaction, or a v0 one when tables are given.
func NewUnsigned(
	payer solana.PublicKey,
	instructions []solana.Instruction,
	tables map[solana.PublicKey]solana.PublicKeySlice,
) Unsigned {
	u := Unsigned{
		payer:        payer,
		instructions: append([]solana.Instruction(nil), instructions...),
		variant:      VariantLegacy,
	}
	if len(tables) > 0 {
		u.variant = VariantVersioned
		u.tables = copyTables(tables)
	}
	return u
}

// Decompile turns a wire transaction back into an instruction list. For a v0
// message every lookup table an index points into must be present in tables.
// Existing signatures are discarded.
func Decompile(tx *solana.Transaction, tables map[solana.PublicKey]solana.PublicKeySlice) (Unsigned, error) {
	if tx == nil {
		return Unsigned{}, fmt.Errorf("nil transaction")
	}
	msg := &tx.Message
	numStatic := len(msg.AccountKeys)
	if msg.IsResolved() {
		// Resolved lookups are appended to AccountKeys.
		numStatic -= msg.NumLookups()
	}
	if numStatic <= 0 {
		return Unsigned{}, fmt.Errorf("message has no account keys")
	}

	keys := make([]solana.PublicKey, 0, numStatic)
	writable := make([]bool, 0, numStatic)
	signer := make([]bool, 0, numStatic)
	for i, key := range msg.AccountKeys[:numStatic] {
		keys = append(keys, key)
		writable = append(writable, solbc.IsStaticWritable(msg.Header, numStatic, i))
		signer = append(signer, i < int(msg.Header.NumRequiredSignatures))
	}

	variant := VariantLegacy
	var used map[solana.PublicKey]solana.PublicKeySlice
	if msg.IsVersioned() {
		variant = VariantVersioned
		used = make(map[solana.PublicKey]solana.PublicKeySlice, len(msg.AddressTableLookups))

		// Writable lookups of all tables come first, then readonly ones.
		for _, pass := range []bool{true, false} {
			for _, lookup := range msg.AddressTableLookups {
				indexes := lookup.ReadonlyIndexes
				if pass {
					indexes = lookup.WritableIndexes
				}
				if len(indexes) == 0 {
					continue
				}
				addrs, ok := tables[lookup.AccountKey]
				if !ok {
					return Unsigned{}, fmt.Errorf("lookup table %s not resolved", lookup.AccountKey)
				}
				used[lookup.AccountKey] = addrs
				for _, idx := range indexes {
					if int(idx) >= len(addrs) {
						return Unsigned{}, fmt.Errorf("lookup table %s: index %d out of range (%d)",
							lookup.AccountKey, idx, len(addrs))
					}
					keys = append(keys, addrs[idx])
					writable = append(writable, pass)
					signer = append(signer, false)
				}
			}
		}
	}

	instructions := make([]solana.Instruction, 0, len(msg.Instructions))
	for n, ci := range msg.Instructions {
		if int(ci.ProgramIDIndex) >= len(keys) {
			return Unsigned{}, fmt.Errorf("instruction %d: program index %d out of range", n, ci.ProgramIDIndex)
		}
		metas := make(solana.AccountMetaSlice, 0, len(ci.Accounts))
		for _, idx := range ci.Accounts {
			if int(idx) >= len(keys) {
				return Unsigned{}, fmt.Errorf("instruction %d: account index %d out of range", n, idx)
			}
			metas = append(metas, solana.NewAccountMeta(keys[idx], writable[idx], signer[idx]))
		}
		data := append([]byte(nil), ci.Data...)
		instructions = append(instructions, solana.NewInstruction(keys[ci.ProgramIDIndex], metas, data))
	}

	return Unsigned{
		payer:        msg.AccountKeys[0],
		instructions: instructions,
		anchor:       blockchain.Anchor{Blockhash: msg.RecentBlockhash},
		tables:       used,
		variant:      variant,
	}, nil
}

func (u Unsigned) Payer() solana.PublicKey { return u.payer }

func (u Unsigned) Variant() Variant { return u.variant }

func (u Unsigned) Anchor() blockchain.Anchor { return u.anchor }

// Instructions returns a copy of the instruction list.
func (u Unsigned) Instructions() []solana.Instruction {
	return append([]solana.Instruction(nil), u.instructions...)
}

// Tables returns a copy of the lookup tables the message is compiled against.
func (u Unsigned) Tables() map[solana.PublicKey]solana.PublicKeySlice {
	return copyTables(u.tables)
}

func (u Unsigned) HasAnchor() bool { return !u.anchor.IsZero() }

// SupportsComputeBudget is true for both variants.
func (u Unsigned) SupportsComputeBudget() bool { return true }

func (u Unsigned) IsCompiled() bool { return u.variant == VariantVersioned }

// WithAnchor sets the blockhash and its expiry height.
func (u Unsigned) WithAnchor(a blockchain.Anchor) Unsigned {
	u.anchor = a
	return u
}

// WithoutComputeBudget removes every compute budget instruction.
func (u Unsigned) WithoutComputeBudget() Unsigned {
	u.instructions = computebudget.Strip(u.instructions)
	return u
}

// WithComputeBudget replaces all compute budget instructions with the limit and
// price pair at the head of the list.
func (u Unsigned) WithComputeBudget(b computebudget.Budget) Unsigned {
	rest := computebudget.Strip(u.instructions)
	ixs := make([]solana.Instruction, 0, len(rest)+2)
	ixs = append(ixs, computebudget.BuildInstructions(b)...)
	u.instructions = append(ixs, rest...)
	return u
}

// Compile produces the wire transaction with zeroed signature slots.
func (u Unsigned) Compile() (*solana.Transaction, error) {
	if len(u.instructions) == 0 {
		return nil, fmt.Errorf("no instructions")
	}
	if u.payer.IsZero() {
		return nil, fmt.Errorf("no fee payer")
	}

	opts := []solana.TransactionOption{solana.TransactionPayer(u.payer)}
	if u.variant == VariantVersioned && len(u.tables) > 0 {
		opts = append(opts, solana.TransactionAddressTables(copyTables(u.tables)))
	}

	tx, err := solana.NewTransaction(u.instructions, u.anchor.Blockhash, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile %s message: %w", u.variant, err)
	}
	if u.variant == VariantVersioned && !tx.Message.IsVersioned() {
		tx.Message.SetVersion(solana.MessageVersionV0)
	}
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	return tx, nil
}

func copyTables(in map[solana.PublicKey]solana.PublicKeySlice) map[solana.PublicKey]solana.PublicKeySlice {
	if in == nil {
		return nil
	}
	out := make(map[solana.PublicKey]solana.PublicKeySlice, len(in))
	for k, v := range in {
		out[k] = append(solana.PublicKeySlice(nil), v...)
	}
	return out
}
