// internal/blockchain/solbc/computebudget/computebudget.go
package computebudget

import (
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	cb "github.com/gagliardetto/solana-go/programs/compute-budget"
)

var ProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

const (
	RequestUnitsDeprecated uint8 = 0
	RequestHeapFrame       uint8 = 1
	SetComputeUnitLimit    uint8 = 2
	SetComputeUnitPrice    uint8 = 3
)

// DefaultUnits is the compute unit limit the runtime assumes when none is requested.
const DefaultUnits uint32 = 200_000

// Budget is a compute unit limit plus a compute unit price in micro-lamports.
type Budget struct {
	UnitLimit uint32
	UnitPrice uint64
}

// BuildInstructions returns the limit and price instructions, in that order.
func BuildInstructions(b Budget) []solana.Instruction {
	return []solana.Instruction{
		cb.NewSetComputeUnitLimitInstruction(b.UnitLimit).Build(),
		cb.NewSetComputeUnitPriceInstruction(b.UnitPrice).Build(),
	}
}

// IsComputeBudget reports whether ix targets the compute budget program.
func IsComputeBudget(ix solana.Instruction) bool {
	return ix.ProgramID().Equals(ProgramID)
}

// Strip returns a copy of ixs without compute budget instructions.
func Strip(ixs []solana.Instruction) []solana.Instruction {
	out := make([]solana.Instruction, 0, len(ixs))
	for _, ix := range ixs {
		if IsComputeBudget(ix) {
			continue
		}
		out = append(out, ix)
	}
	return out
}

// Count returns the number of compute budget instructions in ixs.
func Count(ixs []solana.Instruction) int {
	n := 0
	for _, ix := range ixs {
		if IsComputeBudget(ix) {
			n++
		}
	}
	return n
}

// Extract reads the limit and price set by the compute budget instructions in ixs.
// The last instruction of each kind wins, as in the runtime.
func Extract(ixs []solana.Instruction) (Budget, error) {
	var b Budget
	for _, ix := range ixs {
		if !IsComputeBudget(ix) {
			continue
		}
		data, err := ix.Data()
		if err != nil {
			return Budget{}, fmt.Errorf("read compute budget data: %w", err)
		}
		if len(data) == 0 {
			return Budget{}, fmt.Errorf("empty compute budget instruction")
		}
		dec := bin.NewBinDecoder(data[1:])
		switch data[0] {
		case SetComputeUnitLimit:
			units, err := dec.ReadUint32(binary.LittleEndian)
			if err != nil {
				return Budget{}, fmt.Errorf("decode unit limit: %w", err)
			}
			b.UnitLimit = units
		case SetComputeUnitPrice:
			price, err := dec.ReadUint64(binary.LittleEndian)
			if err != nil {
				return Budget{}, fmt.Errorf("decode unit price: %w", err)
			}
			b.UnitPrice = price
		}
	}
	return b, nil
}
