package transaction

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/bridgetx/internal/blockchain/solbc/computebudget"
)

var bridgeProgram = solana.NewWallet().PublicKey()

func bridgeIx(accounts ...*solana.AccountMeta) solana.Instruction {
	return solana.NewInstruction(bridgeProgram, accounts, []byte{0x01, 0x02, 0x03})
}

func assertSameInstructions(t *testing.T, want, got []solana.Instruction) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ProgramID(), got[i].ProgramID(), "program of instruction %d", i)
		wantData, err := want[i].Data()
		require.NoError(t, err)
		gotData, err := got[i].Data()
		require.NoError(t, err)
		assert.Equal(t, wantData, gotData, "data of instruction %d", i)

		wa, ga := want[i].Accounts(), got[i].Accounts()
		require.Len(t, ga, len(wa))
		for j := range wa {
			assert.Equal(t, wa[j].PublicKey, ga[j].PublicKey)
			assert.Equal(t, wa[j].IsWritable, ga[j].IsWritable, "writable flag of %s", wa[j].PublicKey)
			assert.Equal(t, wa[j].IsSigner, ga[j].IsSigner, "signer flag of %s", wa[j].PublicKey)
		}
	}
}

func TestUnsignedIsImmutable(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	ixs := []solana.Instruction{transferIx(payer, solana.NewWallet().PublicKey(), 1)}
	u := NewUnsigned(payer, ixs, nil)

	withBudget := u.WithComputeBudget(computebudget.Budget{UnitLimit: 1000, UnitPrice: 1})
	withAnchor := u.WithAnchor(testAnchor)

	assert.Len(t, u.Instructions(), 1)
	assert.Len(t, withBudget.Instructions(), 3)
	assert.False(t, u.HasAnchor())
	assert.True(t, withAnchor.HasAnchor())

	got := u.Instructions()
	got[0] = bridgeIx()
	assert.Equal(t, solana.SystemProgramID, u.Instructions()[0].ProgramID())
}

func TestWithComputeBudgetReplacesExisting(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	transfer := transferIx(payer, solana.NewWallet().PublicKey(), 1)
	stale := computebudget.BuildInstructions(computebudget.Budget{UnitLimit: 5, UnitPrice: 5})

	for _, existing := range [][]solana.Instruction{
		nil,
		stale[:1],
		{stale[0], stale[1], stale[0]},
	} {
		ixs := append(append([]solana.Instruction(nil), existing...), transfer)
		u := NewUnsigned(payer, ixs, nil).
			WithAnchor(testAnchor).
			WithComputeBudget(computebudget.Budget{UnitLimit: 120_000, UnitPrice: 9})

		out := u.Instructions()
		assert.Equal(t, 2, computebudget.Count(out), "with %d existing", len(existing))
		require.Len(t, out, 3)
		assert.True(t, computebudget.IsComputeBudget(out[0]))
		assert.True(t, computebudget.IsComputeBudget(out[1]))
		assert.Equal(t, solana.SystemProgramID, out[2].ProgramID())

		b, err := computebudget.Extract(out)
		require.NoError(t, err)
		assert.Equal(t, computebudget.Budget{UnitLimit: 120_000, UnitPrice: 9}, b)

		assert.Equal(t, 0, computebudget.Count(u.WithoutComputeBudget().Instructions()))
	}
}

func TestLegacyRoundTrip(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()
	config := solana.NewWallet().PublicKey()
	ixs := []solana.Instruction{
		transferIx(payer, other, 42),
		bridgeIx(
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(other, true, false),
			solana.NewAccountMeta(config, false, false),
		),
	}
	original := legacyTx(t, payer, ixs...)

	u, err := Decompile(original, nil)
	require.NoError(t, err)
	assert.Equal(t, VariantLegacy, u.Variant())
	assert.Equal(t, payer, u.Payer())
	assert.Equal(t, original.Message.RecentBlockhash, u.Anchor().Blockhash)
	assertSameInstructions(t, ixs, u.Instructions())

	compiled, err := u.Compile()
	require.NoError(t, err)
	assert.False(t, compiled.Message.IsVersioned())
	assert.Equal(t, original.Message.AccountKeys, compiled.Message.AccountKeys)
	assert.Equal(t, original.Message.Header, compiled.Message.Header)
	assert.Equal(t, original.Message.Instructions, compiled.Message.Instructions)
	require.Len(t, compiled.Signatures, 1)
	assert.True(t, compiled.Signatures[0].IsZero())
}

func TestVersionedRoundTrip(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	table := solana.NewWallet().PublicKey()
	addrs := solana.PublicKeySlice{
		solana.NewWallet().PublicKey(),
		solana.NewWallet().PublicKey(),
		solana.NewWallet().PublicKey(),
	}
	tables := map[solana.PublicKey]solana.PublicKeySlice{table: addrs}

	ixs := []solana.Instruction{bridgeIx(
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(addrs[1], true, false),
		solana.NewAccountMeta(addrs[2], false, false),
	)}

	u := NewUnsigned(payer, ixs, tables).WithAnchor(testAnchor)
	assert.Equal(t, VariantVersioned, u.Variant())
	assert.True(t, u.IsCompiled())

	tx, err := u.Compile()
	require.NoError(t, err)
	require.True(t, tx.Message.IsVersioned())
	require.Len(t, tx.Message.AddressTableLookups, 1)
	lookup := tx.Message.AddressTableLookups[0]
	assert.Equal(t, table, lookup.AccountKey)
	assert.Equal(t, solana.Uint8SliceAsNum{1}, lookup.WritableIndexes)
	assert.Equal(t, solana.Uint8SliceAsNum{2}, lookup.ReadonlyIndexes)

	back, err := Decompile(tx, tables)
	require.NoError(t, err)
	assert.Equal(t, VariantVersioned, back.Variant())
	assertSameInstructions(t, ixs, back.Instructions())
	assert.Equal(t, tables, back.Tables())

	_, err = Decompile(tx, nil)
	assert.Error(t, err, "referenced table must be resolved")

	_, err = Decompile(tx, map[solana.PublicKey]solana.PublicKeySlice{table: addrs[:1]})
	assert.ErrorContains(t, err, "out of range")
}

func TestDecompileSkipsUnusedLookup(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	table := solana.NewWallet().PublicKey()
	addrs := solana.PublicKeySlice{solana.NewWallet().PublicKey()}

	tx, err := NewUnsigned(payer, []solana.Instruction{
		bridgeIx(solana.NewAccountMeta(payer, true, true), solana.NewAccountMeta(addrs[0], true, false)),
	}, map[solana.PublicKey]solana.PublicKeySlice{table: addrs}).WithAnchor(testAnchor).Compile()
	require.NoError(t, err)

	tx.Message.AddressTableLookups = append(tx.Message.AddressTableLookups, solana.MessageAddressTableLookup{
		AccountKey: solana.NewWallet().PublicKey(),
	})

	u, err := Decompile(tx, map[solana.PublicKey]solana.PublicKeySlice{table: addrs})
	require.NoError(t, err)
	assert.Len(t, u.Tables(), 1)
}

func TestVersionedWithoutLookupsStaysVersioned(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	u := NewUnsigned(payer, []solana.Instruction{transferIx(payer, solana.NewWallet().PublicKey(), 1)},
		map[solana.PublicKey]solana.PublicKeySlice{solana.NewWallet().PublicKey(): {solana.NewWallet().PublicKey()}})

	tx, err := u.WithAnchor(testAnchor).Compile()
	require.NoError(t, err)
	assert.True(t, tx.Message.IsVersioned())
	assert.Empty(t, tx.Message.AddressTableLookups)
}

func TestCompileRequiresInstructions(t *testing.T) {
	_, err := NewUnsigned(solana.NewWallet().PublicKey(), nil, nil).Compile()
	assert.Error(t, err)

	_, err = NewUnsigned(solana.PublicKey{}, []solana.Instruction{bridgeIx()}, nil).Compile()
	assert.Error(t, err)
}

func TestVariantString(t *testing.T) {
	assert.Equal(t, "legacy", VariantLegacy.String())
	assert.Equal(t, "v0", VariantVersioned.String())
}
