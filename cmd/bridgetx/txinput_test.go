package main

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsignedTransfer(t *testing.T) *solana.Transaction {
	t.Helper()
	payer := solana.NewWallet().PublicKey()
	ix := system.NewTransferInstruction(1000, payer, solana.NewWallet().PublicKey()).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{1}, solana.TransactionPayer(payer))
	require.NoError(t, err)
	return tx
}

func TestDecodeTransaction(t *testing.T) {
	tx := unsignedTransfer(t)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
	}{
		{"base64", base64.StdEncoding.EncodeToString(raw)},
		{"base64 with newline", base64.StdEncoding.EncodeToString(raw) + "\n"},
		{"base58", base58.Encode(raw)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeTransaction([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tx.Message.AccountKeys, got.Message.AccountKeys)
			assert.Equal(t, tx.Message.RecentBlockhash, got.Message.RecentBlockhash)
			assert.Len(t, got.Message.Instructions, 1)
		})
	}
}

func TestDecodeTransactionErrors(t *testing.T) {
	_, err := decodeTransaction([]byte("   "))
	assert.ErrorContains(t, err, "empty")

	_, err = decodeTransaction([]byte("not a transaction!"))
	assert.ErrorContains(t, err, "neither base64 nor base58")

	_, err = decodeTransaction([]byte(base64.StdEncoding.EncodeToString([]byte{1, 2})))
	assert.Error(t, err)
}

func TestReadTransaction(t *testing.T) {
	tx := unsignedTransfer(t)
	encoded, err := encodeBase64(tx)
	require.NoError(t, err)

	got, err := readTransaction("-", strings.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, tx.Message.AccountKeys, got.Message.AccountKeys)

	path := filepath.Join(t.TempDir(), "tx.b64")
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0600))
	got, err = readTransaction(path, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, tx.Message.RecentBlockhash, got.Message.RecentBlockhash)

	_, err = readTransaction(filepath.Join(t.TempDir(), "missing"), nil)
	assert.ErrorContains(t, err, "read transaction")
}
