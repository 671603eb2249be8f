package transaction

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/bridgetx/internal/blockchain"
	"github.com/rovshanmuradov/bridgetx/internal/wallet"
)

// MockClient - мок для blockchain.Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) GetLatestAnchor(ctx context.Context, commitment rpc.CommitmentType) (blockchain.Anchor, error) {
	args := m.Called(ctx, commitment)
	return args.Get(0).(blockchain.Anchor), args.Error(1)
}

func (m *MockClient) SimulateTransaction(ctx context.Context, tx *solana.Transaction, opts blockchain.SimulateOptions) (*blockchain.SimulationResult, error) {
	args := m.Called(ctx, tx, opts)
	res, _ := args.Get(0).(*blockchain.SimulationResult)
	return res, args.Error(1)
}

func (m *MockClient) SendRawTransaction(ctx context.Context, raw []byte, opts blockchain.TransactionOptions) (solana.Signature, error) {
	args := m.Called(ctx, raw, opts)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *MockClient) ConfirmTransaction(ctx context.Context, sig solana.Signature, anchor blockchain.Anchor, commitment rpc.CommitmentType) (*blockchain.ConfirmationResult, error) {
	args := m.Called(ctx, sig, anchor, commitment)
	res, _ := args.Get(0).(*blockchain.ConfirmationResult)
	return res, args.Error(1)
}

func (m *MockClient) GetAddressLookupTable(ctx context.Context, table solana.PublicKey) (solana.PublicKeySlice, error) {
	args := m.Called(ctx, table)
	addrs, _ := args.Get(0).(solana.PublicKeySlice)
	return addrs, args.Error(1)
}

func (m *MockClient) EstimatePriorityFee(ctx context.Context, tx *solana.Transaction, percentile float64) (uint64, error) {
	args := m.Called(ctx, tx, percentile)
	return args.Get(0).(uint64), args.Error(1)
}

var testAnchor = blockchain.Anchor{
	Blockhash:            hashOf(0xab),
	LastValidBlockHeight: 500,
}

func hashOf(b byte) solana.Hash {
	var h solana.Hash
	copy(h[:], bytes.Repeat([]byte{b}, 32))
	return h
}

func newTestWallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	w, err := wallet.FromPrivateKey(key)
	require.NoError(t, err)
	return w
}

func transferIx(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	return system.NewTransferInstruction(lamports, from, to).Build()
}

func legacyTx(t *testing.T, payer solana.PublicKey, ixs ...solana.Instruction) *solana.Transaction {
	t.Helper()
	if len(ixs) == 0 {
		ixs = []solana.Instruction{transferIx(payer, solana.NewWallet().PublicKey(), 1000)}
	}
	tx, err := solana.NewTransaction(ixs, hashOf(1), solana.TransactionPayer(payer))
	require.NoError(t, err)
	return tx
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SimulationRetryDelay = time.Millisecond
	return cfg
}

// counterValue reads a counter from reg; labels are name/value pairs.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for i := 0; i+1 < len(labels); i += 2 {
				found := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == labels[i] && lp.GetValue() == labels[i+1] {
						found = true
					}
				}
				if !found {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting")
	}
	var zero T
	return zero
}
