package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bridgetx/internal/blockchain"
	"github.com/rovshanmuradov/bridgetx/internal/blockchain/solbc/computebudget"
	"github.com/rovshanmuradov/bridgetx/internal/wallet"
)

type sendResult struct {
	sig solana.Signature
	err error
}

type fixture struct {
	t         *testing.T
	client    *MockClient
	wallet    *wallet.Wallet
	clock     *clock.Mock
	reg       *prometheus.Registry
	submitter *Submitter

	// sends receives the raw bytes of every submission.
	sends chan []byte
	// release unblocks the confirmation watch.
	release chan struct{}

	mu     sync.Mutex
	events []Event
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		client:  new(MockClient),
		wallet:  newTestWallet(t),
		clock:   clock.NewMock(),
		reg:     prometheus.NewRegistry(),
		sends:   make(chan []byte, 32),
		release: make(chan struct{}),
	}
	f.submitter = NewSubmitter(f.client, f.wallet, cfg, zap.NewNop(),
		WithClock(f.clock),
		WithMetrics(NewMetrics(f.reg)),
		WithObserver(func(ev Event) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.events = append(f.events, ev)
		}),
	)
	return f
}

func (f *fixture) expectBuild(consumed, price uint64) {
	f.client.On("GetLatestAnchor", mock.Anything, mock.Anything).Return(testAnchor, nil)
	f.client.On("SimulateTransaction", mock.Anything, mock.Anything, mock.Anything).
		Return(&blockchain.SimulationResult{UnitsConsumed: units(consumed)}, nil)
	f.client.On("EstimatePriorityFee", mock.Anything, mock.Anything, mock.Anything).Return(price, nil)
}

func (f *fixture) expectSend(err error) {
	f.client.On("SendRawTransaction", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			f.sends <- args.Get(1).([]byte)
		}).
		Return(solana.Signature{}, err)
}

// expectConfirm makes the watch resolve to res/err once release is closed.
func (f *fixture) expectConfirm(res *blockchain.ConfirmationResult, err error) {
	f.client.On("ConfirmTransaction", mock.Anything, mock.Anything, testAnchor, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			select {
			case <-f.release:
			case <-ctx.Done():
			}
		}).
		Return(res, err)
}

func (f *fixture) start(req Request) <-chan sendResult {
	out := make(chan sendResult, 1)
	go func() {
		sig, err := f.submitter.SignAndSend(context.Background(), req)
		out <- sendResult{sig: sig, err: err}
	}()
	return out
}

func (f *fixture) tick() {
	f.clock.Add(DefaultResendInterval)
}

func (f *fixture) stages() []Stage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Stage, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Stage)
	}
	return out
}

func (f *fixture) event(stage Stage) (Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.Stage == stage {
			return ev, true
		}
	}
	return Event{}, false
}

func decodeRaw(t *testing.T, raw []byte) *solana.Transaction {
	t.Helper()
	tx, err := solana.TransactionFromBytes(raw)
	require.NoError(t, err)
	return tx
}

func TestSignAndSendConfirmsWithBudget(t *testing.T) {
	f := newFixture(t, testConfig())
	f.expectBuild(100_000, 5000)
	f.expectSend(nil)
	f.expectConfirm(&blockchain.ConfirmationResult{Slot: 10}, nil)
	close(f.release)

	res := recv(t, f.start(Request{Transaction: legacyTx(t, f.wallet.PublicKey())}))
	require.NoError(t, res.err)
	assert.False(t, res.sig.IsZero())

	raw := recv(t, f.sends)
	tx := decodeRaw(t, raw)
	assert.Equal(t, res.sig, tx.Signatures[0])
	assert.Equal(t, testAnchor.Blockhash, tx.Message.RecentBlockhash)

	u, err := Decompile(tx, nil)
	require.NoError(t, err)
	ixs := u.Instructions()
	require.Len(t, ixs, 3)
	assert.True(t, computebudget.IsComputeBudget(ixs[0]))
	assert.True(t, computebudget.IsComputeBudget(ixs[1]))
	b, err := computebudget.Extract(ixs)
	require.NoError(t, err)
	assert.Equal(t, computebudget.Budget{UnitLimit: 120_000, UnitPrice: 5000}, b)

	assert.Equal(t, []Stage{StageBuilding, StageSigned, StageSubmitted, StageConfirming, StageConfirmed}, f.stages())
	signed, ok := f.event(StageSigned)
	require.True(t, ok)
	require.NotNil(t, signed.Budget)
	assert.Equal(t, uint32(120_000), signed.Budget.UnitLimit)

	f.client.AssertCalled(t, "SendRawTransaction", mock.Anything, mock.Anything, mock.MatchedBy(func(o blockchain.TransactionOptions) bool {
		return o.SkipPreflight && o.MaxRetries != nil && *o.MaxRetries == 0 && o.PreflightCommitment == DefaultCommitment
	}))
	assert.Equal(t, float64(1), counterValue(t, f.reg, "bridgetx_tx_outcomes_total", "outcome", "confirmed"))
}

func TestSignAndSendReplacesExistingComputeBudget(t *testing.T) {
	stale := computebudget.BuildInstructions(computebudget.Budget{UnitLimit: 1, UnitPrice: 1})
	for _, existing := range [][]solana.Instruction{nil, stale[1:], {stale[0], stale[1], stale[1]}} {
		t.Run(fmt.Sprintf("%d existing", len(existing)), func(t *testing.T) {
			f := newFixture(t, testConfig())
			f.expectBuild(30_000, 10)
			f.expectSend(nil)
			f.expectConfirm(&blockchain.ConfirmationResult{Slot: 1}, nil)
			close(f.release)

			payer := f.wallet.PublicKey()
			ixs := append(append([]solana.Instruction(nil), existing...),
				transferIx(payer, solana.NewWallet().PublicKey(), 5))

			res := recv(t, f.start(Request{Transaction: legacyTx(t, payer, ixs...)}))
			require.NoError(t, res.err)

			u, err := Decompile(decodeRaw(t, recv(t, f.sends)), nil)
			require.NoError(t, err)
			out := u.Instructions()
			assert.Equal(t, 2, computebudget.Count(out))
			assert.True(t, computebudget.IsComputeBudget(out[0]))
			assert.True(t, computebudget.IsComputeBudget(out[1]))
			b, err := computebudget.Extract(out)
			require.NoError(t, err)
			assert.Equal(t, uint32(36_000), b.UnitLimit)
		})
	}
}

func TestSignAndSendResendsUntilConfirmed(t *testing.T) {
	f := newFixture(t, testConfig())
	f.expectBuild(100_000, 1)
	f.expectSend(nil)
	f.expectConfirm(&blockchain.ConfirmationResult{Slot: 99}, nil)

	done := f.start(Request{Transaction: legacyTx(t, f.wallet.PublicKey())})

	first := recv(t, f.sends)
	f.tick()
	assert.Equal(t, first, recv(t, f.sends), "resend carries identical bytes")
	f.tick()
	assert.Equal(t, first, recv(t, f.sends))
	close(f.release)

	res := recv(t, done)
	require.NoError(t, res.err)
	f.client.AssertNumberOfCalls(t, "SendRawTransaction", 3)

	assert.Equal(t, []Stage{
		StageBuilding, StageSigned, StageSubmitted, StageConfirming,
		StageResubmitting, StageConfirming,
		StageResubmitting, StageConfirming,
		StageConfirmed,
	}, f.stages())
	assert.Equal(t, float64(2), counterValue(t, f.reg, "bridgetx_tx_resends_total"))
	assert.Equal(t, float64(1), counterValue(t, f.reg, "bridgetx_tx_submissions_total"))
}

func TestSignAndSendExpires(t *testing.T) {
	f := newFixture(t, testConfig())
	f.expectBuild(100_000, 1)
	f.expectSend(nil)
	f.expectConfirm(nil, fmt.Errorf("signature: %w", blockchain.ErrBlockHeightExceeded))

	done := f.start(Request{Transaction: legacyTx(t, f.wallet.PublicKey())})
	recv(t, f.sends)
	f.tick()
	recv(t, f.sends)
	close(f.release)

	res := recv(t, done)
	require.Error(t, res.err)
	assert.True(t, res.sig.IsZero())
	assert.True(t, errors.Is(res.err, &Error{Kind: KindExpired}))
	assert.ErrorIs(t, res.err, blockchain.ErrBlockHeightExceeded)

	var txErr *Error
	require.ErrorAs(t, res.err, &txErr)
	assert.False(t, txErr.Signature.IsZero(), "failure carries the signature")

	// The ticker is stopped once the submission settles.
	f.tick()
	f.tick()
	f.client.AssertNumberOfCalls(t, "SendRawTransaction", 2)

	failed, ok := f.event(StageFailed)
	require.True(t, ok)
	assert.Equal(t, txErr.Signature, failed.Signature)
	assert.Equal(t, float64(1), counterValue(t, f.reg, "bridgetx_tx_outcomes_total", "outcome", "expired"))
}

func TestSignAndSendResendFailuresAreSwallowed(t *testing.T) {
	f := newFixture(t, testConfig())
	f.expectBuild(100_000, 1)
	f.client.On("SendRawTransaction", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { f.sends <- args.Get(1).([]byte) }).
		Return(solana.Signature{}, nil).Once()
	f.client.On("SendRawTransaction", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { f.sends <- args.Get(1).([]byte) }).
		Return(solana.Signature{}, errors.New("503 service unavailable"))
	f.expectConfirm(&blockchain.ConfirmationResult{Slot: 3}, nil)

	done := f.start(Request{Transaction: legacyTx(t, f.wallet.PublicKey())})
	recv(t, f.sends)
	f.tick()
	recv(t, f.sends)
	close(f.release)

	require.NoError(t, recv(t, done).err)
	assert.Equal(t, float64(1), counterValue(t, f.reg, "bridgetx_tx_resend_failures_total"))
}

func TestSignAndSendResendCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxResends = 1
	f := newFixture(t, cfg)
	f.expectBuild(100_000, 1)
	f.expectSend(nil)
	f.expectConfirm(&blockchain.ConfirmationResult{Slot: 3}, nil)

	done := f.start(Request{Transaction: legacyTx(t, f.wallet.PublicKey())})
	recv(t, f.sends)
	f.tick()
	recv(t, f.sends)
	f.tick()
	f.tick()
	close(f.release)

	require.NoError(t, recv(t, done).err)
	f.client.AssertNumberOfCalls(t, "SendRawTransaction", 2)
}

func TestSignAndSendFirstSubmitFailure(t *testing.T) {
	f := newFixture(t, testConfig())
	f.expectBuild(100_000, 1)
	f.expectSend(errors.New("blockhash not found"))

	res := recv(t, f.start(Request{Transaction: legacyTx(t, f.wallet.PublicKey())}))
	assert.True(t, IsKind(res.err, KindSubmit))
	f.client.AssertNotCalled(t, "ConfirmTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSignAndSendExecutionFailure(t *testing.T) {
	f := newFixture(t, testConfig())
	f.expectBuild(100_000, 1)
	f.expectSend(nil)
	onChain := map[string]interface{}{"InstructionError": []interface{}{float64(1), map[string]interface{}{"Custom": float64(6001)}}}
	f.expectConfirm(&blockchain.ConfirmationResult{Slot: 3, Err: onChain}, nil)
	close(f.release)

	res := recv(t, f.start(Request{Transaction: legacyTx(t, f.wallet.PublicKey())}))
	var txErr *Error
	require.ErrorAs(t, res.err, &txErr)
	assert.Equal(t, KindExecution, txErr.Kind)
	assert.Equal(t, onChain, txErr.Detail)
}

func TestSignAndSendSimulationFailure(t *testing.T) {
	f := newFixture(t, testConfig())
	f.client.On("GetLatestAnchor", mock.Anything, mock.Anything).Return(testAnchor, nil)
	f.client.On("SimulateTransaction", mock.Anything, mock.Anything, mock.Anything).Return(&blockchain.SimulationResult{
		Err:  "AccountNotFound",
		Logs: []string{"Program log: Error: insufficient funds"},
	}, nil)

	res := recv(t, f.start(Request{Transaction: legacyTx(t, f.wallet.PublicKey())}))
	assert.True(t, IsKind(res.err, KindSimulation))
	assert.Contains(t, res.err.Error(), "insufficient funds")
	f.client.AssertNotCalled(t, "SendRawTransaction", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, []Stage{StageBuilding, StageFailed}, f.stages())
}

func TestSignAndSendPreconditions(t *testing.T) {
	w := newTestWallet(t)
	tx := legacyTx(t, w.PublicKey())

	_, err := NewSubmitter(nil, w, testConfig(), zap.NewNop()).SignAndSend(context.Background(), Request{Transaction: tx})
	assert.True(t, IsKind(err, KindPrecondition))

	_, err = NewSubmitter(new(MockClient), nil, testConfig(), zap.NewNop()).SignAndSend(context.Background(), Request{Transaction: tx})
	assert.True(t, IsKind(err, KindPrecondition))

	_, err = NewSubmitter(new(MockClient), w, testConfig(), zap.NewNop()).SignAndSend(context.Background(), Request{})
	assert.True(t, IsKind(err, KindPrecondition))
}

func TestSignAndSendCoSigners(t *testing.T) {
	f := newFixture(t, testConfig())
	f.expectBuild(10_000, 1)
	f.expectSend(nil)
	f.expectConfirm(&blockchain.ConfirmationResult{Slot: 1}, nil)
	close(f.release)

	coSigner := newTestWallet(t)
	payer := f.wallet.PublicKey()
	tx := legacyTx(t, payer, transferIx(coSigner.PublicKey(), solana.NewWallet().PublicKey(), 1))

	res := recv(t, f.start(Request{Transaction: tx, CoSigners: []blockchain.Signer{coSigner}}))
	require.NoError(t, res.err)

	sent := decodeRaw(t, recv(t, f.sends))
	require.Len(t, sent.Signatures, 2)
	assert.NoError(t, NewValidator(zap.NewNop()).ValidateSignatures(sent))

	// Without the co-signer the transaction cannot be validated.
	g := newFixture(t, testConfig())
	g.expectBuild(10_000, 1)
	res = recv(t, g.start(Request{Transaction: tx}))
	assert.True(t, IsKind(res.err, KindSign))
}

func TestSignAndSendVersionedDropsMissingTable(t *testing.T) {
	f := newFixture(t, testConfig())
	f.expectBuild(80_000, 3)
	f.expectSend(nil)
	f.expectConfirm(&blockchain.ConfirmationResult{Slot: 1}, nil)
	close(f.release)

	payer := f.wallet.PublicKey()
	table := solana.NewWallet().PublicKey()
	ghost := solana.NewWallet().PublicKey()
	addrs := solana.PublicKeySlice{solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()}

	in, err := NewUnsigned(payer, []solana.Instruction{
		bridgeIx(solana.NewAccountMeta(payer, true, true), solana.NewAccountMeta(addrs[1], true, false)),
	}, map[solana.PublicKey]solana.PublicKeySlice{table: addrs}).WithAnchor(blockchain.Anchor{Blockhash: hashOf(3)}).Compile()
	require.NoError(t, err)
	in.Message.AddressTableLookups = append(in.Message.AddressTableLookups, solana.MessageAddressTableLookup{AccountKey: ghost})

	f.client.On("GetAddressLookupTable", mock.Anything, table).Return(addrs, nil).Once()
	f.client.On("GetAddressLookupTable", mock.Anything, ghost).Return(nil, blockchain.ErrAccountNotFound).Once()

	res := recv(t, f.start(Request{Transaction: in, Commitment: rpc.CommitmentConfirmed}))
	require.NoError(t, res.err)

	sent := decodeRaw(t, recv(t, f.sends))
	require.True(t, sent.Message.IsVersioned())
	require.Len(t, sent.Message.AddressTableLookups, 1)
	assert.Equal(t, table, sent.Message.AddressTableLookups[0].AccountKey)

	u, err := Decompile(sent, map[solana.PublicKey]solana.PublicKeySlice{table: addrs})
	require.NoError(t, err)
	assert.Equal(t, 2, computebudget.Count(u.Instructions()))
	f.client.AssertCalled(t, "GetLatestAnchor", mock.Anything, rpc.CommitmentConfirmed)
}

func TestSignAndSendLookupTableFailure(t *testing.T) {
	f := newFixture(t, testConfig())
	f.client.On("GetLatestAnchor", mock.Anything, mock.Anything).Return(testAnchor, nil)

	payer := f.wallet.PublicKey()
	table := solana.NewWallet().PublicKey()
	addrs := solana.PublicKeySlice{solana.NewWallet().PublicKey()}
	in, err := NewUnsigned(payer, []solana.Instruction{
		bridgeIx(solana.NewAccountMeta(payer, true, true), solana.NewAccountMeta(addrs[0], false, false)),
	}, map[solana.PublicKey]solana.PublicKeySlice{table: addrs}).WithAnchor(testAnchor).Compile()
	require.NoError(t, err)

	f.client.On("GetAddressLookupTable", mock.Anything, table).Return(nil, errors.New("connection reset"))

	res := recv(t, f.start(Request{Transaction: in}))
	assert.True(t, IsKind(res.err, KindBuild))
}

func TestSignAndSendCancelledWhileConfirming(t *testing.T) {
	f := newFixture(t, testConfig())
	f.expectBuild(100_000, 1)
	f.expectSend(nil)
	f.expectConfirm(nil, context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan sendResult, 1)
	go func() {
		sig, err := f.submitter.SignAndSend(ctx, Request{Transaction: legacyTx(t, f.wallet.PublicKey())})
		done <- sendResult{sig, err}
	}()
	recv(t, f.sends)
	cancel()

	res := recv(t, done)
	assert.True(t, IsKind(res.err, KindConfirm))
	assert.ErrorIs(t, res.err, context.Canceled)
}

func TestEstimateDoesNotSign(t *testing.T) {
	f := newFixture(t, testConfig())
	f.expectBuild(100_000, 5000)

	budget, err := f.submitter.Estimate(context.Background(), Request{Transaction: legacyTx(t, f.wallet.PublicKey())})
	require.NoError(t, err)
	assert.Equal(t, computebudget.Budget{UnitLimit: 120_000, UnitPrice: 5000}, budget.Budget)
	assert.Equal(t, uint64(100_000), budget.UnitsConsumed)

	f.client.AssertNotCalled(t, "SendRawTransaction", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.stages())

	_, err = f.submitter.Estimate(context.Background(), Request{})
	assert.True(t, IsKind(err, KindPrecondition))
}
