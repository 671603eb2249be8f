// internal/transaction/submitter.go
package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/bridgetx/internal/blockchain"
	"github.com/rovshanmuradov/bridgetx/internal/logger"
)

// Submitter builds, signs, submits and confirms transactions.
type Submitter struct {
	client    blockchain.Client
	signer    blockchain.Signer
	estimator *Estimator
	validator *Validator
	cfg       Config
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *Metrics
	observer  Observer
}

type Option func(*Submitter)

// WithClock replaces the wall clock driving the resend ticker.
func WithClock(c clock.Clock) Option {
	return func(s *Submitter) { s.clock = c }
}

func WithObserver(o Observer) Option {
	return func(s *Submitter) { s.observer = o }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Submitter) { s.metrics = m }
}

func NewSubmitter(
	client blockchain.Client,
	signer blockchain.Signer,
	cfg Config,
	log *zap.Logger,
	opts ...Option,
) *Submitter {
	s := &Submitter{
		client: client,
		signer: signer,
		cfg:    cfg.withDefaults(),
		clock:  clock.New(),
		logger: log.Named("tx-submitter"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	s.estimator = NewEstimator(client, s.cfg, log, s.metrics)
	s.validator = NewValidator(log)
	return s
}

type watchResult struct {
	res *blockchain.ConfirmationResult
	err error
}

// SignAndSend runs the whole submission and returns the confirmed signature.
// Every failure is an *Error.
func (s *Submitter) SignAndSend(ctx context.Context, req Request) (sig solana.Signature, err error) {
	if s.client == nil {
		return solana.Signature{}, newError(KindPrecondition, "sign and send", errors.New("no network client configured"))
	}
	if s.signer == nil {
		return solana.Signature{}, newError(KindPrecondition, "sign and send", errors.New("no wallet signer connected"))
	}
	if req.Transaction == nil {
		return solana.Signature{}, newError(KindPrecondition, "sign and send", errors.New("no transaction"))
	}

	commitment := req.Commitment
	if commitment == "" {
		commitment = s.cfg.Commitment
	}
	log := logger.WithOperation(s.logger, "sign_and_send").
		With(zap.String("commitment", string(commitment)))

	defer func() {
		s.metrics.trackOutcome(err)
		if err != nil {
			err = withSignature(err, sig)
			log.Error("Transaction failed", zap.Error(err))
			s.emit(Event{Stage: StageFailed, Signature: sig, Err: err})
			sig = solana.Signature{}
		}
	}()

	s.emit(Event{Stage: StageBuilding})
	tx, anchor, budget, err := s.build(ctx, req.Transaction, commitment, log)
	if err != nil {
		return sig, err
	}

	signed, raw, err := s.sign(ctx, tx, req.CoSigners)
	if err != nil {
		return sig, err
	}
	sig = signed.Signatures[0]
	log = log.With(zap.String("signature", sig.String()))
	s.emit(Event{Stage: StageSigned, Signature: sig, Budget: &budget})

	opts := blockchain.TransactionOptions{
		SkipPreflight:       true,
		PreflightCommitment: commitment,
		MaxRetries:          new(uint),
	}

	// The ticker exists before the first send so that resend timing is
	// measured from the submission.
	ticker := s.clock.Ticker(s.cfg.ResendInterval)
	defer ticker.Stop()

	start := s.clock.Now()
	returned, err := s.client.SendRawTransaction(ctx, raw, opts)
	if err != nil {
		return sig, newError(KindSubmit, "send transaction", err)
	}
	if !returned.IsZero() && !returned.Equals(sig) {
		log.Warn("Node returned an unexpected signature", zap.String("returned", returned.String()))
	}
	s.metrics.submissions.Inc()
	log.Info("Transaction submitted",
		zap.Uint32("unit_limit", budget.UnitLimit),
		zap.Uint64("unit_price", budget.UnitPrice))
	s.emit(Event{Stage: StageSubmitted, Signature: sig})

	if err := s.await(ctx, sig, raw, anchor, commitment, opts, ticker, log); err != nil {
		return sig, err
	}

	s.metrics.trackConfirmation(s.clock.Since(start))
	log.Info("Transaction confirmed")
	s.emit(Event{Stage: StageConfirmed, Signature: sig})
	return sig, nil
}

// Estimate assembles the transaction exactly like SignAndSend and returns the
// budget it would carry. Nothing is signed or sent.
func (s *Submitter) Estimate(ctx context.Context, req Request) (Budget, error) {
	if s.client == nil {
		return Budget{}, newError(KindPrecondition, "estimate", errors.New("no network client configured"))
	}
	if req.Transaction == nil {
		return Budget{}, newError(KindPrecondition, "estimate", errors.New("no transaction"))
	}
	commitment := req.Commitment
	if commitment == "" {
		commitment = s.cfg.Commitment
	}
	_, _, budget, err := s.build(ctx, req.Transaction, commitment, logger.WithOperation(s.logger, "estimate"))
	return budget, err
}

// build fetches a fresh anchor, resolves lookup tables and replaces the compute budget.
func (s *Submitter) build(
	ctx context.Context,
	in *solana.Transaction,
	commitment rpc.CommitmentType,
	log *zap.Logger,
) (*solana.Transaction, blockchain.Anchor, Budget, error) {
	anchor, err := s.client.GetLatestAnchor(ctx, commitment)
	if err != nil {
		return nil, blockchain.Anchor{}, Budget{}, newError(KindBuild, "fetch anchor", err)
	}

	tables, err := s.resolveLookupTables(ctx, in, log)
	if err != nil {
		return nil, anchor, Budget{}, newError(KindBuild, "resolve lookup tables", err)
	}

	u, err := Decompile(in, tables)
	if err != nil {
		return nil, anchor, Budget{}, newError(KindBuild, "decompile", err)
	}
	u = u.WithAnchor(anchor).WithoutComputeBudget()

	budget, err := s.estimator.Estimate(ctx, u)
	if err != nil {
		return nil, anchor, Budget{}, err
	}

	tx, err := u.WithComputeBudget(budget.Budget).Compile()
	if err != nil {
		return nil, anchor, Budget{}, newError(KindBuild, "compile", err)
	}

	log.Debug("Transaction assembled",
		zap.Stringer("variant", u.Variant()),
		zap.Int("instructions", len(tx.Message.Instructions)),
		zap.Int("lookup_tables", len(tables)),
		zap.Uint64("last_valid_block_height", anchor.LastValidBlockHeight))
	return tx, anchor, budget, nil
}

// resolveLookupTables fetches every referenced table in parallel. Tables that do
// not exist are dropped.
func (s *Submitter) resolveLookupTables(
	ctx context.Context,
	tx *solana.Transaction,
	log *zap.Logger,
) (map[solana.PublicKey]solana.PublicKeySlice, error) {
	if !tx.Message.IsVersioned() || len(tx.Message.AddressTableLookups) == 0 {
		return nil, nil
	}

	lookups := tx.Message.AddressTableLookups
	resolved := make([]solana.PublicKeySlice, len(lookups))

	g, gctx := errgroup.WithContext(ctx)
	for i, lookup := range lookups {
		g.Go(func() error {
			addrs, err := s.client.GetAddressLookupTable(gctx, lookup.AccountKey)
			if errors.Is(err, blockchain.ErrAccountNotFound) {
				log.Warn("Lookup table not found, dropping", zap.String("table", lookup.AccountKey.String()))
				return nil
			}
			if err != nil {
				return fmt.Errorf("lookup table %s: %w", lookup.AccountKey, err)
			}
			resolved[i] = addrs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tables := make(map[solana.PublicKey]solana.PublicKeySlice, len(lookups))
	for i, lookup := range lookups {
		if resolved[i] != nil {
			tables[lookup.AccountKey] = resolved[i]
		}
	}
	return tables, nil
}

// sign applies co-signer signatures, then the wallet's, and serializes once.
func (s *Submitter) sign(
	ctx context.Context,
	tx *solana.Transaction,
	coSigners []blockchain.Signer,
) (*solana.Transaction, []byte, error) {
	var err error
	for _, cs := range coSigners {
		if cs == nil {
			continue
		}
		tx, err = cs.SignTransaction(ctx, tx)
		if err != nil {
			return nil, nil, newError(KindSign, "co-sign", err)
		}
	}

	tx, err = s.signer.SignTransaction(ctx, tx)
	if err != nil {
		return nil, nil, newError(KindSign, "wallet sign", err)
	}

	if err := s.validator.ValidateTransaction(tx); err != nil {
		return nil, nil, newError(KindSign, "validate signed transaction", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, nil, newError(KindSign, "serialize", err)
	}
	return tx, raw, nil
}

// await races the confirmation watch against the resend ticker.
func (s *Submitter) await(
	ctx context.Context,
	sig solana.Signature,
	raw []byte,
	anchor blockchain.Anchor,
	commitment rpc.CommitmentType,
	opts blockchain.TransactionOptions,
	ticker *clock.Ticker,
	log *zap.Logger,
) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan watchResult, 1)
	go func() {
		res, err := s.client.ConfirmTransaction(watchCtx, sig, anchor, commitment)
		done <- watchResult{res: res, err: err}
	}()
	s.emit(Event{Stage: StageConfirming, Signature: sig})

	resends := 0
	for {
		select {
		case <-ctx.Done():
			return newError(KindConfirm, "await confirmation", ctx.Err())

		case r := <-done:
			return s.settle(ctx, r, log)

		case <-ticker.C:
			// The watch may have resolved in the same instant.
			select {
			case r := <-done:
				return s.settle(ctx, r, log)
			default:
			}

			if s.cfg.MaxResends > 0 && resends >= s.cfg.MaxResends {
				log.Debug("Resend cap reached, waiting for confirmation", zap.Int("resends", resends))
				continue
			}

			resends++
			s.emit(Event{Stage: StageResubmitting, Signature: sig, Resends: resends})
			log.Info("Transaction not confirmed yet, resending",
				zap.Duration("elapsed", s.cfg.ResendInterval*time.Duration(resends)),
				zap.Int("resend", resends))

			s.metrics.resends.Inc()
			if _, err := s.client.SendRawTransaction(ctx, raw, opts); err != nil {
				s.metrics.resendFailures.Inc()
				log.Warn("Failed to resend transaction", zap.Error(err))
			}
			s.emit(Event{Stage: StageConfirming, Signature: sig, Resends: resends})
		}
	}
}

func (s *Submitter) settle(ctx context.Context, r watchResult, log *zap.Logger) error {
	if r.err != nil {
		if errors.Is(r.err, blockchain.ErrBlockHeightExceeded) {
			return newError(KindExpired, "await confirmation", r.err)
		}
		if ctx.Err() != nil {
			return newError(KindConfirm, "await confirmation", ctx.Err())
		}
		return newError(KindConfirm, "await confirmation", r.err)
	}
	if r.res == nil {
		return newError(KindConfirm, "await confirmation", errors.New("empty confirmation result"))
	}
	if r.res.Err != nil {
		log.Warn("Transaction failed on chain", zap.Uint64("slot", r.res.Slot), zap.Any("err", r.res.Err))
		return &Error{
			Kind:   KindExecution,
			Op:     "execute",
			Err:    fmt.Errorf("transaction failed: %v", r.res.Err),
			Detail: r.res.Err,
		}
	}
	log.Debug("Confirmation received", zap.Uint64("slot", r.res.Slot))
	return nil
}

func (s *Submitter) emit(ev Event) {
	if s.observer == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = s.clock.Now()
	}
	s.observer(ev)
}
