// internal/transaction/estimator.go
package transaction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bridgetx/internal/blockchain"
	"github.com/rovshanmuradov/bridgetx/internal/blockchain/solbc/computebudget"
)

// errRetryableSimulation signals the retry loop to simulate again.
var errRetryableSimulation = errors.New("retryable simulation failure")

// Budget is the estimator's result.
type Budget struct {
	computebudget.Budget
	// UnitsConsumed is what the last successful simulation reported, or the default.
	UnitsConsumed uint64
	// Attempts is the number of simulations issued.
	Attempts int
}

// Estimator derives the compute unit limit from a simulation and the unit
// price from recent prioritization fees.
type Estimator struct {
	client  blockchain.Client
	cfg     Config
	logger  *zap.Logger
	metrics *Metrics
}

func NewEstimator(client blockchain.Client, cfg Config, logger *zap.Logger, metrics *Metrics) *Estimator {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Estimator{
		client:  client,
		cfg:     cfg.withDefaults(),
		logger:  logger.Named("fee-estimator"),
		metrics: metrics,
	}
}

// Estimate simulates u and returns the compute budget to inject into it.
func (e *Estimator) Estimate(ctx context.Context, u Unsigned) (Budget, error) {
	if e.client == nil {
		return Budget{}, newError(KindPrecondition, "estimate", errors.New("no network client"))
	}

	// Simulation rejects a v0 message with an empty blockhash.
	if u.IsCompiled() && !u.HasAnchor() {
		anchor, err := e.client.GetLatestAnchor(ctx, e.cfg.Commitment)
		if err != nil {
			return Budget{}, newError(KindBuild, "fetch anchor for simulation", err)
		}
		u = u.WithAnchor(anchor)
	}

	tx, err := u.Compile()
	if err != nil {
		return Budget{}, newError(KindBuild, "compile for simulation", err)
	}

	opts := blockchain.SimulateOptions{
		Commitment:             e.cfg.Commitment,
		SigVerify:              false,
		ReplaceRecentBlockhash: u.IsCompiled(),
	}

	attempts := 0
	operation := func() (uint64, error) {
		attempts++
		e.metrics.simulations.Inc()

		res, err := e.client.SimulateTransaction(ctx, tx, opts)
		if err != nil {
			return 0, backoff.Permanent(newError(KindSimulation, "simulate transaction", err))
		}
		if res.Err == nil {
			if res.UnitsConsumed != nil && *res.UnitsConsumed > 0 {
				return *res.UnitsConsumed, nil
			}
			return uint64(e.cfg.DefaultComputeUnits), nil
		}

		if marker, ok := e.retryableMarker(res.Logs); ok {
			e.logger.Info("Transient simulation failure, trying again",
				zap.String("marker", marker),
				zap.Int("attempt", attempts))
			e.metrics.simulationRetries.Inc()
			return 0, errRetryableSimulation
		}

		return 0, backoff.Permanent(&Error{
			Kind:   KindSimulation,
			Op:     "simulate transaction",
			Err:    fmt.Errorf("simulation failed: %v", res.Err),
			Detail: res.Err,
			Logs:   res.Logs,
		})
	}

	units, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(e.cfg.SimulationRetryDelay)),
		backoff.WithMaxTries(uint(e.cfg.MaxSimulationAttempts)),
	)
	switch {
	case err == nil:
	case errors.Is(err, errRetryableSimulation):
		units = uint64(e.cfg.DefaultComputeUnits)
		e.logger.Warn("Simulation attempts exhausted, using default compute units",
			zap.Int("attempts", attempts),
			zap.Uint64("units", units))
	default:
		var txErr *Error
		if errors.As(err, &txErr) {
			return Budget{}, txErr
		}
		return Budget{}, newError(KindSimulation, "simulate transaction", err)
	}

	limit := ComputeUnitLimit(units, e.cfg.ComputeUnitHeadroom)

	price, err := e.client.EstimatePriorityFee(ctx, tx, e.cfg.FeePercentile)
	if err != nil {
		return Budget{}, newError(KindBuild, "estimate priority fee", err)
	}

	b := Budget{
		Budget:        computebudget.Budget{UnitLimit: limit, UnitPrice: price},
		UnitsConsumed: units,
		Attempts:      attempts,
	}
	e.logger.Debug("Compute budget estimated",
		zap.Uint64("units_consumed", units),
		zap.Uint32("unit_limit", limit),
		zap.Uint64("unit_price", price),
		zap.Int("attempts", attempts))
	return b, nil
}

func (e *Estimator) retryableMarker(logs []string) (string, bool) {
	for _, line := range logs {
		for _, marker := range e.cfg.RetryableSimulationMarkers {
			if marker != "" && strings.Contains(line, marker) {
				return marker, true
			}
		}
	}
	return "", false
}

// ComputeUnitLimit returns ceil(units*headroom), never below units and capped
// at the runtime maximum.
func ComputeUnitLimit(units uint64, headroom float64) uint32 {
	// The epsilon absorbs float error on exact products such as 100000*1.2.
	limit := uint64(math.Ceil(float64(units)*headroom - 1e-6))
	if limit < units {
		limit = units
	}
	if limit > MaxComputeUnits {
		limit = MaxComputeUnits
	}
	return uint32(limit)
}

// MaxComputeUnits is the per-transaction compute unit ceiling of the runtime.
const MaxComputeUnits = 1_400_000
