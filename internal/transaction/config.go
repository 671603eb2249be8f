// internal/transaction/config.go
package transaction

import (
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

const (
	DefaultMaxSimulationAttempts = 5
	DefaultSimulationRetryDelay  = time.Second
	DefaultResendInterval        = 5 * time.Second
	DefaultComputeUnits          = 200_000
	DefaultComputeUnitHeadroom   = 1.2
	DefaultFeePercentile         = 0.95
	DefaultCommitment            = rpc.CommitmentFinalized

	// SlippageMarker marks a simulation failure caused by price movement.
	SlippageMarker = "SlippageToleranceExceeded"
)

// Config holds the estimator and submitter tunables.
type Config struct {
	MaxSimulationAttempts int
	SimulationRetryDelay  time.Duration
	ResendInterval        time.Duration
	DefaultComputeUnits   uint32
	ComputeUnitHeadroom   float64
	FeePercentile         float64
	Commitment            rpc.CommitmentType
	// A simulation error is retried when any log line contains one of these.
	RetryableSimulationMarkers []string
	// 0 means resend until the watch resolves.
	MaxResends int
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		MaxSimulationAttempts:      DefaultMaxSimulationAttempts,
		SimulationRetryDelay:       DefaultSimulationRetryDelay,
		ResendInterval:             DefaultResendInterval,
		DefaultComputeUnits:        DefaultComputeUnits,
		ComputeUnitHeadroom:        DefaultComputeUnitHeadroom,
		FeePercentile:              DefaultFeePercentile,
		Commitment:                 DefaultCommitment,
		RetryableSimulationMarkers: []string{SlippageMarker},
		MaxResends:                 0,
	}
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxSimulationAttempts <= 0 {
		c.MaxSimulationAttempts = d.MaxSimulationAttempts
	}
	if c.SimulationRetryDelay < 0 {
		c.SimulationRetryDelay = 0
	}
	if c.ResendInterval <= 0 {
		c.ResendInterval = d.ResendInterval
	}
	if c.DefaultComputeUnits == 0 {
		c.DefaultComputeUnits = d.DefaultComputeUnits
	}
	if c.ComputeUnitHeadroom < 1 {
		c.ComputeUnitHeadroom = d.ComputeUnitHeadroom
	}
	if c.FeePercentile <= 0 || c.FeePercentile > 1 {
		c.FeePercentile = d.FeePercentile
	}
	if c.Commitment == "" {
		c.Commitment = d.Commitment
	}
	if c.RetryableSimulationMarkers == nil {
		c.RetryableSimulationMarkers = d.RetryableSimulationMarkers
	}
	if c.MaxResends < 0 {
		c.MaxResends = 0
	}
	return c
}
