// internal/blockchain/solbc/types.go
package solbc

import (
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/bridgetx/internal/blockchain"
	"github.com/rovshanmuradov/bridgetx/internal/blockchain/solbc/rpc"
)

const (
	DefaultConfirmPollInterval = 400 * time.Millisecond
	DefaultMinPriorityFee      = 1
	DefaultMaxPriorityFee      = 100_000_000
)

// Config tunes the network client.
type Config struct {
	ConfirmPollInterval time.Duration
	// Bounds for EstimatePriorityFee, in micro-lamports per compute unit.
	MinPriorityFee uint64
	MaxPriorityFee uint64
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{
		ConfirmPollInterval: DefaultConfirmPollInterval,
		MinPriorityFee:      DefaultMinPriorityFee,
		MaxPriorityFee:      DefaultMaxPriorityFee,
	}
}

// Client представляет основной клиент Solana
type Client struct {
	pool   *rpc.Pool
	cfg    Config
	logger *zap.Logger
}

// Проверяем, что Client реализует blockchain.Client интерфейс
var _ blockchain.Client = (*Client)(nil)
