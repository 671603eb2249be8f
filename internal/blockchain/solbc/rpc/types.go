// internal/blockchain/solbc/rpc/types.go
package rpc

import (
	"net/http"
	"sync"
	"time"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 10 * time.Second
	MaxRetries     = 3
	RetryDelay     = 500 * time.Millisecond
)

// NodeClient представляет отдельный RPC узел
type NodeClient struct {
	Client  *solanarpc.Client
	URL     string
	active  bool
	mutex   sync.RWMutex
	metrics *metrics
}

// metrics содержит метрики производительности RPC узла
type metrics struct {
	successCount uint64
	errorCount   uint64
	latency      time.Duration
	mutex        sync.RWMutex
}

// Pool представляет пул RPC клиентов
type Pool struct {
	clients    []*NodeClient
	logger     *zap.Logger
	currIndex  int
	mutex      sync.Mutex
	maxRetries uint
	retryDelay time.Duration
	timeout    time.Duration
}

// Option настраивает Pool.
type Option func(*poolOptions)

type poolOptions struct {
	httpClient *http.Client
	maxRetries uint
	retryDelay time.Duration
	timeout    time.Duration
}

// WithHTTPClient routes every node through the given HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *poolOptions) { o.httpClient = c }
}

// WithRetry overrides the retry policy of the pool.
func WithRetry(maxRetries uint, delay time.Duration) Option {
	return func(o *poolOptions) {
		o.maxRetries = maxRetries
		o.retryDelay = delay
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *poolOptions) { o.timeout = d }
}
