// internal/blockchain/solbc/rpc/pool.go
package rpc

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Operation is a single RPC call against one node.
type Operation func(ctx context.Context, client *solanarpc.Client) error

// NewPool создает новый пул клиентов
func NewPool(urls []string, logger *zap.Logger, opts ...Option) (*Pool, error) {
	if len(urls) == 0 {
		return nil, ErrNoRPCNodes
	}

	o := poolOptions{
		maxRetries: MaxRetries,
		retryDelay: RetryDelay,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxRetries == 0 {
		o.maxRetries = 1
	}

	clients := make([]*NodeClient, 0, len(urls))
	for _, url := range urls {
		clients = append(clients, NewNodeClient(url, o.httpClient))
	}

	return &Pool{
		clients:    clients,
		logger:     logger.Named("rpc-pool"),
		currIndex:  -1,
		maxRetries: o.maxRetries,
		retryDelay: o.retryDelay,
		timeout:    o.timeout,
	}, nil
}

// Nodes returns the nodes of the pool in configuration order.
func (p *Pool) Nodes() []*NodeClient {
	return p.clients
}

// GetNextClient возвращает следующий активный клиент из пула.
// Если активных узлов не осталось, все узлы снова помечаются активными.
func (p *Pool) GetNextClient() *NodeClient {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for i := 0; i < len(p.clients); i++ {
		p.currIndex = (p.currIndex + 1) % len(p.clients)
		if p.clients[p.currIndex].IsActive() {
			return p.clients[p.currIndex]
		}
	}

	p.logger.Warn("All RPC nodes are inactive, resetting pool")
	for _, c := range p.clients {
		c.SetActive(true)
	}
	p.currIndex = (p.currIndex + 1) % len(p.clients)
	return p.clients[p.currIndex]
}

// HasActiveClients проверяет наличие активных клиентов в пуле
func (p *Pool) HasActiveClients() bool {
	for _, client := range p.clients {
		if client.IsActive() {
			return true
		}
	}
	return false
}

// Do runs op exactly once on the next active node.
func (p *Pool) Do(ctx context.Context, method string, op Operation) error {
	node := p.GetNextClient()

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := op(callCtx, node.Client)
	node.UpdateMetrics(err == nil, time.Since(start))
	if err == nil {
		return nil
	}

	if IsCriticalError(err) && len(p.clients) > 1 {
		node.SetActive(false)
		p.logger.Warn("Node marked as inactive due to critical error",
			zap.String("url", node.URL),
			zap.Error(err))
	}
	return NewError(err, node.URL, method)
}

// ExecuteWithRetry выполняет операцию с повторными попытками, переключая узлы.
// Only transport-level failures are retried; node answers are returned as is.
func (p *Pool) ExecuteWithRetry(ctx context.Context, method string, op Operation) error {
	var attempt int32

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.retryDelay
	policy.MaxInterval = 8 * p.retryDelay

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		n := atomic.AddInt32(&attempt, 1)
		err := p.Do(ctx, method, op)
		if err == nil {
			return struct{}{}, nil
		}
		if !IsRetryableError(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		p.logger.Debug("RPC request failed, trying next node",
			zap.String("method", method),
			zap.Int32("attempt", n),
			zap.Error(err))
		return struct{}{}, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(p.maxRetries),
	)
	return err
}

// CheckHealth probes every node concurrently and updates its active flag.
func (p *Pool) CheckHealth(ctx context.Context) error {
	var healthy int32

	g, gCtx := errgroup.WithContext(ctx)
	for _, node := range p.clients {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gCtx, p.timeout)
			defer cancel()

			start := time.Now()
			version, err := node.Client.GetVersion(callCtx)
			node.UpdateMetrics(err == nil, time.Since(start))
			if err != nil {
				node.SetActive(false)
				p.logger.Warn("Node health check failed",
					zap.String("url", node.URL),
					zap.Error(err))
				return nil
			}

			node.SetActive(true)
			atomic.AddInt32(&healthy, 1)
			p.logger.Debug("Successfully connected to RPC",
				zap.String("url", node.URL),
				zap.String("solana_core", version.SolanaCore))
			return nil
		})
	}
	_ = g.Wait()

	if healthy == 0 {
		return fmt.Errorf("health check: %w", ErrNoActiveClients)
	}
	return nil
}
