// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	addresslookuptable "github.com/gagliardetto/solana-go/programs/address-lookup-table"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bridgetx/internal/blockchain"
	"github.com/rovshanmuradov/bridgetx/internal/blockchain/solbc/rpc"
)

// NewClient создаёт новый клиент поверх пула RPC узлов.
func NewClient(pool *rpc.Pool, cfg Config, logger *zap.Logger) *Client {
	defaults := DefaultConfig()
	if cfg.ConfirmPollInterval <= 0 {
		cfg.ConfirmPollInterval = defaults.ConfirmPollInterval
	}
	if cfg.MaxPriorityFee == 0 {
		cfg.MaxPriorityFee = defaults.MaxPriorityFee
	}
	return &Client{
		pool:   pool,
		cfg:    cfg,
		logger: logger.Named("solbc-client"),
	}
}

// GetLatestAnchor получает последний blockhash вместе с последней допустимой высотой блока.
func (c *Client) GetLatestAnchor(ctx context.Context, commitment solanarpc.CommitmentType) (blockchain.Anchor, error) {
	var anchor blockchain.Anchor
	err := c.pool.ExecuteWithRetry(ctx, "getLatestBlockhash", func(ctx context.Context, cl *solanarpc.Client) error {
		res, err := cl.GetLatestBlockhash(ctx, commitment)
		if err != nil {
			return err
		}
		if res == nil || res.Value == nil {
			return errors.New("empty getLatestBlockhash response")
		}
		anchor = blockchain.Anchor{
			Blockhash:            res.Value.Blockhash,
			LastValidBlockHeight: res.Value.LastValidBlockHeight,
		}
		return nil
	})
	if err != nil {
		c.logger.Error("GetLatestAnchor error", zap.Error(err))
		return blockchain.Anchor{}, err
	}
	return anchor, nil
}

// SimulateTransaction симулирует транзакцию и возвращает результат симуляции.
func (c *Client) SimulateTransaction(
	ctx context.Context,
	tx *solana.Transaction,
	opts blockchain.SimulateOptions,
) (*blockchain.SimulationResult, error) {
	var result *blockchain.SimulationResult
	err := c.pool.ExecuteWithRetry(ctx, "simulateTransaction", func(ctx context.Context, cl *solanarpc.Client) error {
		res, err := cl.SimulateTransactionWithOpts(ctx, tx, &solanarpc.SimulateTransactionOpts{
			SigVerify:              opts.SigVerify,
			Commitment:             opts.Commitment,
			ReplaceRecentBlockhash: opts.ReplaceRecentBlockhash,
		})
		if err != nil {
			return err
		}
		if res == nil || res.Value == nil {
			return errors.New("empty simulateTransaction response")
		}
		result = &blockchain.SimulationResult{
			Err:           res.Value.Err,
			Logs:          res.Value.Logs,
			UnitsConsumed: res.Value.UnitsConsumed,
		}
		return nil
	})
	if err != nil {
		c.logger.Error("SimulateTransaction error", zap.Error(err))
		return nil, err
	}
	return result, nil
}

// SendRawTransaction отправляет подписанные байты транзакции ровно один раз.
// Retrying is left to the caller, which resends the same bytes on its own schedule.
func (c *Client) SendRawTransaction(
	ctx context.Context,
	raw []byte,
	opts blockchain.TransactionOptions,
) (solana.Signature, error) {
	var sig solana.Signature
	err := c.pool.Do(ctx, "sendTransaction", func(ctx context.Context, cl *solanarpc.Client) error {
		s, err := cl.SendRawTransactionWithOpts(ctx, raw, solanarpc.TransactionOpts{
			SkipPreflight:       opts.SkipPreflight,
			PreflightCommitment: opts.PreflightCommitment,
			MaxRetries:          opts.MaxRetries,
		})
		if err != nil {
			return err
		}
		sig = s
		return nil
	})
	if err != nil {
		c.logger.Debug("SendRawTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// GetAddressLookupTable загружает адреса из таблицы поиска адресов.
func (c *Client) GetAddressLookupTable(ctx context.Context, table solana.PublicKey) (solana.PublicKeySlice, error) {
	var addresses solana.PublicKeySlice
	err := c.pool.ExecuteWithRetry(ctx, "getAccountInfo", func(ctx context.Context, cl *solanarpc.Client) error {
		acc, err := cl.GetAccountInfoWithOpts(ctx, table, &solanarpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: solanarpc.CommitmentConfirmed,
		})
		if err != nil {
			return err
		}
		if acc == nil || acc.Value == nil || acc.Value.Data == nil {
			return solanarpc.ErrNotFound
		}
		state, err := addresslookuptable.DecodeAddressLookupTableState(acc.Value.Data.GetBinary())
		if err != nil {
			return fmt.Errorf("decode lookup table %s: %w", table, err)
		}
		addresses = state.Addresses
		return nil
	})
	if errors.Is(err, solanarpc.ErrNotFound) {
		return nil, fmt.Errorf("lookup table %s: %w", table, blockchain.ErrAccountNotFound)
	}
	if err != nil {
		c.logger.Debug("GetAddressLookupTable error",
			zap.String("table", table.String()),
			zap.Error(err))
		return nil, err
	}
	return addresses, nil
}
