// internal/blockchain/solbc/confirm.go
package solbc

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bridgetx/internal/blockchain"
)

// ConfirmTransaction ожидает подтверждения транзакции (polling), пока высота блока
// не превысит LastValidBlockHeight якоря.
func (c *Client) ConfirmTransaction(
	ctx context.Context,
	sig solana.Signature,
	anchor blockchain.Anchor,
	commitment solanarpc.CommitmentType,
) (*blockchain.ConfirmationResult, error) {
	ticker := time.NewTicker(c.cfg.ConfirmPollInterval)
	defer ticker.Stop()

	log := c.logger.With(zap.String("signature", sig.String()))

	for {
		status, err := c.signatureStatus(ctx, sig)
		if err != nil {
			log.Warn("Error getting signature status", zap.Error(err))
		} else if status != nil && commitmentReached(status.ConfirmationStatus, commitment) {
			return &blockchain.ConfirmationResult{Slot: status.Slot, Err: status.Err}, nil
		}

		height, err := c.blockHeight(ctx, commitment)
		if err != nil {
			log.Warn("Error getting block height", zap.Error(err))
		} else if height > anchor.LastValidBlockHeight {
			// The transaction may have landed between the two queries.
			if status, err := c.signatureStatus(ctx, sig); err == nil && status != nil &&
				commitmentReached(status.ConfirmationStatus, commitment) {
				return &blockchain.ConfirmationResult{Slot: status.Slot, Err: status.Err}, nil
			}
			return nil, fmt.Errorf("signature %s: %w (height %d > %d)",
				sig, blockchain.ErrBlockHeightExceeded, height, anchor.LastValidBlockHeight)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) signatureStatus(ctx context.Context, sig solana.Signature) (*solanarpc.SignatureStatusesResult, error) {
	var status *solanarpc.SignatureStatusesResult
	err := c.pool.Do(ctx, "getSignatureStatuses", func(ctx context.Context, cl *solanarpc.Client) error {
		res, err := cl.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			return err
		}
		if res != nil && len(res.Value) > 0 {
			status = res.Value[0]
		}
		return nil
	})
	return status, err
}

func (c *Client) blockHeight(ctx context.Context, commitment solanarpc.CommitmentType) (uint64, error) {
	var height uint64
	err := c.pool.Do(ctx, "getBlockHeight", func(ctx context.Context, cl *solanarpc.Client) error {
		h, err := cl.GetBlockHeight(ctx, commitment)
		if err != nil {
			return err
		}
		height = h
		return nil
	})
	return height, err
}

func commitmentRank(level string) int {
	switch level {
	case string(solanarpc.CommitmentProcessed):
		return 1
	case string(solanarpc.CommitmentConfirmed):
		return 2
	case string(solanarpc.CommitmentFinalized):
		return 3
	default:
		return 0
	}
}

// commitmentReached reports whether a status satisfies the requested commitment.
// An unknown requested level is treated as finalized.
func commitmentReached(status solanarpc.ConfirmationStatusType, want solanarpc.CommitmentType) bool {
	have := commitmentRank(string(status))
	if have == 0 {
		return false
	}
	need := commitmentRank(string(want))
	if need == 0 {
		need = commitmentRank(string(solanarpc.CommitmentFinalized))
	}
	return have >= need
}
