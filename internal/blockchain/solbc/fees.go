// internal/blockchain/solbc/fees.go
package solbc

import (
	"context"
	"math"
	"sort"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// EstimatePriorityFee returns the percentile of non-zero recent prioritization fees
// paid for the transaction's writable accounts, clamped to the configured bounds.
// RPC failures are not fatal: the minimum fee is returned instead.
func (c *Client) EstimatePriorityFee(ctx context.Context, tx *solana.Transaction, percentile float64) (uint64, error) {
	accounts := WritableAccounts(tx.Message)

	var fees []uint64
	err := c.pool.ExecuteWithRetry(ctx, "getRecentPrioritizationFees", func(ctx context.Context, cl *solanarpc.Client) error {
		res, err := cl.GetRecentPrioritizationFees(ctx, accounts)
		if err != nil {
			return err
		}
		fees = fees[:0]
		for _, f := range res {
			fees = append(fees, f.PrioritizationFee)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		c.logger.Warn("Error fetching recent prioritization fees, using minimum",
			zap.Uint64("min_fee", c.cfg.MinPriorityFee),
			zap.Error(err))
		return c.cfg.MinPriorityFee, nil
	}

	fee := PercentileFee(fees, percentile, c.cfg.MinPriorityFee, c.cfg.MaxPriorityFee)
	c.logger.Debug("Priority fee estimated",
		zap.Int("samples", len(fees)),
		zap.Int("accounts", len(accounts)),
		zap.Float64("percentile", percentile),
		zap.Uint64("fee", fee))
	return fee, nil
}

// PercentileFee picks the fee at floor(n*percentile) of the sorted non-zero samples
// and clamps the result to [minFee, maxFee].
func PercentileFee(samples []uint64, percentile float64, minFee, maxFee uint64) uint64 {
	nonZero := make([]uint64, 0, len(samples))
	for _, s := range samples {
		if s > 0 {
			nonZero = append(nonZero, s)
		}
	}

	fee := minFee
	if len(nonZero) > 0 {
		sort.Slice(nonZero, func(i, j int) bool { return nonZero[i] < nonZero[j] })
		idx := int(math.Floor(float64(len(nonZero)) * percentile))
		if idx >= len(nonZero) {
			idx = len(nonZero) - 1
		}
		if idx < 0 {
			idx = 0
		}
		if nonZero[idx] > fee {
			fee = nonZero[idx]
		}
	}
	if maxFee > 0 && fee > maxFee {
		fee = maxFee
	}
	return fee
}

// WritableAccounts returns the statically listed writable accounts of a message.
func WritableAccounts(msg solana.Message) solana.PublicKeySlice {
	numStatic := len(msg.AccountKeys)
	if msg.IsResolved() {
		numStatic -= msg.NumLookups()
	}
	var out solana.PublicKeySlice
	for i, key := range msg.AccountKeys[:numStatic] {
		if IsStaticWritable(msg.Header, numStatic, i) {
			out = append(out, key)
		}
	}
	return out
}

// IsStaticWritable applies the message header rules to the static account at index i.
func IsStaticWritable(h solana.MessageHeader, numKeys, i int) bool {
	numSigned := int(h.NumRequiredSignatures)
	if i < numSigned {
		return i < numSigned-int(h.NumReadonlySignedAccounts)
	}
	return i < numKeys-int(h.NumReadonlyUnsignedAccounts)
}
