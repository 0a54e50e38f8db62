package accrual

import (
	"context"
	"math/big"
	"strings"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/state"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
)

// Pool returns the stored pool. The accumulator is not advanced.
func (e *Engine) Pool(ctx context.Context, id string) (*Pool, error) {
	var out *Pool
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		var err error
		out, err = loadPool(tx, strings.TrimSpace(id))
		return err
	})
	return out, err
}

// Pools returns every pool in creation order.
func (e *Engine) Pools(ctx context.Context) ([]*Pool, error) {
	var out []*Pool
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		ids, err := poolIDs(tx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			pool, err := loadPool(tx, id)
			if err != nil {
				return err
			}
			out = append(out, pool)
		}
		return nil
	})
	return out, err
}

// Tier returns the stored tier.
func (e *Engine) Tier(ctx context.Context, id string) (*Tier, error) {
	var out *Tier
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		var err error
		out, err = loadTier(tx, strings.TrimSpace(id))
		return err
	})
	return out, err
}

// Emission returns the shared emission schedule.
func (e *Engine) Emission(ctx context.Context) (*Emission, error) {
	var out *Emission
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		var err error
		out, err = loadEmission(tx)
		return err
	})
	return out, err
}

// Position returns the stored position of principal. Closed positions are
// returned with a zero amount.
func (e *Engine) Position(ctx context.Context, principal, poolID, tierID string) (*Position, bool, error) {
	var (
		out   *Position
		found bool
	)
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		var err error
		out, found, err = loadPosition(tx, strings.TrimSpace(principal), strings.TrimSpace(poolID), strings.TrimSpace(tierID))
		return err
	})
	return out, found, err
}

// PendingRewards reports what Claim would pay principal from pool right now,
// after tier multipliers.
func (e *Engine) PendingRewards(ctx context.Context, principal, poolID string) (*big.Int, error) {
	total := big.NewInt(0)
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		pool, err := loadPool(tx, strings.TrimSpace(poolID))
		if err != nil {
			return err
		}
		emission, err := loadEmission(tx)
		if err != nil {
			return err
		}
		settle(pool, emission, e.now())
		positions, err := openPositions(tx, strings.TrimSpace(principal), pool.ID)
		if err != nil {
			return err
		}
		for _, pos := range positions {
			tier, err := loadTier(tx, pos.TierID)
			if err != nil {
				return err
			}
			if err := realize(pos, pool.AccRewardPerShare); err != nil {
				return err
			}
			total.Add(total, common.ApplyBps(pos.PendingRewards, tier.RewardMultiplierBps))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}
