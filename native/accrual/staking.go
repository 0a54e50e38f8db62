package accrual

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/events"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/state"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
)

func (e *Engine) precheck(ctx context.Context, caller string) (string, error) {
	if err := common.Guard(ctx, e.pauses, ModuleName); err != nil {
		return "", err
	}
	principal := strings.TrimSpace(caller)
	if principal == "" {
		return "", ErrPrincipalRequired
	}
	if e.bank == nil {
		return "", ErrNilBank
	}
	return principal, nil
}

// pay releases reward from the reserve to principal together with any
// returned stake.
func (e *Engine) pay(ctx context.Context, emission *Emission, principal string, reward, stake *big.Int) error {
	if reward.Cmp(emission.RewardReserve) > 0 {
		return fmt.Errorf("%w: owed %s, reserve %s", ErrInsufficientRewards, reward, emission.RewardReserve)
	}
	emission.RewardReserve.Sub(emission.RewardReserve, reward)
	total := new(big.Int).Add(reward, stake)
	if total.Sign() == 0 {
		return nil
	}
	if err := e.bank.Debit(ctx, e.vault, total); err != nil {
		return fmt.Errorf("accrual: debit vault: %w", err)
	}
	if err := e.bank.Credit(ctx, principal, total); err != nil {
		return fmt.Errorf("accrual: credit %s: %w", principal, err)
	}
	return nil
}

// Deposit stakes amount from the caller into pool under tier. Topping up an
// existing position realizes its pending rewards first and restarts the lock.
func (e *Engine) Deposit(ctx context.Context, caller, poolID, tierID string, amount *big.Int) (*Position, error) {
	principal, err := e.precheck(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !common.IsPositive(amount) {
		return nil, ErrInvalidAmount
	}
	amount = common.CloneAmount(amount)
	var out *Position
	err = e.ledger.Update(ctx, func(txCtx context.Context, tx *state.Tx) error {
		tier, err := loadTier(tx, strings.TrimSpace(tierID))
		if err != nil {
			return err
		}
		if amount.Cmp(tier.MinStake) < 0 {
			return fmt.Errorf("%w: %s below %s", ErrBelowMinStake, amount, tier.MinStake)
		}
		pool, err := loadPool(tx, strings.TrimSpace(poolID))
		if err != nil {
			return err
		}
		emission, err := loadEmission(tx)
		if err != nil {
			return err
		}
		now := e.now()
		settle(pool, emission, now)

		pos, existed, err := loadPosition(tx, principal, pool.ID, tier.ID)
		if err != nil {
			return err
		}
		if err := realize(pos, pool.AccRewardPerShare); err != nil {
			return err
		}
		if err := e.bank.Debit(txCtx, principal, amount); err != nil {
			return fmt.Errorf("accrual: debit %s: %w", principal, err)
		}
		if err := e.bank.Credit(txCtx, e.vault, amount); err != nil {
			return fmt.Errorf("accrual: credit vault: %w", err)
		}

		added := sharesFor(amount, tier.WeightMultiplierBps)
		pos.Amount.Add(pos.Amount, amount)
		pos.Shares.Add(pos.Shares, added)
		pos.RewardDebt = accumulated(pos.Shares, pool.AccRewardPerShare)
		pos.LockEndsAt = now + tier.LockDuration
		pos.LastInteractionTime = now
		pool.TotalDeposited.Add(pool.TotalDeposited, amount)
		pool.TotalShares.Add(pool.TotalShares, added)

		if !existed {
			if _, err := tx.Append(openedKey(principal, pool.ID), tier.ID); err != nil {
				return err
			}
		}
		if err := putPosition(tx, pos); err != nil {
			return err
		}
		if err := tx.Put(poolKey(pool.ID), pool); err != nil {
			return err
		}
		evt := events.AccrualDeposited{
			Principal:  principal,
			PoolID:     pool.ID,
			TierID:     tier.ID,
			Amount:     common.CloneAmount(amount),
			Shares:     common.CloneAmount(added),
			LockEndsAt: pos.LockEndsAt,
		}
		tx.OnCommit(func() { e.emitter.Emit(evt) })
		out = pos.Clone()
		return nil
	})
	return out, err
}

// Withdraw closes the caller's position in pool under tier once its lock has
// elapsed, returning the stake together with as much of the multiplied reward
// as the reserve holds. The returned reward is the amount actually paid.
func (e *Engine) Withdraw(ctx context.Context, caller, poolID, tierID string) (*big.Int, *big.Int, error) {
	principal, err := e.precheck(ctx, caller)
	if err != nil {
		return nil, nil, err
	}
	var stake, reward *big.Int
	err = e.ledger.Update(ctx, func(txCtx context.Context, tx *state.Tx) error {
		pool, err := loadPool(tx, strings.TrimSpace(poolID))
		if err != nil {
			return err
		}
		pos, _, err := loadPosition(tx, principal, pool.ID, strings.TrimSpace(tierID))
		if err != nil {
			return err
		}
		if !pos.Open() {
			return ErrNoPosition
		}
		now := e.now()
		if now < pos.LockEndsAt {
			return fmt.Errorf("%w: until %d", ErrLocked, pos.LockEndsAt)
		}
		tier, err := loadTier(tx, pos.TierID)
		if err != nil {
			return err
		}
		emission, err := loadEmission(tx)
		if err != nil {
			return err
		}
		settle(pool, emission, now)
		if err := realize(pos, pool.AccRewardPerShare); err != nil {
			return err
		}

		// The stake always comes back. Rewards the reserve cannot cover stay
		// pending on the closed position until the pool is refunded.
		owed := common.ApplyBps(pos.PendingRewards, tier.RewardMultiplierBps)
		reward = covered(owed, emission.RewardReserve)
		deferred := new(big.Int).Sub(owed, reward)
		stake = common.CloneAmount(pos.Amount)
		if err := e.pay(txCtx, emission, principal, reward, stake); err != nil {
			return err
		}

		if pool.TotalDeposited.Cmp(pos.Amount) < 0 || pool.TotalShares.Cmp(pos.Shares) < 0 {
			return fmt.Errorf("%w: pool %s totals below position", common.ErrInvariantViolation, pool.ID)
		}
		pool.TotalDeposited.Sub(pool.TotalDeposited, pos.Amount)
		pool.TotalShares.Sub(pool.TotalShares, pos.Shares)
		pos.Amount = big.NewInt(0)
		pos.Shares = big.NewInt(0)
		pos.RewardDebt = big.NewInt(0)
		pos.PendingRewards = unboost(deferred, tier.RewardMultiplierBps)
		pos.LastInteractionTime = now

		if err := putPosition(tx, pos); err != nil {
			return err
		}
		if err := tx.Put(poolKey(pool.ID), pool); err != nil {
			return err
		}
		if err := tx.Put(keyEmission, emission); err != nil {
			return err
		}
		evt := events.AccrualWithdrawn{
			Principal: principal,
			PoolID:    pool.ID,
			TierID:    pos.TierID,
			Amount:    common.CloneAmount(stake),
			Reward:    common.CloneAmount(reward),
		}
		tx.OnCommit(func() { e.emitter.Emit(evt) })
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return stake, reward, nil
}

// Claim pays the caller's rewards across every open position in pool while
// leaving the stake in place. Closed positions still holding deferred rewards
// are included.
func (e *Engine) Claim(ctx context.Context, caller, poolID string) (*big.Int, error) {
	principal, err := e.precheck(ctx, caller)
	if err != nil {
		return nil, err
	}
	var total *big.Int
	err = e.ledger.Update(ctx, func(txCtx context.Context, tx *state.Tx) error {
		pool, err := loadPool(tx, strings.TrimSpace(poolID))
		if err != nil {
			return err
		}
		emission, err := loadEmission(tx)
		if err != nil {
			return err
		}
		now := e.now()
		settle(pool, emission, now)

		positions, err := openPositions(tx, principal, pool.ID)
		if err != nil {
			return err
		}
		if len(positions) == 0 {
			return ErrNoPosition
		}
		total = big.NewInt(0)
		for _, pos := range positions {
			tier, err := loadTier(tx, pos.TierID)
			if err != nil {
				return err
			}
			if err := realize(pos, pool.AccRewardPerShare); err != nil {
				return err
			}
			total.Add(total, common.ApplyBps(pos.PendingRewards, tier.RewardMultiplierBps))
			pos.PendingRewards = big.NewInt(0)
			pos.LastInteractionTime = now
			if err := putPosition(tx, pos); err != nil {
				return err
			}
		}
		if err := e.pay(txCtx, emission, principal, total, big.NewInt(0)); err != nil {
			return err
		}
		if err := tx.Put(poolKey(pool.ID), pool); err != nil {
			return err
		}
		if err := tx.Put(keyEmission, emission); err != nil {
			return err
		}
		evt := events.AccrualClaimed{Principal: principal, PoolID: pool.ID, Reward: common.CloneAmount(total)}
		tx.OnCommit(func() { e.emitter.Emit(evt) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

func openPositions(tx *state.Tx, principal, poolID string) ([]*Position, error) {
	prefix := openedKey(principal, poolID)
	n, err := tx.ListLen(prefix)
	if err != nil {
		return nil, err
	}
	out := make([]*Position, 0, n)
	for i := uint64(0); i < n; i++ {
		var tierID string
		if _, err := tx.ListItem(prefix, i, &tierID); err != nil {
			return nil, err
		}
		pos, _, err := loadPosition(tx, principal, poolID, tierID)
		if err != nil {
			return nil, err
		}
		if pos.Claimable() {
			out = append(out, pos)
		}
	}
	return out, nil
}
