package accrual

import (
	"fmt"
	"math/big"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
)

// settle advances the pool accumulator to now. Rewards stop accruing at the
// end of the funded window and pools without shares only move their clock.
func settle(pool *Pool, emission *Emission, now uint64) {
	if now <= pool.LastRewardTime {
		return
	}
	if pool.TotalShares.Sign() == 0 {
		pool.LastRewardTime = now
		return
	}
	end := now
	if emission.RewardsEndTime < end {
		end = emission.RewardsEndTime
	}
	if end > pool.LastRewardTime && emission.TotalAllocationWeight > 0 && pool.AllocationWeight > 0 {
		reward := new(big.Int).SetUint64(end - pool.LastRewardTime)
		reward.Mul(reward, emission.RewardRatePerSecond)
		reward.Mul(reward, new(big.Int).SetUint64(pool.AllocationWeight))
		reward.Quo(reward, new(big.Int).SetUint64(emission.TotalAllocationWeight))

		increment := reward.Mul(reward, Scale)
		increment.Quo(increment, pool.TotalShares)
		pool.AccRewardPerShare.Add(pool.AccRewardPerShare, increment)
	}
	pool.LastRewardTime = now
}

func accumulated(shares, acc *big.Int) *big.Int {
	out := new(big.Int).Mul(shares, acc)
	return out.Quo(out, Scale)
}

// realize moves rewards earned since the last checkpoint into
// PendingRewards and re-checkpoints the debt against acc.
func realize(pos *Position, acc *big.Int) error {
	earned := accumulated(pos.Shares, acc)
	delta := new(big.Int).Sub(earned, pos.RewardDebt)
	if delta.Sign() < 0 {
		return fmt.Errorf("%w: position %s/%s/%s debt %s above accumulated %s", common.ErrInvariantViolation, pos.Principal, pos.PoolID, pos.TierID, pos.RewardDebt, earned)
	}
	pos.PendingRewards.Add(pos.PendingRewards, delta)
	pos.RewardDebt = earned
	return nil
}

func sharesFor(amount *big.Int, weightBps uint64) *big.Int {
	return common.ApplyBps(amount, weightBps)
}

func covered(owed, reserve *big.Int) *big.Int {
	if owed.Cmp(reserve) > 0 {
		return common.CloneAmount(reserve)
	}
	return common.CloneAmount(owed)
}

// unboost converts a multiplied reward back into raw pending units, rounding
// up so a later claim pays at least the deferred amount.
func unboost(reward *big.Int, multiplierBps uint64) *big.Int {
	if reward.Sign() <= 0 || multiplierBps == 0 {
		return big.NewInt(0)
	}
	bps := new(big.Int).SetUint64(multiplierBps)
	out := new(big.Int).Mul(reward, big.NewInt(common.BasisPoints))
	out.Add(out, bps)
	out.Sub(out, big.NewInt(1))
	return out.Quo(out, bps)
}
