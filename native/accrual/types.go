package accrual

import (
	"math/big"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
)

// Scale is the fixed-point precision of AccRewardPerShare.
var Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Tier configures lock duration and multipliers for positions opened under
// it.
type Tier struct {
	ID string
	// LockDuration is expressed in seconds.
	LockDuration        uint64
	RewardMultiplierBps uint64
	WeightMultiplierBps uint64
	MinStake            *big.Int
}

// Clone returns a deep copy of the tier.
func (t *Tier) Clone() *Tier {
	if t == nil {
		return nil
	}
	out := *t
	out.MinStake = common.CloneAmount(t.MinStake)
	return &out
}

// Pool accumulates rewards per share for its stakers.
type Pool struct {
	ID                string
	TotalDeposited    *big.Int
	TotalShares       *big.Int
	AccRewardPerShare *big.Int
	LastRewardTime    uint64
	AllocationWeight  uint64
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	out := *p
	out.TotalDeposited = common.CloneAmount(p.TotalDeposited)
	out.TotalShares = common.CloneAmount(p.TotalShares)
	out.AccRewardPerShare = common.CloneAmount(p.AccRewardPerShare)
	return &out
}

// Emission is the reward schedule shared by every pool.
type Emission struct {
	RewardRatePerSecond   *big.Int
	RewardsEndTime        uint64
	TotalAllocationWeight uint64
	// RewardReserve is the funded amount not yet paid out.
	RewardReserve *big.Int
}

// Clone returns a deep copy of the emission.
func (e *Emission) Clone() *Emission {
	if e == nil {
		return nil
	}
	out := *e
	out.RewardRatePerSecond = common.CloneAmount(e.RewardRatePerSecond)
	out.RewardReserve = common.CloneAmount(e.RewardReserve)
	return &out
}

// Position is a principal's stake in one pool under one tier.
type Position struct {
	Principal           string
	PoolID              string
	TierID              string
	Amount              *big.Int
	Shares              *big.Int
	LockEndsAt          uint64
	RewardDebt          *big.Int
	PendingRewards      *big.Int
	LastInteractionTime uint64
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	out := *p
	out.Amount = common.CloneAmount(p.Amount)
	out.Shares = common.CloneAmount(p.Shares)
	out.RewardDebt = common.CloneAmount(p.RewardDebt)
	out.PendingRewards = common.CloneAmount(p.PendingRewards)
	return &out
}

// Open reports whether the position still holds stake.
func (p *Position) Open() bool { return p != nil && common.IsPositive(p.Amount) }

// Claimable reports whether the position holds stake or unpaid rewards.
func (p *Position) Claimable() bool {
	return p.Open() || (p != nil && common.IsPositive(p.PendingRewards))
}
