package events

import (
	"math/big"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/types"
)

const (
	// TypeAccrualDeposited is emitted when a principal stakes into a pool.
	TypeAccrualDeposited = "accrual.deposited"
	// TypeAccrualWithdrawn is emitted when a position is fully withdrawn.
	TypeAccrualWithdrawn = "accrual.withdrawn"
	// TypeAccrualClaimed is emitted when pending rewards are paid out.
	TypeAccrualClaimed = "accrual.claimed"
	// TypeAccrualFunded is emitted when the reward reserve is topped up and
	// the emission rate is re-blended.
	TypeAccrualFunded = "accrual.funded"
	// TypeAccrualPoolUpdated is emitted when a pool is created or its
	// allocation weight changes.
	TypeAccrualPoolUpdated = "accrual.pool.updated"
)

// AccrualDeposited captures a stake deposit.
type AccrualDeposited struct {
	Principal  string
	PoolID     string
	TierID     string
	Amount     *big.Int
	Shares     *big.Int
	LockEndsAt uint64
}

// EventType implements the Event interface.
func (AccrualDeposited) EventType() string { return TypeAccrualDeposited }

// Event converts the payload into its attribute form.
func (e AccrualDeposited) Event() *types.Event {
	return &types.Event{Type: TypeAccrualDeposited, Attributes: map[string]string{
		"principal":  e.Principal,
		"poolId":     e.PoolID,
		"tierId":     e.TierID,
		"amount":     formatAmount(e.Amount),
		"shares":     formatAmount(e.Shares),
		"lockEndsAt": formatUint(e.LockEndsAt),
	}}
}

// AccrualWithdrawn captures a full withdrawal of a position.
type AccrualWithdrawn struct {
	Principal string
	PoolID    string
	TierID    string
	Amount    *big.Int
	Reward    *big.Int
}

// EventType implements the Event interface.
func (AccrualWithdrawn) EventType() string { return TypeAccrualWithdrawn }

// Event converts the payload into its attribute form.
func (e AccrualWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeAccrualWithdrawn, Attributes: map[string]string{
		"principal": e.Principal,
		"poolId":    e.PoolID,
		"tierId":    e.TierID,
		"amount":    formatAmount(e.Amount),
		"reward":    formatAmount(e.Reward),
	}}
}

// AccrualClaimed captures a reward claim across a principal's positions.
type AccrualClaimed struct {
	Principal string
	PoolID    string
	Reward    *big.Int
}

// EventType implements the Event interface.
func (AccrualClaimed) EventType() string { return TypeAccrualClaimed }

// Event converts the payload into its attribute form.
func (e AccrualClaimed) Event() *types.Event {
	return &types.Event{Type: TypeAccrualClaimed, Attributes: map[string]string{
		"principal": e.Principal,
		"poolId":    e.PoolID,
		"reward":    formatAmount(e.Reward),
	}}
}

// AccrualFunded captures a reserve top-up.
type AccrualFunded struct {
	Funder         string
	Amount         *big.Int
	RatePerSecond  *big.Int
	RewardsEndTime uint64
}

// EventType implements the Event interface.
func (AccrualFunded) EventType() string { return TypeAccrualFunded }

// Event converts the payload into its attribute form.
func (e AccrualFunded) Event() *types.Event {
	return &types.Event{Type: TypeAccrualFunded, Attributes: map[string]string{
		"funder":         e.Funder,
		"amount":         formatAmount(e.Amount),
		"ratePerSecond":  formatAmount(e.RatePerSecond),
		"rewardsEndTime": formatUint(e.RewardsEndTime),
	}}
}

// AccrualPoolUpdated captures pool creation and reweighting.
type AccrualPoolUpdated struct {
	PoolID                string
	AllocationWeight      uint64
	TotalAllocationWeight uint64
}

// EventType implements the Event interface.
func (AccrualPoolUpdated) EventType() string { return TypeAccrualPoolUpdated }

// Event converts the payload into its attribute form.
func (e AccrualPoolUpdated) Event() *types.Event {
	return &types.Event{Type: TypeAccrualPoolUpdated, Attributes: map[string]string{
		"poolId":                e.PoolID,
		"allocationWeight":      formatUint(e.AllocationWeight),
		"totalAllocationWeight": formatUint(e.TotalAllocationWeight),
	}}
}
