package accrual

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/events"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/state"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
)

// ModuleName identifies the engine for pause toggles.
const ModuleName = "accrual"

// DefaultVault holds staked principal and the funded reward reserve.
const DefaultVault = "module:accrual"

var (
	ErrPrincipalRequired   = errors.New("accrual: principal required")
	ErrInvalidID           = errors.New("accrual: id required")
	ErrInvalidAmount       = errors.New("accrual: amount must be positive")
	ErrInvalidDuration     = errors.New("accrual: duration must be positive")
	ErrInvalidTier         = errors.New("accrual: tier multipliers must be positive")
	ErrPoolExists          = errors.New("accrual: pool already exists")
	ErrPoolNotFound        = errors.New("accrual: pool not found")
	ErrTierNotFound        = errors.New("accrual: tier not found")
	ErrBelowMinStake       = errors.New("accrual: amount below tier minimum stake")
	ErrNoPosition          = errors.New("accrual: no open position")
	ErrLocked              = errors.New("accrual: position locked")
	ErrInsufficientRewards = errors.New("accrual: reward reserve exhausted")
	ErrRateUnderflow       = errors.New("accrual: funding too small for duration")
	ErrNilBank             = errors.New("accrual: value ledger not configured")
)

var (
	keyEmission = state.Key("accrual", "emission")
	keyPools    = state.Key("accrual", "pools")
	keyTiers    = state.Key("accrual", "tiers")
)

func poolKey(id string) []byte { return state.Key("accrual", "pool", id) }

func tierKey(id string) []byte { return state.Key("accrual", "tier", id) }

func positionKey(principal, pool, tier string) []byte {
	return state.Key("accrual", "position", principal, pool, tier)
}

func openedKey(principal, pool string) []byte {
	return state.Key("accrual", "opened", principal, pool)
}

// Engine implements share-based reward accrual across sibling pools that share
// a single emission schedule.
type Engine struct {
	ledger  *state.Ledger
	access  common.AccessControl
	pauses  common.PauseView
	bank    common.ValueLedger
	emitter events.Emitter
	clock   common.Clock
	vault   string
}

// NewEngine constructs an accrual engine.
func NewEngine(ledger *state.Ledger, access common.AccessControl, bank common.ValueLedger) *Engine {
	return &Engine{
		ledger:  ledger,
		access:  access,
		bank:    bank,
		emitter: events.NoopEmitter{},
		clock:   common.SystemClock{},
		vault:   DefaultVault,
	}
}

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetClock overrides the time source used for deterministic testing.
func (e *Engine) SetClock(clock common.Clock) {
	if clock == nil {
		clock = common.SystemClock{}
	}
	e.clock = clock
}

// SetPauses wires the module pause view.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetVault overrides the account holding stake and rewards.
func (e *Engine) SetVault(vault string) {
	if trimmed := strings.TrimSpace(vault); trimmed != "" {
		e.vault = trimmed
	}
}

// Vault returns the account holding stake and rewards.
func (e *Engine) Vault() string { return e.vault }

func (e *Engine) now() uint64 { return common.Unix(e.clock) }

func loadEmission(tx *state.Tx) (*Emission, error) {
	em := new(Emission)
	if _, err := tx.Get(keyEmission, em); err != nil {
		return nil, err
	}
	return em.Clone(), nil
}

func loadPool(tx *state.Tx, id string) (*Pool, error) {
	p := new(Pool)
	ok, err := tx.Get(poolKey(id), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}
	return p.Clone(), nil
}

func loadTier(tx *state.Tx, id string) (*Tier, error) {
	t := new(Tier)
	ok, err := tx.Get(tierKey(id), t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTierNotFound, id)
	}
	return t.Clone(), nil
}

func loadPosition(tx *state.Tx, principal, pool, tier string) (*Position, bool, error) {
	pos := new(Position)
	ok, err := tx.Get(positionKey(principal, pool, tier), pos)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return &Position{
			Principal:      principal,
			PoolID:         pool,
			TierID:         tier,
			Amount:         big.NewInt(0),
			Shares:         big.NewInt(0),
			RewardDebt:     big.NewInt(0),
			PendingRewards: big.NewInt(0),
		}, false, nil
	}
	return pos.Clone(), true, nil
}

func putPosition(tx *state.Tx, pos *Position) error {
	return tx.Put(positionKey(pos.Principal, pos.PoolID, pos.TierID), pos)
}

func poolIDs(tx *state.Tx) ([]string, error) {
	n, err := tx.ListLen(keyPools)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		var id string
		if _, err := tx.ListItem(keyPools, i, &id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// settleAll brings every pool up to now under the current emission.
func settleAll(tx *state.Tx, emission *Emission, now uint64) error {
	ids, err := poolIDs(tx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		pool, err := loadPool(tx, id)
		if err != nil {
			return err
		}
		settle(pool, emission, now)
		if err := tx.Put(poolKey(id), pool); err != nil {
			return err
		}
	}
	return nil
}

func validID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", ErrInvalidID
	}
	return trimmed, nil
}

// CreatePool registers a pool with the given allocation weight. Existing pools
// are settled first so that reweighting only affects future emission.
func (e *Engine) CreatePool(ctx context.Context, caller, id string, weight uint64) (*Pool, error) {
	if err := common.Guard(ctx, e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if err := common.Require(ctx, e.access, caller, common.CapRewardsManager); err != nil {
		return nil, err
	}
	id, err := validID(id)
	if err != nil {
		return nil, err
	}
	var out *Pool
	err = e.ledger.Update(ctx, func(_ context.Context, tx *state.Tx) error {
		exists, err := tx.Has(poolKey(id))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrPoolExists, id)
		}
		now := e.now()
		emission, err := loadEmission(tx)
		if err != nil {
			return err
		}
		if err := settleAll(tx, emission, now); err != nil {
			return err
		}
		emission.TotalAllocationWeight += weight
		pool := &Pool{
			ID:                id,
			TotalDeposited:    big.NewInt(0),
			TotalShares:       big.NewInt(0),
			AccRewardPerShare: big.NewInt(0),
			LastRewardTime:    now,
			AllocationWeight:  weight,
		}
		if err := tx.Put(poolKey(id), pool); err != nil {
			return err
		}
		if _, err := tx.Append(keyPools, id); err != nil {
			return err
		}
		if err := tx.Put(keyEmission, emission); err != nil {
			return err
		}
		total := emission.TotalAllocationWeight
		tx.OnCommit(func() {
			e.emitter.Emit(events.AccrualPoolUpdated{PoolID: id, AllocationWeight: weight, TotalAllocationWeight: total})
		})
		out = pool.Clone()
		return nil
	})
	return out, err
}

// SetAllocationWeight changes a pool's share of the emission after settling
// every pool at the old weights.
func (e *Engine) SetAllocationWeight(ctx context.Context, caller, id string, weight uint64) error {
	if err := common.Guard(ctx, e.pauses, ModuleName); err != nil {
		return err
	}
	if err := common.Require(ctx, e.access, caller, common.CapRewardsManager); err != nil {
		return err
	}
	id, err := validID(id)
	if err != nil {
		return err
	}
	return e.ledger.Update(ctx, func(_ context.Context, tx *state.Tx) error {
		emission, err := loadEmission(tx)
		if err != nil {
			return err
		}
		if err := settleAll(tx, emission, e.now()); err != nil {
			return err
		}
		pool, err := loadPool(tx, id)
		if err != nil {
			return err
		}
		if emission.TotalAllocationWeight < pool.AllocationWeight {
			return fmt.Errorf("%w: total weight %d below pool weight %d", common.ErrInvariantViolation, emission.TotalAllocationWeight, pool.AllocationWeight)
		}
		emission.TotalAllocationWeight = emission.TotalAllocationWeight - pool.AllocationWeight + weight
		pool.AllocationWeight = weight
		if err := tx.Put(poolKey(id), pool); err != nil {
			return err
		}
		if err := tx.Put(keyEmission, emission); err != nil {
			return err
		}
		total := emission.TotalAllocationWeight
		tx.OnCommit(func() {
			e.emitter.Emit(events.AccrualPoolUpdated{PoolID: id, AllocationWeight: weight, TotalAllocationWeight: total})
		})
		return nil
	})
}

// SetTier creates or replaces a tier. Open positions keep their shares; the
// new multipliers apply from the next interaction.
func (e *Engine) SetTier(ctx context.Context, caller string, tier Tier) error {
	if err := common.Guard(ctx, e.pauses, ModuleName); err != nil {
		return err
	}
	if err := common.Require(ctx, e.access, caller, common.CapAdmin); err != nil {
		return err
	}
	id, err := validID(tier.ID)
	if err != nil {
		return err
	}
	if tier.RewardMultiplierBps == 0 || tier.WeightMultiplierBps == 0 {
		return ErrInvalidTier
	}
	if tier.MinStake != nil && tier.MinStake.Sign() < 0 {
		return ErrInvalidAmount
	}
	stored := tier.Clone()
	stored.ID = id
	return e.ledger.Update(ctx, func(_ context.Context, tx *state.Tx) error {
		exists, err := tx.Has(tierKey(id))
		if err != nil {
			return err
		}
		if !exists {
			if _, err := tx.Append(keyTiers, id); err != nil {
				return err
			}
		}
		return tx.Put(tierKey(id), stored)
	})
}

// FundRewards tops up the reward reserve from the caller's balance and
// re-blends the emission rate so that the unspent remainder of an active
// window is spread over the new duration.
func (e *Engine) FundRewards(ctx context.Context, caller string, amount *big.Int, duration uint64) (*Emission, error) {
	if err := common.Guard(ctx, e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if err := common.Require(ctx, e.access, caller, common.CapRewardsManager); err != nil {
		return nil, err
	}
	if !common.IsPositive(amount) {
		return nil, ErrInvalidAmount
	}
	if duration == 0 {
		return nil, ErrInvalidDuration
	}
	if e.bank == nil {
		return nil, ErrNilBank
	}
	var out *Emission
	err := e.ledger.Update(ctx, func(txCtx context.Context, tx *state.Tx) error {
		now := e.now()
		emission, err := loadEmission(tx)
		if err != nil {
			return err
		}
		if err := settleAll(tx, emission, now); err != nil {
			return err
		}
		budget := common.CloneAmount(amount)
		if emission.RewardsEndTime > now {
			remaining := new(big.Int).SetUint64(emission.RewardsEndTime - now)
			budget.Add(budget, remaining.Mul(remaining, emission.RewardRatePerSecond))
		}
		rate := budget.Quo(budget, new(big.Int).SetUint64(duration))
		if rate.Sign() == 0 {
			return ErrRateUnderflow
		}
		if err := e.bank.Debit(txCtx, caller, amount); err != nil {
			return fmt.Errorf("accrual: debit funder: %w", err)
		}
		if err := e.bank.Credit(txCtx, e.vault, amount); err != nil {
			return fmt.Errorf("accrual: credit vault: %w", err)
		}
		emission.RewardRatePerSecond = rate
		emission.RewardsEndTime = now + duration
		emission.RewardReserve.Add(emission.RewardReserve, amount)
		if err := tx.Put(keyEmission, emission); err != nil {
			return err
		}
		evt := events.AccrualFunded{
			Funder:         caller,
			Amount:         common.CloneAmount(amount),
			RatePerSecond:  common.CloneAmount(rate),
			RewardsEndTime: emission.RewardsEndTime,
		}
		tx.OnCommit(func() { e.emitter.Emit(evt) })
		out = emission.Clone()
		return nil
	})
	return out, err
}
