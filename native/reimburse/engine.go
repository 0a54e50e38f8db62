package reimburse

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

// ModuleName identifies the ledger for pause toggles.
const ModuleName = "reimburse"

var (
	ErrRelayerRequired           = errors.New("reimburse: relayer required")
	ErrReferenceRequired         = errors.New("reimburse: reference required")
	ErrZeroAmount                = errors.New("reimburse: amount must be positive")
	ErrReferenceReused           = errors.New("reimburse: reference already processed")
	ErrPerTxLimitExceeded        = errors.New("reimburse: per-transaction limit exceeded")
	ErrDailyRelayerLimitExceeded = errors.New("reimburse: relayer daily limit exceeded")
	ErrDailyGlobalLimitExceeded  = errors.New("reimburse: global daily limit exceeded")
	ErrInsufficientFunds         = errors.New("reimburse: treasury underfunded")
	ErrTreasuryNotSet            = errors.New("reimburse: treasury not configured")
	ErrInvalidLimits             = errors.New("reimburse: limits must be non-negative")
	ErrLimitsNotConfigured       = errors.New("reimburse: limits not configured")
)

var (
	keyLimits = state.Key("reimburse", "limits")
	keyGlobal = state.Key("reimburse", "global")
)

func relayerKey(relayer string) []byte { return state.Key("reimburse", "relayer", relayer) }

func referenceKey(ref [32]byte) []byte {
	return state.Key("reimburse", "processed", string(ref[:]))
}

// Engine pays relayers back for the cost of relayed transactions, bounded by a
// per-transaction cap and rolling per-relayer and global windows.
type Engine struct {
	ledger   *state.Ledger
	access   common.AccessControl
	pauses   common.PauseView
	bank     common.ValueLedger
	emitter  events.Emitter
	clock    common.Clock
	treasury string
	defaults *Limits
}

// NewEngine constructs the reimbursement ledger paying out of treasury.
func NewEngine(ledger *state.Ledger, access common.AccessControl, bank common.ValueLedger, treasury string) *Engine {
	return &Engine{
		ledger:   ledger,
		access:   access,
		bank:     bank,
		emitter:  events.NoopEmitter{},
		clock:    common.SystemClock{},
		treasury: strings.TrimSpace(treasury),
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

// SetDefaultLimits configures the limits used until SetLimits persists an
// override. Without either, Reimburse fails with ErrLimitsNotConfigured.
func (e *Engine) SetDefaultLimits(limits Limits) {
	normalized := limits.normalized()
	e.defaults = &normalized
}

// Treasury returns the funding account.
func (e *Engine) Treasury() string { return e.treasury }

func (e *Engine) now() uint64 { return common.Unix(e.clock) }

func (e *Engine) loadLimits(tx *state.Tx) (Limits, error) {
	var stored Limits
	ok, err := tx.Get(keyLimits, &stored)
	if err != nil {
		return Limits{}, err
	}
	if !ok {
		if e.defaults == nil {
			return Limits{}, ErrLimitsNotConfigured
		}
		return e.defaults.normalized(), nil
	}
	return stored.normalized(), nil
}

func loadRelayer(tx *state.Tx, relayer string) (*RelayerQuota, error) {
	q := &RelayerQuota{Relayer: relayer}
	if _, err := tx.Get(relayerKey(relayer), q); err != nil {
		return nil, err
	}
	q.DailyUsed = common.CloneAmount(q.DailyUsed)
	q.LifetimeUsed = common.CloneAmount(q.LifetimeUsed)
	return q, nil
}

func loadGlobal(tx *state.Tx) (*GlobalQuota, error) {
	q := new(GlobalQuota)
	if _, err := tx.Get(keyGlobal, q); err != nil {
		return nil, err
	}
	q.DailyUsed = common.CloneAmount(q.DailyUsed)
	q.TotalReimbursed = common.CloneAmount(q.TotalReimbursed)
	return q, nil
}

// Reimburse pays amount from the treasury to relayer for the relayed
// transaction identified by reference. Each reference is paid at most once.
func (e *Engine) Reimburse(ctx context.Context, caller, relayer string, amount *big.Int, reference [32]byte) (*Receipt, error) {
	if err := common.Guard(ctx, e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if err := common.Require(ctx, e.access, caller, common.CapRelayer); err != nil {
		return nil, err
	}
	relayer = strings.TrimSpace(relayer)
	if relayer == "" {
		return nil, ErrRelayerRequired
	}
	if reference == ([32]byte{}) {
		return nil, ErrReferenceRequired
	}
	if !common.IsPositive(amount) {
		return nil, ErrZeroAmount
	}
	if e.treasury == "" || e.bank == nil {
		return nil, ErrTreasuryNotSet
	}
	amount = common.CloneAmount(amount)

	var receipt *Receipt
	err := e.ledger.Update(ctx, func(txCtx context.Context, tx *state.Tx) error {
		processed, err := tx.Has(referenceKey(reference))
		if err != nil {
			return err
		}
		if processed {
			return ErrReferenceReused
		}
		limits, err := e.loadLimits(tx)
		if err != nil {
			return err
		}
		if common.IsPositive(limits.PerTxCap) && amount.Cmp(limits.PerTxCap) > 0 {
			return fmt.Errorf("%w: %s above %s", ErrPerTxLimitExceeded, amount, limits.PerTxCap)
		}

		now := e.now()
		relayerQuota, err := loadRelayer(tx, relayer)
		if err != nil {
			return err
		}
		relayerWindow, err := common.CheckWindow(common.WindowLimit{Cap: limits.RelayerDailyCap, Period: limits.Period}, now, relayerQuota.window(), amount)
		if errors.Is(err, common.ErrQuotaCapExceeded) {
			return ErrDailyRelayerLimitExceeded
		}
		if err != nil {
			return err
		}
		globalQuota, err := loadGlobal(tx)
		if err != nil {
			return err
		}
		globalWindow, err := common.CheckWindow(common.WindowLimit{Cap: limits.GlobalDailyCap, Period: limits.Period}, now, globalQuota.window(), amount)
		if errors.Is(err, common.ErrQuotaCapExceeded) {
			return ErrDailyGlobalLimitExceeded
		}
		if err != nil {
			return err
		}

		funds, err := e.bank.BalanceOf(txCtx, e.treasury)
		if err != nil {
			return err
		}
		if funds.Cmp(amount) < 0 {
			return fmt.Errorf("%w: treasury holds %s, needs %s", ErrInsufficientFunds, funds, amount)
		}

		if err := tx.Put(referenceKey(reference), true); err != nil {
			return err
		}
		relayerQuota.DailyUsed, relayerQuota.DailyResetAt = relayerWindow.Used, relayerWindow.ResetAt
		relayerQuota.LifetimeUsed.Add(relayerQuota.LifetimeUsed, amount)
		if err := tx.Put(relayerKey(relayer), relayerQuota); err != nil {
			return err
		}
		globalQuota.DailyUsed, globalQuota.DailyResetAt = globalWindow.Used, globalWindow.ResetAt
		globalQuota.TotalReimbursed.Add(globalQuota.TotalReimbursed, amount)
		if err := tx.Put(keyGlobal, globalQuota); err != nil {
			return err
		}
		if err := e.bank.Debit(txCtx, e.treasury, amount); err != nil {
			return fmt.Errorf("reimburse: debit treasury: %w", err)
		}
		if err := e.bank.Credit(txCtx, relayer, amount); err != nil {
			return fmt.Errorf("reimburse: credit %s: %w", relayer, err)
		}

		receipt = &Receipt{
			Relayer:         relayer,
			Amount:          amount,
			Reference:       reference,
			RelayerUsed:     common.CloneAmount(relayerQuota.DailyUsed),
			GlobalUsed:      common.CloneAmount(globalQuota.DailyUsed),
			TotalReimbursed: common.CloneAmount(globalQuota.TotalReimbursed),
		}
		evt := events.Reimbursed{
			Relayer:         receipt.Relayer,
			Amount:          common.CloneAmount(amount),
			Reference:       reference,
			RelayerUsed:     receipt.RelayerUsed,
			GlobalUsed:      receipt.GlobalUsed,
			TotalReimbursed: receipt.TotalReimbursed,
		}
		tx.OnCommit(func() { e.emitter.Emit(evt) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// SetLimits persists new reimbursement caps. Current window usage is kept.
func (e *Engine) SetLimits(ctx context.Context, caller string, limits Limits) error {
	if err := common.Guard(ctx, e.pauses, ModuleName); err != nil {
		return err
	}
	if err := common.Require(ctx, e.access, caller, common.CapAdmin); err != nil {
		return err
	}
	for _, v := range []*big.Int{limits.PerTxCap, limits.RelayerDailyCap, limits.GlobalDailyCap} {
		if v != nil && v.Sign() < 0 {
			return ErrInvalidLimits
		}
	}
	normalized := limits.normalized()
	return e.ledger.Update(ctx, func(_ context.Context, tx *state.Tx) error {
		if err := tx.Put(keyLimits, &normalized); err != nil {
			return err
		}
		tx.OnCommit(func() {
			e.emitter.Emit(events.ReimburseLimitsUpdated{
				PerTxCap:        normalized.PerTxCap,
				RelayerDailyCap: normalized.RelayerDailyCap,
				GlobalDailyCap:  normalized.GlobalDailyCap,
				PeriodSeconds:   normalized.Period,
			})
		})
		return nil
	})
}
