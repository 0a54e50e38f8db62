package reimburse

import (
	"context"
	"strings"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/state"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
)

// Limits returns the caps currently in force.
func (e *Engine) Limits(ctx context.Context) (Limits, error) {
	var out Limits
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		var err error
		out, err = e.loadLimits(tx)
		return err
	})
	return out, err
}

// RelayerQuota returns the stored usage of relayer. Window resets are applied
// lazily by Reimburse, so DailyUsed may belong to an elapsed window.
func (e *Engine) RelayerQuota(ctx context.Context, relayer string) (*RelayerQuota, error) {
	var out *RelayerQuota
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		var err error
		out, err = loadRelayer(tx, strings.TrimSpace(relayer))
		return err
	})
	return out, err
}

// GlobalQuota returns the stored aggregate usage.
func (e *Engine) GlobalQuota(ctx context.Context) (*GlobalQuota, error) {
	var out *GlobalQuota
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		var err error
		out, err = loadGlobal(tx)
		return err
	})
	return out, err
}

// RemainingQuota reports the headroom relayer has in each window at the
// current time.
func (e *Engine) RemainingQuota(ctx context.Context, relayer string) (Remaining, error) {
	var out Remaining
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		limits, err := e.loadLimits(tx)
		if err != nil {
			return err
		}
		relayerQuota, err := loadRelayer(tx, strings.TrimSpace(relayer))
		if err != nil {
			return err
		}
		globalQuota, err := loadGlobal(tx)
		if err != nil {
			return err
		}
		now := e.now()
		out.Relayer = common.WindowLimit{Cap: limits.RelayerDailyCap, Period: limits.Period}.Remaining(now, relayerQuota.window())
		out.Global = common.WindowLimit{Cap: limits.GlobalDailyCap, Period: limits.Period}.Remaining(now, globalQuota.window())
		return nil
	})
	return out, err
}

// IsProcessed reports whether reference was already reimbursed.
func (e *Engine) IsProcessed(ctx context.Context, reference [32]byte) (bool, error) {
	var processed bool
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		var err error
		processed, err = tx.Has(referenceKey(reference))
		return err
	})
	return processed, err
}
