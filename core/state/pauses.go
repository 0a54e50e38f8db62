package state

import (
	"context"
	"strings"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
)

// Pauses persists per-module pause flags and implements common.PauseView.
type Pauses struct {
	ledger *Ledger
	access common.AccessControl
}

// NewPauses constructs the pause registry. Toggling requires CapAdmin.
func NewPauses(ledger *Ledger, access common.AccessControl) *Pauses {
	return &Pauses{ledger: ledger, access: access}
}

func pauseKey(module string) []byte {
	return Key("pause", strings.ToLower(strings.TrimSpace(module)))
}

// IsPaused implements common.PauseView.
func (p *Pauses) IsPaused(ctx context.Context, module string) bool {
	if p == nil {
		return false
	}
	var paused bool
	err := p.ledger.View(ctx, func(tx *Tx) error {
		_, err := tx.Get(pauseKey(module), &paused)
		return err
	})
	return err == nil && paused
}

// SetPaused toggles the pause flag of module.
func (p *Pauses) SetPaused(ctx context.Context, caller, module string, paused bool) error {
	if err := common.Require(ctx, p.access, caller, common.CapAdmin); err != nil {
		return err
	}
	return p.ledger.Update(ctx, func(_ context.Context, tx *Tx) error {
		if !paused {
			return tx.Delete(pauseKey(module))
		}
		return tx.Put(pauseKey(module), true)
	})
}
