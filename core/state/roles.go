package state

import (
	"context"
	"errors"
	"strings"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
)

// ErrInvalidPrincipal is returned when a role grant targets an empty principal.
var ErrInvalidPrincipal = errors.New("state: principal required")

// RoleTable stores capability grants in the ledger and implements
// common.AccessControl.
type RoleTable struct {
	ledger *Ledger
}

// NewRoleTable constructs a role table over the ledger.
func NewRoleTable(ledger *Ledger) *RoleTable {
	return &RoleTable{ledger: ledger}
}

func roleKey(capability common.Capability, principal string) []byte {
	return Key("role", string(capability), strings.TrimSpace(principal))
}

// HasCapability implements common.AccessControl.
func (r *RoleTable) HasCapability(ctx context.Context, principal string, capability common.Capability) bool {
	if r == nil || strings.TrimSpace(principal) == "" {
		return false
	}
	var granted bool
	err := r.ledger.View(ctx, func(tx *Tx) error {
		var err error
		granted, err = tx.Has(roleKey(capability, principal))
		return err
	})
	return err == nil && granted
}

// Grant assigns capability to principal. The caller must hold CapAdmin.
func (r *RoleTable) Grant(ctx context.Context, caller, principal string, capability common.Capability) error {
	if err := common.Require(ctx, r, caller, common.CapAdmin); err != nil {
		return err
	}
	return r.set(ctx, principal, capability, true)
}

// Revoke removes capability from principal. The caller must hold CapAdmin.
func (r *RoleTable) Revoke(ctx context.Context, caller, principal string, capability common.Capability) error {
	if err := common.Require(ctx, r, caller, common.CapAdmin); err != nil {
		return err
	}
	return r.set(ctx, principal, capability, false)
}

// Bootstrap grants capabilities without an authorization check. It is meant
// for operator-supplied catalogs applied at startup.
func (r *RoleTable) Bootstrap(ctx context.Context, principal string, capabilities ...common.Capability) error {
	for _, capability := range capabilities {
		if err := r.set(ctx, principal, capability, true); err != nil {
			return err
		}
	}
	return nil
}

func (r *RoleTable) set(ctx context.Context, principal string, capability common.Capability, granted bool) error {
	if strings.TrimSpace(principal) == "" {
		return ErrInvalidPrincipal
	}
	return r.ledger.Update(ctx, func(_ context.Context, tx *Tx) error {
		if granted {
			return tx.Put(roleKey(capability, principal), true)
		}
		return tx.Delete(roleKey(capability, principal))
	})
}
