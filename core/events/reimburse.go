package events

import (
	"math/big"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/types"
)

const (
	// TypeReimbursed is emitted when a relayer is reimbursed.
	TypeReimbursed = "reimburse.paid"
	// TypeReimburseLimitsUpdated is emitted when the caps change.
	TypeReimburseLimitsUpdated = "reimburse.limits.updated"
)

// Reimbursed captures a completed relayer reimbursement.
type Reimbursed struct {
	Relayer         string
	Amount          *big.Int
	Reference       [32]byte
	RelayerUsed     *big.Int
	GlobalUsed      *big.Int
	TotalReimbursed *big.Int
}

// EventType implements the Event interface.
func (Reimbursed) EventType() string { return TypeReimbursed }

// Event converts the payload into its attribute form.
func (e Reimbursed) Event() *types.Event {
	return &types.Event{Type: TypeReimbursed, Attributes: map[string]string{
		"relayer":         e.Relayer,
		"amount":          formatAmount(e.Amount),
		"reference":       withHexPrefix(e.Reference[:]),
		"relayerUsed":     formatAmount(e.RelayerUsed),
		"globalUsed":      formatAmount(e.GlobalUsed),
		"totalReimbursed": formatAmount(e.TotalReimbursed),
	}}
}

// ReimburseLimitsUpdated captures a change to the reimbursement caps.
type ReimburseLimitsUpdated struct {
	PerTxCap        *big.Int
	RelayerDailyCap *big.Int
	GlobalDailyCap  *big.Int
	PeriodSeconds   uint64
}

// EventType implements the Event interface.
func (ReimburseLimitsUpdated) EventType() string { return TypeReimburseLimitsUpdated }

// Event converts the payload into its attribute form.
func (e ReimburseLimitsUpdated) Event() *types.Event {
	return &types.Event{Type: TypeReimburseLimitsUpdated, Attributes: map[string]string{
		"perTxCap":        formatAmount(e.PerTxCap),
		"relayerDailyCap": formatAmount(e.RelayerDailyCap),
		"globalDailyCap":  formatAmount(e.GlobalDailyCap),
		"periodSeconds":   formatUint(e.PeriodSeconds),
	}}
}
