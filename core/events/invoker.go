package events

import (
	"math/big"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/types"
)

// TypeInvocation is emitted once for every invoker call, successful or not.
const TypeInvocation = "invoker.invocation"

// Invocation is the audit record of a single invoker call.
type Invocation struct {
	Sequence   uint64
	Caller     string
	CampaignID string
	Principal  string
	Amount     *big.Int
	Success    bool
	Reason     string
	Timestamp  uint64
}

// EventType implements the Event interface.
func (Invocation) EventType() string { return TypeInvocation }

// Event converts the payload into its attribute form.
func (e Invocation) Event() *types.Event {
	attrs := map[string]string{
		"sequence":   formatUint(e.Sequence),
		"caller":     e.Caller,
		"campaignId": e.CampaignID,
		"success":    formatBool(e.Success),
		"timestamp":  formatUint(e.Timestamp),
	}
	if e.Success {
		attrs["principal"] = e.Principal
		attrs["amount"] = formatAmount(e.Amount)
	}
	setIfPresent(attrs, "reason", e.Reason)
	return &types.Event{Type: TypeInvocation, Attributes: attrs}
}
