package common

import (
	"context"
	"fmt"
	"strings"
)

// Capability names a permission checked by the engines before any state is
// touched.
type Capability string

const (
	CapIssuer          Capability = "ROLE_SESSION_ISSUER"
	CapConsumer        Capability = "ROLE_SESSION_CONSUMER"
	CapCampaignManager Capability = "ROLE_CAMPAIGN_MANAGER"
	CapRewardGranter   Capability = "ROLE_REWARD_GRANTER"
	CapRewardsManager  Capability = "ROLE_REWARDS_MANAGER"
	CapRelayer         Capability = "ROLE_RELAYER"
	CapAdmin           Capability = "ROLE_ADMIN"
)

// Capabilities lists every capability known to the control plane.
func Capabilities() []Capability {
	return []Capability{
		CapIssuer,
		CapConsumer,
		CapCampaignManager,
		CapRewardGranter,
		CapRewardsManager,
		CapRelayer,
		CapAdmin,
	}
}

// ParseCapability resolves a capability from its name. The ROLE_ prefix is
// optional and matching is case-insensitive.
func ParseCapability(raw string) (Capability, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if name == "" {
		return "", fmt.Errorf("capability required")
	}
	if !strings.HasPrefix(name, "ROLE_") {
		name = "ROLE_" + name
	}
	for _, c := range Capabilities() {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown capability %q", raw)
}

// AccessControl reports whether a principal holds a capability. Implementations
// must honour ctx so that checks issued inside a ledger transaction observe the
// transaction's own writes.
type AccessControl interface {
	HasCapability(ctx context.Context, principal string, capability Capability) bool
}

// AccessFunc adapts a function to the AccessControl interface.
type AccessFunc func(ctx context.Context, principal string, capability Capability) bool

func (f AccessFunc) HasCapability(ctx context.Context, principal string, capability Capability) bool {
	return f(ctx, principal, capability)
}

// AllowAll grants every capability to every non-empty principal.
type AllowAll struct{}

func (AllowAll) HasCapability(_ context.Context, principal string, _ Capability) bool {
	return strings.TrimSpace(principal) != ""
}

// Require returns ErrUnauthorized unless principal holds capability.
func Require(ctx context.Context, ac AccessControl, principal string, capability Capability) error {
	if ac == nil {
		return fmt.Errorf("%w: access control not configured", ErrUnauthorized)
	}
	if strings.TrimSpace(principal) == "" || !ac.HasCapability(ctx, principal, capability) {
		return fmt.Errorf("%w: %s lacks %s", ErrUnauthorized, principal, capability)
	}
	return nil
}
