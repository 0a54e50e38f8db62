package events

import (
	"strings"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/types"
)

const (
	// TypeSessionIssued is emitted when a capability token is issued.
	TypeSessionIssued = "session.issued"
	// TypeSessionConsumed is emitted when a capability token is used.
	TypeSessionConsumed = "session.consumed"
	// TypeSessionRevoked is emitted when an issuer revokes a token.
	TypeSessionRevoked = "session.revoked"
)

// SessionIssued describes a newly issued single-use token. Only the digest of
// the handle is ever published.
type SessionIssued struct {
	Digest        [32]byte
	Owner         string
	Category      string
	ExpiresAt     uint64
	BoundCampaign string
	Issuer        string
}

// EventType implements the Event interface.
func (SessionIssued) EventType() string { return TypeSessionIssued }

// Event converts the payload into its attribute form.
func (e SessionIssued) Event() *types.Event {
	attrs := map[string]string{
		"digest":    withHexPrefix(e.Digest[:]),
		"owner":     strings.TrimSpace(e.Owner),
		"category":  e.Category,
		"expiresAt": formatUint(e.ExpiresAt),
	}
	setIfPresent(attrs, "boundCampaign", e.BoundCampaign)
	setIfPresent(attrs, "issuer", e.Issuer)
	return &types.Event{Type: TypeSessionIssued, Attributes: attrs}
}

// SessionConsumed records the single use of a token.
type SessionConsumed struct {
	Digest   [32]byte
	Owner    string
	Consumer string
}

// EventType implements the Event interface.
func (SessionConsumed) EventType() string { return TypeSessionConsumed }

// Event converts the payload into its attribute form.
func (e SessionConsumed) Event() *types.Event {
	attrs := map[string]string{
		"digest": withHexPrefix(e.Digest[:]),
		"owner":  strings.TrimSpace(e.Owner),
	}
	setIfPresent(attrs, "consumer", e.Consumer)
	return &types.Event{Type: TypeSessionConsumed, Attributes: attrs}
}

// SessionRevoked records an issuer-initiated revocation.
type SessionRevoked struct {
	Digest [32]byte
	Issuer string
}

// EventType implements the Event interface.
func (SessionRevoked) EventType() string { return TypeSessionRevoked }

// Event converts the payload into its attribute form.
func (e SessionRevoked) Event() *types.Event {
	attrs := map[string]string{"digest": withHexPrefix(e.Digest[:])}
	setIfPresent(attrs, "issuer", e.Issuer)
	return &types.Event{Type: TypeSessionRevoked, Attributes: attrs}
}
