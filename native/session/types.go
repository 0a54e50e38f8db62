package session

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Category classifies the action a session authorizes.
type Category string

const (
	CategoryTraining Category = "TRAINING"
	CategoryESG      Category = "ESG"
	CategoryBounty   Category = "BOUNTY"
	CategoryPayroll  Category = "PAYROLL"
)

// Categories returns every supported category.
func Categories() []Category {
	return []Category{CategoryTraining, CategoryESG, CategoryBounty, CategoryPayroll}
}

// ParseCategory normalises raw into a known category.
func ParseCategory(raw string) (Category, error) {
	candidate := Category(strings.ToUpper(strings.TrimSpace(raw)))
	for _, c := range Categories() {
		if c == candidate {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
}

// Handle is the caller-supplied entropy identifying a session. Only its digest
// is persisted.
type Handle [32]byte

// IsZero reports whether the handle carries no entropy.
func (h Handle) IsZero() bool { return h == Handle{} }

// Status is the lifecycle state of a session.
type Status uint8

const (
	StatusUnissued Status = iota
	StatusActive
	StatusUsed
	StatusRevoked
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusUsed:
		return "used"
	case StatusRevoked:
		return "revoked"
	case StatusExpired:
		return "expired"
	default:
		return "unissued"
	}
}

// Session is the persisted record of a single-use capability token.
type Session struct {
	Digest        [32]byte
	Owner         string
	Category      string
	IssuedAt      uint64
	ExpiresAt     uint64
	Used          bool
	Active        bool
	BoundCampaign string
	// MaxAmount caps the value a grant may attach to the token. Zero means
	// uncapped.
	MaxAmount *big.Int
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.MaxAmount != nil {
		out.MaxAmount = new(big.Int).Set(s.MaxAmount)
	} else {
		out.MaxAmount = big.NewInt(0)
	}
	return &out
}

// StatusAt derives the lifecycle state at unix time now.
func (s *Session) StatusAt(now uint64) Status {
	switch {
	case s == nil:
		return StatusUnissued
	case s.Used:
		return StatusUsed
	case !s.Active:
		return StatusRevoked
	case now > s.ExpiresAt:
		return StatusExpired
	default:
		return StatusActive
	}
}

// IssueRequest describes a session to mint.
type IssueRequest struct {
	Handle        Handle
	Owner         string
	Category      Category
	TTL           time.Duration
	BoundCampaign string
	MaxAmount     *big.Int
}

// Stats aggregates the lifetime counters of the registry.
type Stats struct {
	TotalIssued   uint64
	TotalConsumed uint64
	TotalRevoked  uint64
}
