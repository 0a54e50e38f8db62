package campaign

import (
	"math/big"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/session"
)

// Campaign is a budget-bounded reward program.
type Campaign struct {
	ID              string
	Name            string
	Category        string
	RewardPerAction *big.Int
	TotalBudget     *big.Int
	Distributed     *big.Int
	CompletionCount uint64
	Active          bool
	StartTime       uint64
	// EndTime of zero leaves the campaign open ended.
	EndTime uint64
}

// Clone returns a deep copy of the campaign.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	out := *c
	out.RewardPerAction = common.CloneAmount(c.RewardPerAction)
	out.TotalBudget = common.CloneAmount(c.TotalBudget)
	out.Distributed = common.CloneAmount(c.Distributed)
	return &out
}

// Remaining returns TotalBudget - Distributed.
func (c *Campaign) Remaining() *big.Int {
	return new(big.Int).Sub(common.CloneAmount(c.TotalBudget), common.CloneAmount(c.Distributed))
}

// Params describes a campaign to create.
type Params struct {
	ID              string
	Name            string
	Category        string
	RewardPerAction *big.Int
	TotalBudget     *big.Int
	StartTime       uint64
	EndTime         uint64
}

// RewardRecord is the immutable trace of a single grant.
type RewardRecord struct {
	Sequence   uint64
	Principal  string
	CampaignID string
	Amount     *big.Int
	Timestamp  uint64
	TokenRef   [32]byte
}

// GrantRequest redeems a session against a campaign. A nil or zero
// OverrideAmount grants the campaign's reward per action.
type GrantRequest struct {
	Handle         session.Handle
	CampaignID     string
	OverrideAmount *big.Int
}

// GrantResult describes a committed grant.
type GrantResult struct {
	Principal string
	Amount    *big.Int
	Record    RewardRecord
}

// AuditReport compares a campaign's running total against its records.
type AuditReport struct {
	CampaignID      string
	Distributed     *big.Int
	Recomputed      *big.Int
	CompletionCount uint64
	Records         uint64
}

// Consistent reports whether the running totals match the records.
func (r AuditReport) Consistent() bool {
	return r.Distributed.Cmp(r.Recomputed) == 0 && r.CompletionCount == r.Records
}
