package events

import (
	"math/big"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/types"
)

const (
	// TypeCampaignCreated is emitted when a campaign is registered.
	TypeCampaignCreated = "campaign.created"
	// TypeCampaignBudgetAdded is emitted when a campaign budget grows.
	TypeCampaignBudgetAdded = "campaign.budget.added"
	// TypeCampaignUpdated is emitted when a manager toggles a campaign or
	// changes its reward per action.
	TypeCampaignUpdated = "campaign.updated"
	// TypeRewardGranted is emitted for every successful campaign grant.
	TypeRewardGranted = "campaign.reward.granted"
)

// CampaignCreated captures the immutable metadata of a new campaign.
type CampaignCreated struct {
	ID              string
	Name            string
	Category        string
	RewardPerAction *big.Int
	TotalBudget     *big.Int
	StartTime       uint64
	EndTime         uint64
}

// EventType implements the Event interface.
func (CampaignCreated) EventType() string { return TypeCampaignCreated }

// Event converts the payload into its attribute form.
func (e CampaignCreated) Event() *types.Event {
	attrs := map[string]string{
		"campaignId":      e.ID,
		"category":        e.Category,
		"rewardPerAction": formatAmount(e.RewardPerAction),
		"totalBudget":     formatAmount(e.TotalBudget),
		"startTime":       formatUint(e.StartTime),
		"endTime":         formatUint(e.EndTime),
	}
	setIfPresent(attrs, "name", e.Name)
	return &types.Event{Type: TypeCampaignCreated, Attributes: attrs}
}

// CampaignBudgetAdded captures a budget top-up.
type CampaignBudgetAdded struct {
	ID          string
	Added       *big.Int
	TotalBudget *big.Int
}

// EventType implements the Event interface.
func (CampaignBudgetAdded) EventType() string { return TypeCampaignBudgetAdded }

// Event converts the payload into its attribute form.
func (e CampaignBudgetAdded) Event() *types.Event {
	return &types.Event{Type: TypeCampaignBudgetAdded, Attributes: map[string]string{
		"campaignId":  e.ID,
		"added":       formatAmount(e.Added),
		"totalBudget": formatAmount(e.TotalBudget),
	}}
}

// CampaignUpdated captures manager-driven changes to a campaign.
type CampaignUpdated struct {
	ID              string
	Active          bool
	RewardPerAction *big.Int
}

// EventType implements the Event interface.
func (CampaignUpdated) EventType() string { return TypeCampaignUpdated }

// Event converts the payload into its attribute form.
func (e CampaignUpdated) Event() *types.Event {
	return &types.Event{Type: TypeCampaignUpdated, Attributes: map[string]string{
		"campaignId":      e.ID,
		"active":          formatBool(e.Active),
		"rewardPerAction": formatAmount(e.RewardPerAction),
	}}
}

// RewardGranted mirrors an appended reward record.
type RewardGranted struct {
	CampaignID  string
	Sequence    uint64
	Principal   string
	Amount      *big.Int
	Distributed *big.Int
	TokenRef    [32]byte
	Timestamp   uint64
}

// EventType implements the Event interface.
func (RewardGranted) EventType() string { return TypeRewardGranted }

// Event converts the payload into its attribute form.
func (e RewardGranted) Event() *types.Event {
	return &types.Event{Type: TypeRewardGranted, Attributes: map[string]string{
		"campaignId":  e.CampaignID,
		"sequence":    formatUint(e.Sequence),
		"principal":   e.Principal,
		"amount":      formatAmount(e.Amount),
		"distributed": formatAmount(e.Distributed),
		"tokenRef":    withHexPrefix(e.TokenRef[:]),
		"timestamp":   formatUint(e.Timestamp),
	}}
}
