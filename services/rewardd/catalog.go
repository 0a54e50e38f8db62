package rewardd

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/state"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/accrual"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/campaign"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/reimburse"
)

var keyGenesisApplied = state.Key("rewardd", "genesis")

// Catalog is the declarative ledger setup applied at startup. Applying the
// same catalog twice leaves the ledger unchanged.
type Catalog struct {
	Operator  string         `toml:"operator"`
	Roles     []RoleGrant    `toml:"roles"`
	Tiers     []TierSpec     `toml:"tiers"`
	Pools     []PoolSpec     `toml:"pools"`
	Limits    *LimitsSpec    `toml:"limits"`
	Campaigns []CampaignSpec `toml:"campaigns"`
	Balances  []BalanceSpec  `toml:"balances"`
}

// RoleGrant assigns capabilities to a principal.
type RoleGrant struct {
	Principal    string   `toml:"principal"`
	Capabilities []string `toml:"capabilities"`
}

// TierSpec declares an accrual lock tier.
type TierSpec struct {
	ID                  string `toml:"id"`
	LockSeconds         uint64 `toml:"lock_seconds"`
	RewardMultiplierBps uint64 `toml:"reward_multiplier_bps"`
	WeightMultiplierBps uint64 `toml:"weight_multiplier_bps"`
	MinStake            string `toml:"min_stake"`
}

// PoolSpec declares an accrual pool.
type PoolSpec struct {
	ID     string `toml:"id"`
	Weight uint64 `toml:"weight"`
}

// LimitsSpec declares reimbursement caps. Empty caps are disabled.
type LimitsSpec struct {
	PerTxCap        string `toml:"per_tx_cap"`
	RelayerDailyCap string `toml:"relayer_daily_cap"`
	GlobalDailyCap  string `toml:"global_daily_cap"`
	PeriodSeconds   uint64 `toml:"period_seconds"`
}

// CampaignSpec declares a bootstrap campaign.
type CampaignSpec struct {
	ID              string `toml:"id"`
	Name            string `toml:"name"`
	Category        string `toml:"category"`
	RewardPerAction string `toml:"reward_per_action"`
	TotalBudget     string `toml:"total_budget"`
	StartTime       uint64 `toml:"start_time"`
	EndTime         uint64 `toml:"end_time"`
}

// BalanceSpec seeds an account balance on first boot.
type BalanceSpec struct {
	Account string `toml:"account"`
	Amount  string `toml:"amount"`
}

// LoadCatalog decodes a TOML catalog, rejecting unknown keys.
func LoadCatalog(path string) (*Catalog, error) {
	var catalog Catalog
	meta, err := toml.DecodeFile(path, &catalog)
	if err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("catalog: unknown fields %v", undecoded)
	}
	catalog.Operator = strings.TrimSpace(catalog.Operator)
	if catalog.Operator == "" {
		return nil, errors.New("catalog: operator required")
	}
	return &catalog, nil
}

// Apply installs the catalog through the engines under the operator
// principal. It only runs against a ledger that has not been seeded yet;
// after that roles, tiers and limits belong to the admin API and a restart
// must not undo revocations or runtime changes.
func (c *Catalog) Apply(ctx context.Context, e *Engines) error {
	if c == nil {
		return nil
	}
	applied, err := genesisApplied(ctx, e)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if applied {
		return nil
	}
	op := c.Operator
	if err := e.Roles.Bootstrap(ctx, op, common.CapAdmin, common.CapCampaignManager, common.CapRewardsManager); err != nil {
		return fmt.Errorf("catalog: bootstrap operator: %w", err)
	}
	for _, grant := range c.Roles {
		caps := make([]common.Capability, 0, len(grant.Capabilities))
		for _, raw := range grant.Capabilities {
			capability, err := common.ParseCapability(raw)
			if err != nil {
				return fmt.Errorf("catalog: role %s: %w", grant.Principal, err)
			}
			caps = append(caps, capability)
		}
		if err := e.Roles.Bootstrap(ctx, grant.Principal, caps...); err != nil {
			return fmt.Errorf("catalog: role %s: %w", grant.Principal, err)
		}
	}
	for _, spec := range c.Tiers {
		minStake, err := parseOptionalAmount(spec.MinStake)
		if err != nil {
			return fmt.Errorf("catalog: tier %s min_stake: %w", spec.ID, err)
		}
		tier := accrual.Tier{
			ID:                  spec.ID,
			LockDuration:        spec.LockSeconds,
			RewardMultiplierBps: spec.RewardMultiplierBps,
			WeightMultiplierBps: spec.WeightMultiplierBps,
			MinStake:            minStake,
		}
		if err := e.Accrual.SetTier(ctx, op, tier); err != nil {
			return fmt.Errorf("catalog: tier %s: %w", spec.ID, err)
		}
	}
	for _, spec := range c.Pools {
		if _, err := e.Accrual.CreatePool(ctx, op, spec.ID, spec.Weight); err != nil && !errors.Is(err, accrual.ErrPoolExists) {
			return fmt.Errorf("catalog: pool %s: %w", spec.ID, err)
		}
	}
	if c.Limits != nil {
		limits, err := c.Limits.limits()
		if err != nil {
			return fmt.Errorf("catalog: limits: %w", err)
		}
		if err := e.Reimburse.SetLimits(ctx, op, limits); err != nil {
			return fmt.Errorf("catalog: limits: %w", err)
		}
	}
	for _, spec := range c.Campaigns {
		params, err := spec.params()
		if err != nil {
			return fmt.Errorf("catalog: campaign %s: %w", spec.ID, err)
		}
		if _, err := e.Campaigns.CreateCampaign(ctx, op, params); err != nil && !errors.Is(err, campaign.ErrCampaignExists) {
			return fmt.Errorf("catalog: campaign %s: %w", spec.ID, err)
		}
	}
	return c.seedBalances(ctx, e)
}

func genesisApplied(ctx context.Context, e *Engines) (bool, error) {
	var applied bool
	err := e.Ledger.View(ctx, func(tx *state.Tx) error {
		_, err := tx.Get(keyGenesisApplied, &applied)
		return err
	})
	return applied, err
}

// seedBalances credits the genesis balances and marks the ledger as seeded in
// the same transition.
func (c *Catalog) seedBalances(ctx context.Context, e *Engines) error {
	return e.Ledger.Update(ctx, func(txCtx context.Context, tx *state.Tx) error {
		var applied bool
		if _, err := tx.Get(keyGenesisApplied, &applied); err != nil {
			return err
		}
		if applied {
			return nil
		}
		for _, spec := range c.Balances {
			amount, err := parseAmount(spec.Amount)
			if err != nil {
				return fmt.Errorf("catalog: balance %s: %w", spec.Account, err)
			}
			if err := e.Bank.Credit(txCtx, spec.Account, amount); err != nil {
				return fmt.Errorf("catalog: balance %s: %w", spec.Account, err)
			}
		}
		return tx.Put(keyGenesisApplied, true)
	})
}

func (l *LimitsSpec) limits() (reimburse.Limits, error) {
	perTx, err := parseOptionalAmount(l.PerTxCap)
	if err != nil {
		return reimburse.Limits{}, fmt.Errorf("per_tx_cap: %w", err)
	}
	relayer, err := parseOptionalAmount(l.RelayerDailyCap)
	if err != nil {
		return reimburse.Limits{}, fmt.Errorf("relayer_daily_cap: %w", err)
	}
	global, err := parseOptionalAmount(l.GlobalDailyCap)
	if err != nil {
		return reimburse.Limits{}, fmt.Errorf("global_daily_cap: %w", err)
	}
	return reimburse.Limits{
		PerTxCap:        perTx,
		RelayerDailyCap: relayer,
		GlobalDailyCap:  global,
		Period:          l.PeriodSeconds,
	}, nil
}

func (s CampaignSpec) params() (campaign.Params, error) {
	reward, err := parseAmount(s.RewardPerAction)
	if err != nil {
		return campaign.Params{}, fmt.Errorf("reward_per_action: %w", err)
	}
	budget, err := parseAmount(s.TotalBudget)
	if err != nil {
		return campaign.Params{}, fmt.Errorf("total_budget: %w", err)
	}
	return campaign.Params{
		ID:              s.ID,
		Name:            s.Name,
		Category:        s.Category,
		RewardPerAction: reward,
		TotalBudget:     budget,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
	}, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", raw)
	}
	return amount, nil
}

func parseOptionalAmount(raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return big.NewInt(0), nil
	}
	return parseAmount(raw)
}
