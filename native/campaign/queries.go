package campaign

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/state"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
)

// Campaign returns a copy of the campaign.
func (e *Engine) Campaign(ctx context.Context, id string) (*Campaign, error) {
	var out *Campaign
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		var err error
		out, err = loadCampaign(tx, strings.TrimSpace(id))
		return err
	})
	return out, err
}

// Campaigns lists every campaign in creation order.
func (e *Engine) Campaigns(ctx context.Context) ([]*Campaign, error) {
	var out []*Campaign
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		n, err := tx.ListLen(keyIndex)
		if err != nil {
			return err
		}
		out = make([]*Campaign, 0, n)
		for i := uint64(0); i < n; i++ {
			var id string
			if _, err := tx.ListItem(keyIndex, i, &id); err != nil {
				return err
			}
			c, err := loadCampaign(tx, id)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

// RemainingBudget returns the unspent portion of a campaign's budget.
func (e *Engine) RemainingBudget(ctx context.Context, id string) (*big.Int, error) {
	c, err := e.Campaign(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Remaining(), nil
}

// HasCompleted reports whether principal already received a grant from the
// campaign.
func (e *Engine) HasCompleted(ctx context.Context, principal, id string) (bool, error) {
	var done bool
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		var err error
		done, err = tx.Has(completionKey(strings.TrimSpace(id), strings.TrimSpace(principal)))
		return err
	})
	return done, err
}

// Records returns the campaign's reward records in grant order.
func (e *Engine) Records(ctx context.Context, id string) ([]RewardRecord, error) {
	var out []RewardRecord
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		var err error
		out, err = readRecords(tx, strings.TrimSpace(id))
		return err
	})
	return out, err
}

func readRecords(tx *state.Tx, id string) ([]RewardRecord, error) {
	prefix := recordsPrefix(id)
	n, err := tx.ListLen(prefix)
	if err != nil {
		return nil, err
	}
	out := make([]RewardRecord, 0, n)
	for i := uint64(0); i < n; i++ {
		var record RewardRecord
		if _, err := tx.ListItem(prefix, i, &record); err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

// Audit recomputes a campaign's distributed total from its records. A
// mismatch is reported as common.ErrInvariantViolation alongside the report.
func (e *Engine) Audit(ctx context.Context, id string) (AuditReport, error) {
	var report AuditReport
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		c, err := loadCampaign(tx, strings.TrimSpace(id))
		if err != nil {
			return err
		}
		records, err := readRecords(tx, c.ID)
		if err != nil {
			return err
		}
		sum := big.NewInt(0)
		for _, record := range records {
			sum.Add(sum, common.CloneAmount(record.Amount))
		}
		report = AuditReport{
			CampaignID:      c.ID,
			Distributed:     c.Distributed,
			Recomputed:      sum,
			CompletionCount: c.CompletionCount,
			Records:         uint64(len(records)),
		}
		return nil
	})
	if err != nil {
		return AuditReport{}, err
	}
	if !report.Consistent() {
		return report, fmt.Errorf("%w: campaign %s distributed %s, records sum %s", common.ErrInvariantViolation, report.CampaignID, report.Distributed, report.Recomputed)
	}
	return report, nil
}
