package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"time"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/services/rewardd"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/services/rewardd/audit"
)

type options struct {
	ConfigPath  string
	OutPath     string
	ParquetPath string
	Since       time.Duration
	Strict      bool
}

type campaignReport struct {
	CampaignID      string `json:"campaign_id"`
	Distributed     string `json:"distributed"`
	Recomputed      string `json:"recomputed"`
	CompletionCount uint64 `json:"completion_count"`
	Records         uint64 `json:"records"`
	Consistent      bool   `json:"consistent"`
}

type report struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	Consistent      bool             `json:"consistent"`
	Campaigns       []campaignReport `json:"campaigns"`
	RewardReserve   string           `json:"reward_reserve"`
	VaultBalance    string           `json:"vault_balance"`
	TotalReimbursed string           `json:"total_reimbursed"`
	ExportedEvents  int              `json:"exported_events,omitempty"`
}

func main() {
	var opts options
	flag.StringVar(&opts.ConfigPath, "config", "services/rewardd/config.yaml", "path to rewardd configuration")
	flag.StringVar(&opts.OutPath, "out", "-", "report destination, - for stdout")
	flag.StringVar(&opts.ParquetPath, "parquet", "", "export audit events to this parquet file")
	flag.DurationVar(&opts.Since, "since", 0, "only export events newer than this window")
	flag.BoolVar(&opts.Strict, "strict", false, "exit with non-zero code when an inconsistency is found")
	flag.Parse()

	consistent, err := run(context.Background(), opts, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !consistent && opts.Strict {
		os.Exit(2)
	}
}

func run(ctx context.Context, opts options, stdout io.Writer) (bool, error) {
	cfg, err := rewardd.LoadConfig(opts.ConfigPath)
	if err != nil {
		return false, fmt.Errorf("load config: %w", err)
	}
	db, err := rewardd.OpenDatabase(cfg.Storage)
	if err != nil {
		return false, fmt.Errorf("open ledger: %w", err)
	}
	defer db.Close()

	engines, err := rewardd.NewEngines(ctx, db, rewardd.EngineOptions{Treasury: cfg.Treasury})
	if err != nil {
		return false, err
	}
	out, err := reconcile(ctx, engines)
	if err != nil {
		return false, err
	}

	if opts.ParquetPath != "" {
		if cfg.Audit.Driver == "" {
			return false, errors.New("parquet export requires an audit database")
		}
		exported, err := export(ctx, cfg.Audit, opts)
		if err != nil {
			return false, err
		}
		out.ExportedEvents = exported
	}

	if err := writeReport(out, opts.OutPath, stdout); err != nil {
		return false, err
	}
	return out.Consistent, nil
}

// reconcile recomputes every campaign total from its grant records.
func reconcile(ctx context.Context, engines *rewardd.Engines) (*report, error) {
	out := &report{GeneratedAt: time.Now().UTC(), Consistent: true, Campaigns: []campaignReport{}}
	campaigns, err := engines.Campaigns.Campaigns(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range campaigns {
		result, err := engines.Campaigns.Audit(ctx, c.ID)
		if err != nil && !errors.Is(err, common.ErrInvariantViolation) {
			return nil, fmt.Errorf("audit %s: %w", c.ID, err)
		}
		entry := campaignReport{
			CampaignID:      result.CampaignID,
			Distributed:     amount(result.Distributed),
			Recomputed:      amount(result.Recomputed),
			CompletionCount: result.CompletionCount,
			Records:         result.Records,
			Consistent:      result.Consistent(),
		}
		if !entry.Consistent {
			out.Consistent = false
		}
		out.Campaigns = append(out.Campaigns, entry)
	}

	emission, err := engines.Accrual.Emission(ctx)
	if err != nil {
		return nil, err
	}
	out.RewardReserve = amount(emission.RewardReserve)
	vault, err := engines.Bank.BalanceOf(ctx, engines.Accrual.Vault())
	if err != nil {
		return nil, err
	}
	out.VaultBalance = amount(vault)
	if vault.Cmp(orZero(emission.RewardReserve)) < 0 {
		out.Consistent = false
	}

	global, err := engines.Reimburse.GlobalQuota(ctx)
	if err != nil {
		return nil, err
	}
	out.TotalReimbursed = amount(global.TotalReimbursed)
	return out, nil
}

func export(ctx context.Context, cfg rewardd.AuditConfig, opts options) (int, error) {
	db, err := audit.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return 0, err
	}
	store, err := audit.NewStore(db, nil)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	query := audit.Query{Limit: 1_000_000}
	if opts.Since > 0 {
		query.Since = time.Now().Add(-opts.Since)
	}
	records, err := store.List(ctx, query)
	if err != nil {
		return 0, err
	}
	if err := audit.WriteParquet(opts.ParquetPath, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func writeReport(out *report, path string, stdout io.Writer) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" || path == "-" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
