package rewardd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/events"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/state"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/accrual"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/bank"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/campaign"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/invoker"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/reimburse"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/session"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/storage"
)

// Engines bundles every control-plane component sharing one ledger.
type Engines struct {
	Ledger    *state.Ledger
	Roles     *state.RoleTable
	Pauses    *state.Pauses
	Bank      *bank.Ledger
	Sessions  *session.Engine
	Campaigns *campaign.Engine
	Invoker   *invoker.Invoker
	Accrual   *accrual.Engine
	Reimburse *reimburse.Engine
}

// EngineOptions tunes NewEngines.
type EngineOptions struct {
	Treasury      string
	Clock         common.Clock
	Emitter       events.Emitter
	SessionMaxTTL time.Duration
}

// NewEngines wires the engines over db. The internal module principals are
// granted the capabilities they need to call each other.
func NewEngines(ctx context.Context, db storage.Database, opts EngineOptions) (*Engines, error) {
	if db == nil {
		return nil, fmt.Errorf("rewardd: database required")
	}
	if strings.TrimSpace(opts.Treasury) == "" {
		return nil, fmt.Errorf("rewardd: treasury required")
	}
	if opts.Clock == nil {
		opts.Clock = common.SystemClock{}
	}
	if opts.Emitter == nil {
		opts.Emitter = events.NoopEmitter{}
	}

	ledger := state.NewLedger(db)
	roles := state.NewRoleTable(ledger)
	pauses := state.NewPauses(ledger, roles)
	balances := bank.NewLedger(ledger)

	sessions := session.NewEngine(ledger, roles)
	campaigns := campaign.NewEngine(ledger, roles, sessions, balances)
	reimburser := reimburse.NewEngine(ledger, roles, balances, opts.Treasury)
	invoke := invoker.New(ledger, roles, sessions, campaigns, reimburser)
	pools := accrual.NewEngine(ledger, roles, balances)

	if opts.SessionMaxTTL > 0 {
		sessions.SetMaxTTL(opts.SessionMaxTTL)
	}
	sessions.SetClock(opts.Clock)
	sessions.SetEmitter(opts.Emitter)
	sessions.SetPauses(pauses)
	campaigns.SetClock(opts.Clock)
	campaigns.SetEmitter(opts.Emitter)
	campaigns.SetPauses(pauses)
	reimburser.SetClock(opts.Clock)
	reimburser.SetEmitter(opts.Emitter)
	reimburser.SetPauses(pauses)
	invoke.SetClock(opts.Clock)
	invoke.SetEmitter(opts.Emitter)
	pools.SetClock(opts.Clock)
	pools.SetEmitter(opts.Emitter)
	pools.SetPauses(pauses)

	if err := roles.Bootstrap(ctx, campaigns.Principal(), common.CapConsumer); err != nil {
		return nil, fmt.Errorf("rewardd: bootstrap campaign principal: %w", err)
	}
	if err := roles.Bootstrap(ctx, invoke.Principal(), common.CapRewardGranter, common.CapRelayer); err != nil {
		return nil, fmt.Errorf("rewardd: bootstrap invoker principal: %w", err)
	}

	return &Engines{
		Ledger:    ledger,
		Roles:     roles,
		Pauses:    pauses,
		Bank:      balances,
		Sessions:  sessions,
		Campaigns: campaigns,
		Invoker:   invoke,
		Accrual:   pools,
		Reimburse: reimburser,
	}, nil
}

// OpenDatabase opens the configured ledger backend.
func OpenDatabase(cfg StorageConfig) (storage.Database, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemDB(), nil
	case "bolt":
		path := cfg.Path
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "ledger.bolt")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("rewardd: create storage dir: %w", err)
		}
		return storage.NewBoltDB(path, nil)
	case "", "leveldb":
		return storage.NewLevelDB(cfg.Path)
	default:
		return nil, fmt.Errorf("rewardd: unsupported storage backend %q", cfg.Backend)
	}
}
