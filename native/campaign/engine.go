package campaign

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/events"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/state"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/session"
)

// ModuleName identifies the ledger for pause toggles.
const ModuleName = "campaign"

// DefaultPrincipal is the identity the ledger consumes sessions under.
const DefaultPrincipal = "module:campaign"

var (
	ErrCampaignIDRequired = errors.New("campaign: id required")
	ErrZeroAmount         = errors.New("campaign: amount must be positive")
	ErrCampaignExists     = errors.New("campaign: already exists")
	ErrInvalidWindow      = errors.New("campaign: end time must follow start time")
	ErrCampaignNotFound   = errors.New("campaign: not found")
	ErrCampaignInactive   = errors.New("campaign: inactive")
	ErrNotStarted         = errors.New("campaign: not started")
	ErrEnded              = errors.New("campaign: ended")
	ErrCampaignMismatch   = errors.New("campaign: token bound to another campaign")
	ErrCategoryMismatch   = errors.New("campaign: token category mismatch")
	ErrAmountAboveCeiling = errors.New("campaign: amount above token ceiling")
	ErrBudgetExhausted    = errors.New("campaign: budget exhausted")
	ErrAlreadyCompleted   = errors.New("campaign: principal already completed")
	ErrNilDependency      = errors.New("campaign: session registry and value ledger required")
)

var keyIndex = state.Key("campaign", "index")

func campaignKey(id string) []byte { return state.Key("campaign", "record", id) }

func recordsPrefix(id string) []byte { return state.Key("campaign", "rewards", id) }

func completionKey(id, principal string) []byte {
	return state.Key("campaign", "completed", id, principal)
}

// Engine is the reward ledger: it redeems sessions against campaign budgets
// and credits the resulting value.
type Engine struct {
	ledger    *state.Ledger
	access    common.AccessControl
	pauses    common.PauseView
	sessions  *session.Engine
	bank      common.ValueLedger
	emitter   events.Emitter
	clock     common.Clock
	principal string
}

// NewEngine constructs the reward ledger.
func NewEngine(ledger *state.Ledger, access common.AccessControl, sessions *session.Engine, bank common.ValueLedger) *Engine {
	return &Engine{
		ledger:    ledger,
		access:    access,
		sessions:  sessions,
		bank:      bank,
		emitter:   events.NoopEmitter{},
		clock:     common.SystemClock{},
		principal: DefaultPrincipal,
	}
}

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetClock overrides the time source used for deterministic testing.
func (e *Engine) SetClock(clock common.Clock) {
	if clock == nil {
		clock = common.SystemClock{}
	}
	e.clock = clock
}

// SetPauses wires the module pause view.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetPrincipal overrides the identity used when consuming sessions.
func (e *Engine) SetPrincipal(principal string) {
	if trimmed := strings.TrimSpace(principal); trimmed != "" {
		e.principal = trimmed
	}
}

// Principal returns the identity used when consuming sessions. It must hold
// common.CapConsumer.
func (e *Engine) Principal() string { return e.principal }

func (e *Engine) now() uint64 { return common.Unix(e.clock) }

func loadCampaign(tx *state.Tx, id string) (*Campaign, error) {
	c := new(Campaign)
	ok, err := tx.Get(campaignKey(id), c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, id)
	}
	return c.Clone(), nil
}

// CreateCampaign registers a new active campaign.
func (e *Engine) CreateCampaign(ctx context.Context, caller string, params Params) (*Campaign, error) {
	if err := common.Guard(ctx, e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if err := common.Require(ctx, e.access, caller, common.CapCampaignManager); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(params.ID)
	if id == "" {
		return nil, ErrCampaignIDRequired
	}
	if !common.IsPositive(params.RewardPerAction) || !common.IsPositive(params.TotalBudget) {
		return nil, ErrZeroAmount
	}
	if params.EndTime != 0 && params.EndTime <= params.StartTime {
		return nil, ErrInvalidWindow
	}
	category := ""
	if strings.TrimSpace(params.Category) != "" {
		parsed, err := session.ParseCategory(params.Category)
		if err != nil {
			return nil, err
		}
		category = string(parsed)
	}
	c := &Campaign{
		ID:              id,
		Name:            strings.TrimSpace(params.Name),
		Category:        category,
		RewardPerAction: common.CloneAmount(params.RewardPerAction),
		TotalBudget:     common.CloneAmount(params.TotalBudget),
		Distributed:     big.NewInt(0),
		Active:          true,
		StartTime:       params.StartTime,
		EndTime:         params.EndTime,
	}
	err := e.ledger.Update(ctx, func(_ context.Context, tx *state.Tx) error {
		exists, err := tx.Has(campaignKey(id))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrCampaignExists, id)
		}
		if err := tx.Put(campaignKey(id), c); err != nil {
			return err
		}
		if _, err := tx.Append(keyIndex, id); err != nil {
			return err
		}
		tx.OnCommit(func() {
			e.emitter.Emit(events.CampaignCreated{
				ID:              c.ID,
				Name:            c.Name,
				Category:        c.Category,
				RewardPerAction: c.RewardPerAction,
				TotalBudget:     c.TotalBudget,
				StartTime:       c.StartTime,
				EndTime:         c.EndTime,
			})
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// AddBudget grows a campaign's budget.
func (e *Engine) AddBudget(ctx context.Context, caller, id string, amount *big.Int) (*Campaign, error) {
	if err := common.Guard(ctx, e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if err := common.Require(ctx, e.access, caller, common.CapCampaignManager); err != nil {
		return nil, err
	}
	if !common.IsPositive(amount) {
		return nil, ErrZeroAmount
	}
	return e.mutate(ctx, id, func(c *Campaign) events.Event {
		c.TotalBudget.Add(c.TotalBudget, amount)
		return events.CampaignBudgetAdded{ID: c.ID, Added: common.CloneAmount(amount), TotalBudget: common.CloneAmount(c.TotalBudget)}
	})
}

// SetActive toggles whether the campaign accepts grants.
func (e *Engine) SetActive(ctx context.Context, caller, id string, active bool) (*Campaign, error) {
	if err := common.Guard(ctx, e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if err := common.Require(ctx, e.access, caller, common.CapCampaignManager); err != nil {
		return nil, err
	}
	return e.mutate(ctx, id, func(c *Campaign) events.Event {
		c.Active = active
		return events.CampaignUpdated{ID: c.ID, Active: c.Active, RewardPerAction: common.CloneAmount(c.RewardPerAction)}
	})
}

// SetRewardPerAction changes the default grant amount.
func (e *Engine) SetRewardPerAction(ctx context.Context, caller, id string, amount *big.Int) (*Campaign, error) {
	if err := common.Guard(ctx, e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if err := common.Require(ctx, e.access, caller, common.CapCampaignManager); err != nil {
		return nil, err
	}
	if !common.IsPositive(amount) {
		return nil, ErrZeroAmount
	}
	return e.mutate(ctx, id, func(c *Campaign) events.Event {
		c.RewardPerAction = common.CloneAmount(amount)
		return events.CampaignUpdated{ID: c.ID, Active: c.Active, RewardPerAction: common.CloneAmount(c.RewardPerAction)}
	})
}

func (e *Engine) mutate(ctx context.Context, id string, apply func(*Campaign) events.Event) (*Campaign, error) {
	var out *Campaign
	err := e.ledger.Update(ctx, func(_ context.Context, tx *state.Tx) error {
		c, err := loadCampaign(tx, strings.TrimSpace(id))
		if err != nil {
			return err
		}
		evt := apply(c)
		if err := tx.Put(campaignKey(c.ID), c); err != nil {
			return err
		}
		tx.OnCommit(func() { e.emitter.Emit(evt) })
		out = c.Clone()
		return nil
	})
	return out, err
}

func (e *Engine) checkWindow(c *Campaign, now uint64) error {
	switch {
	case !c.Active:
		return ErrCampaignInactive
	case now < c.StartTime:
		return ErrNotStarted
	case c.EndTime != 0 && now > c.EndTime:
		return ErrEnded
	}
	return nil
}

// Grant redeems a session against a campaign. Every check runs before the
// session is consumed, and the consume, the credit and the bookkeeping commit
// together or not at all.
func (e *Engine) Grant(ctx context.Context, caller string, req GrantRequest) (*GrantResult, error) {
	if err := common.Guard(ctx, e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if err := common.Require(ctx, e.access, caller, common.CapRewardGranter); err != nil {
		return nil, err
	}
	if e.sessions == nil || e.bank == nil {
		return nil, ErrNilDependency
	}
	id := strings.TrimSpace(req.CampaignID)
	if id == "" {
		return nil, ErrCampaignIDRequired
	}
	if req.OverrideAmount != nil && req.OverrideAmount.Sign() < 0 {
		return nil, ErrZeroAmount
	}

	var result *GrantResult
	err := e.ledger.Update(ctx, func(txCtx context.Context, tx *state.Tx) error {
		now := e.now()
		c, err := loadCampaign(tx, id)
		if err != nil {
			return err
		}
		if err := e.checkWindow(c, now); err != nil {
			return err
		}

		token, err := e.sessions.Inspect(txCtx, req.Handle)
		if err != nil {
			return err
		}
		if token.BoundCampaign != "" && token.BoundCampaign != c.ID {
			return ErrCampaignMismatch
		}
		if c.Category != "" && token.Category != c.Category {
			return ErrCategoryMismatch
		}

		amount := common.CloneAmount(c.RewardPerAction)
		if common.IsPositive(req.OverrideAmount) {
			amount = common.CloneAmount(req.OverrideAmount)
		}
		if common.IsPositive(token.MaxAmount) && amount.Cmp(token.MaxAmount) > 0 {
			return ErrAmountAboveCeiling
		}
		if amount.Cmp(c.Remaining()) > 0 {
			return ErrBudgetExhausted
		}
		completed, err := tx.Has(completionKey(c.ID, token.Owner))
		if err != nil {
			return err
		}
		if completed {
			return ErrAlreadyCompleted
		}

		principal, _, err := e.sessions.ConsumeInTx(txCtx, e.principal, req.Handle)
		if err != nil {
			return err
		}
		if err := e.bank.Credit(txCtx, principal, amount); err != nil {
			return fmt.Errorf("campaign: credit %s: %w", principal, err)
		}

		count, err := tx.ListLen(recordsPrefix(c.ID))
		if err != nil {
			return err
		}
		record := RewardRecord{
			Sequence:   count + 1,
			Principal:  principal,
			CampaignID: c.ID,
			Amount:     amount,
			Timestamp:  now,
			TokenRef:   session.Digest(req.Handle),
		}
		if _, err := tx.Append(recordsPrefix(c.ID), &record); err != nil {
			return err
		}
		c.Distributed.Add(c.Distributed, amount)
		c.CompletionCount++
		if c.Distributed.Cmp(c.TotalBudget) > 0 {
			return fmt.Errorf("%w: campaign %s distributed %s above budget %s", common.ErrInvariantViolation, c.ID, c.Distributed, c.TotalBudget)
		}
		if err := tx.Put(completionKey(c.ID, principal), true); err != nil {
			return err
		}
		if err := tx.Put(campaignKey(c.ID), c); err != nil {
			return err
		}

		distributed := common.CloneAmount(c.Distributed)
		tx.OnCommit(func() {
			e.emitter.Emit(events.RewardGranted{
				CampaignID:  record.CampaignID,
				Sequence:    record.Sequence,
				Principal:   record.Principal,
				Amount:      common.CloneAmount(record.Amount),
				Distributed: distributed,
				TokenRef:    record.TokenRef,
				Timestamp:   record.Timestamp,
			})
		})
		result = &GrantResult{Principal: principal, Amount: common.CloneAmount(amount), Record: record}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
