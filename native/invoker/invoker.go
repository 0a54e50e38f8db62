package invoker

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/events"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/state"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/campaign"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/reimburse"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/session"
)

// DefaultPrincipal is the identity the invoker grants and reimburses under.
const DefaultPrincipal = "module:invoker"

var (
	ErrInvalidToken  = errors.New("invoker: invalid token")
	ErrNotConfigured = errors.New("invoker: engines not configured")
)

var keySequence = state.Key("invoker", "sequence")

// Reimbursement asks the invoker to pay the relayer back once the grant has
// committed.
type Reimbursement struct {
	Relayer   string
	Amount    *big.Int
	Reference [32]byte
}

// Item is a single grant request relayed on behalf of a principal.
type Item struct {
	Handle         session.Handle
	CampaignID     string
	OverrideAmount *big.Int
	Reimbursement  *Reimbursement
}

// Outcome reports the result of one invocation. Err is nil on success.
type Outcome struct {
	Sequence  uint64
	Principal string
	Amount    *big.Int
	Err       error
	Reason    string
	// Reimbursed is set when a requested reimbursement was paid.
	// ReimbursementErr carries its failure; the grant stands either way.
	Reimbursed       *reimburse.Receipt
	ReimbursementErr error
	// AuditErr is set when the audit sequence could not be persisted.
	AuditErr error
}

// Succeeded reports whether the grant committed.
func (o Outcome) Succeeded() bool { return o.Err == nil }

// BatchResult aggregates a best-effort batch.
type BatchResult struct {
	SuccessCount int
	Outcomes     []Outcome
}

// Invoker is the relayer-facing entry point: it pre-validates the token,
// grants under its own principal and records one audit event per call.
type Invoker struct {
	ledger     *state.Ledger
	access     common.AccessControl
	sessions   *session.Engine
	campaigns  *campaign.Engine
	reimburser *reimburse.Engine
	emitter    events.Emitter
	clock      common.Clock
	principal  string
}

// New constructs an invoker. The reimbursement engine is optional.
func New(ledger *state.Ledger, access common.AccessControl, sessions *session.Engine, campaigns *campaign.Engine, reimburser *reimburse.Engine) *Invoker {
	return &Invoker{
		ledger:     ledger,
		access:     access,
		sessions:   sessions,
		campaigns:  campaigns,
		reimburser: reimburser,
		emitter:    events.NoopEmitter{},
		clock:      common.SystemClock{},
		principal:  DefaultPrincipal,
	}
}

// SetEmitter configures the audit event sink.
func (i *Invoker) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		i.emitter = events.NoopEmitter{}
		return
	}
	i.emitter = emitter
}

// SetClock overrides the time source stamped on audit events.
func (i *Invoker) SetClock(clock common.Clock) {
	if clock == nil {
		clock = common.SystemClock{}
	}
	i.clock = clock
}

// SetPrincipal overrides the invoker identity. It must hold
// common.CapRewardGranter and, for reimbursements, common.CapRelayer.
func (i *Invoker) SetPrincipal(principal string) {
	if trimmed := strings.TrimSpace(principal); trimmed != "" {
		i.principal = trimmed
	}
}

// Principal returns the invoker identity.
func (i *Invoker) Principal() string { return i.principal }

// Invoke processes a single item.
func (i *Invoker) Invoke(ctx context.Context, caller string, item Item) Outcome {
	outcome := i.grant(ctx, caller, item)
	if outcome.Err != nil {
		outcome.Reason = outcome.Err.Error()
	} else if item.Reimbursement != nil {
		outcome.Reimbursed, outcome.ReimbursementErr = i.reimburse(ctx, caller, *item.Reimbursement)
	}
	outcome.Sequence, outcome.AuditErr = i.audit(ctx, caller, item, outcome)
	return outcome
}

// InvokeBatch processes every item independently. A failing item never
// aborts or rolls back the others.
func (i *Invoker) InvokeBatch(ctx context.Context, caller string, items []Item) BatchResult {
	result := BatchResult{Outcomes: make([]Outcome, 0, len(items))}
	for _, item := range items {
		outcome := i.Invoke(ctx, caller, item)
		if outcome.Succeeded() {
			result.SuccessCount++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result
}

func (i *Invoker) grant(ctx context.Context, caller string, item Item) Outcome {
	if i.sessions == nil || i.campaigns == nil {
		return Outcome{Err: ErrNotConfigured}
	}
	if err := common.Require(ctx, i.access, caller, common.CapRelayer); err != nil {
		return Outcome{Err: err}
	}
	if _, err := i.sessions.Inspect(ctx, item.Handle); err != nil {
		return Outcome{Err: fmt.Errorf("%w: %w", ErrInvalidToken, err)}
	}
	res, err := i.campaigns.Grant(ctx, i.principal, campaign.GrantRequest{
		Handle:         item.Handle,
		CampaignID:     item.CampaignID,
		OverrideAmount: item.OverrideAmount,
	})
	if err != nil {
		return Outcome{Err: err}
	}
	return Outcome{Principal: res.Principal, Amount: res.Amount}
}

func (i *Invoker) reimburse(ctx context.Context, caller string, req Reimbursement) (*reimburse.Receipt, error) {
	if i.reimburser == nil {
		return nil, ErrNotConfigured
	}
	relayer := strings.TrimSpace(req.Relayer)
	if relayer == "" {
		relayer = caller
	}
	return i.reimburser.Reimburse(ctx, i.principal, relayer, req.Amount, req.Reference)
}

func (i *Invoker) audit(ctx context.Context, caller string, item Item, outcome Outcome) (uint64, error) {
	var sequence uint64
	err := i.ledger.Update(ctx, func(_ context.Context, tx *state.Tx) error {
		var err error
		sequence, err = tx.Increment(keySequence, 1)
		if err != nil {
			return err
		}
		evt := events.Invocation{
			Sequence:   sequence,
			Caller:     caller,
			CampaignID: strings.TrimSpace(item.CampaignID),
			Principal:  outcome.Principal,
			Amount:     common.CloneAmount(outcome.Amount),
			Success:    outcome.Succeeded(),
			Reason:     outcome.Reason,
			Timestamp:  common.Unix(i.clock),
		}
		tx.OnCommit(func() { i.emitter.Emit(evt) })
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sequence, nil
}

// Sequence returns the last audit sequence number issued.
func (i *Invoker) Sequence(ctx context.Context) (uint64, error) {
	var sequence uint64
	err := i.ledger.View(ctx, func(tx *state.Tx) error {
		var err error
		sequence, err = tx.GetUint64(keySequence)
		return err
	})
	return sequence, err
}
