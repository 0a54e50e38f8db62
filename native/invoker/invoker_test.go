package invoker

import (
	"context"
	"crypto/rand"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/events"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/state"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/bank"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/campaign"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/reimburse"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/session"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/storage"
)

type fixture struct {
	clock       *common.ManualClock
	bank        *bank.Ledger
	sessions    *session.Engine
	campaigns   *campaign.Engine
	invoker     *Invoker
	invocations []events.Invocation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	ledger := state.NewLedger(storage.NewMemDB())
	roles := state.NewRoleTable(ledger)
	require.NoError(t, roles.Bootstrap(ctx, "issuer", common.CapIssuer))
	require.NoError(t, roles.Bootstrap(ctx, "relayer", common.CapRelayer))
	require.NoError(t, roles.Bootstrap(ctx, campaign.DefaultPrincipal, common.CapConsumer))
	require.NoError(t, roles.Bootstrap(ctx, DefaultPrincipal, common.CapRewardGranter, common.CapRelayer))
	require.NoError(t, roles.Bootstrap(ctx, "manager", common.CapCampaignManager))

	f := &fixture{clock: common.NewManualClock(time.Unix(1_700_000_000, 0))}
	f.bank = bank.NewLedger(ledger)
	require.NoError(t, f.bank.Credit(ctx, "treasury", big.NewInt(1_000)))

	f.sessions = session.NewEngine(ledger, roles)
	f.sessions.SetClock(f.clock)
	f.campaigns = campaign.NewEngine(ledger, roles, f.sessions, f.bank)
	f.campaigns.SetClock(f.clock)
	reimburser := reimburse.NewEngine(ledger, roles, f.bank, "treasury")
	reimburser.SetClock(f.clock)
	reimburser.SetDefaultLimits(reimburse.Limits{PerTxCap: big.NewInt(10)})

	f.invoker = New(ledger, roles, f.sessions, f.campaigns, reimburser)
	f.invoker.SetClock(f.clock)
	f.invoker.SetEmitter(events.EmitterFunc(func(e events.Event) {
		if inv, ok := e.(events.Invocation); ok {
			f.invocations = append(f.invocations, inv)
		}
	}))

	_, err := f.campaigns.CreateCampaign(ctx, "manager", campaign.Params{
		ID:              "course-101",
		RewardPerAction: big.NewInt(25),
		TotalBudget:     big.NewInt(1_000),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) token(t *testing.T, owner string, ttl time.Duration) session.Handle {
	t.Helper()
	var handle session.Handle
	_, err := rand.Read(handle[:])
	require.NoError(t, err)
	_, err = f.sessions.Issue(context.Background(), "issuer", session.IssueRequest{
		Handle:   handle,
		Owner:    owner,
		Category: session.CategoryTraining,
		TTL:      ttl,
	})
	require.NoError(t, err)
	return handle
}

func TestInvokeGrantsAndAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out := f.invoker.Invoke(ctx, "relayer", Item{Handle: f.token(t, "alice", time.Hour), CampaignID: "course-101"})
	require.NoError(t, out.Err)
	require.Equal(t, uint64(1), out.Sequence)
	require.Equal(t, "alice", out.Principal)
	require.Equal(t, "25", out.Amount.String())

	balance, err := f.bank.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "25", balance.String())

	require.Len(t, f.invocations, 1)
	require.True(t, f.invocations[0].Success)
}

func TestInvokeRejectsInvalidTokenFast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var unknown session.Handle
	unknown[0] = 1
	out := f.invoker.Invoke(ctx, "relayer", Item{Handle: unknown, CampaignID: "course-101"})
	require.ErrorIs(t, out.Err, ErrInvalidToken)
	require.ErrorIs(t, out.Err, session.ErrTokenNotFound)
	require.NotEmpty(t, out.Reason)
	require.Equal(t, uint64(1), out.Sequence)

	out = f.invoker.Invoke(ctx, "stranger", Item{Handle: f.token(t, "alice", time.Hour), CampaignID: "course-101"})
	require.ErrorIs(t, out.Err, common.ErrUnauthorized)
	require.Equal(t, uint64(2), out.Sequence)

	seq, err := f.invoker.Sequence(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), seq)
	require.Len(t, f.invocations, 2)
	require.False(t, f.invocations[1].Success)
}

func TestInvokeBatchIsBestEffort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	items := make([]Item, 0, 5)
	for n, owner := range []string{"u1", "u2", "u3", "u4", "u5"} {
		ttl := time.Hour
		if n == 2 {
			ttl = time.Minute
		}
		items = append(items, Item{Handle: f.token(t, owner, ttl), CampaignID: "course-101"})
	}
	f.clock.Advance(2 * time.Minute)

	result := f.invoker.InvokeBatch(ctx, "relayer", items)
	require.Equal(t, 4, result.SuccessCount)
	require.Len(t, result.Outcomes, 5)
	for n, out := range result.Outcomes {
		require.Equal(t, uint64(n+1), out.Sequence)
		if n == 2 {
			require.ErrorIs(t, out.Err, ErrInvalidToken)
			require.ErrorIs(t, out.Err, session.ErrTokenExpired)
			continue
		}
		require.NoError(t, out.Err)
	}

	c, err := f.campaigns.Campaign(ctx, "course-101")
	require.NoError(t, err)
	require.Equal(t, "100", c.Distributed.String())
	done, err := f.campaigns.HasCompleted(ctx, "u3", "course-101")
	require.NoError(t, err)
	require.False(t, done)
}

func TestInvokeReimbursesRelayer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ref [32]byte
	ref[0] = 0x42

	out := f.invoker.Invoke(ctx, "relayer", Item{
		Handle:        f.token(t, "alice", time.Hour),
		CampaignID:    "course-101",
		Reimbursement: &Reimbursement{Amount: big.NewInt(7), Reference: ref},
	})
	require.NoError(t, out.Err)
	require.NoError(t, out.ReimbursementErr)
	require.Equal(t, "relayer", out.Reimbursed.Relayer)

	// Reusing the reference fails the reimbursement but keeps the grant.
	out = f.invoker.Invoke(ctx, "relayer", Item{
		Handle:        f.token(t, "bob", time.Hour),
		CampaignID:    "course-101",
		Reimbursement: &Reimbursement{Amount: big.NewInt(7), Reference: ref},
	})
	require.NoError(t, out.Err)
	require.ErrorIs(t, out.ReimbursementErr, reimburse.ErrReferenceReused)

	bob, err := f.bank.BalanceOf(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, "25", bob.String())
	relayer, err := f.bank.BalanceOf(ctx, "relayer")
	require.NoError(t, err)
	require.Equal(t, "7", relayer.String())
}
