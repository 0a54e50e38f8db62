package session

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/events"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/state"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/storage"
)

type fixture struct {
	engine *Engine
	ledger *state.Ledger
	roles  *state.RoleTable
	clock  *common.ManualClock
	events []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	ledger := state.NewLedger(storage.NewMemDB())
	roles := state.NewRoleTable(ledger)
	if err := roles.Bootstrap(ctx, "issuer", common.CapIssuer); err != nil {
		t.Fatalf("bootstrap issuer: %v", err)
	}
	if err := roles.Bootstrap(ctx, "consumer", common.CapConsumer); err != nil {
		t.Fatalf("bootstrap consumer: %v", err)
	}

	f := &fixture{
		ledger: ledger,
		roles:  roles,
		clock:  common.NewManualClock(time.Unix(1_700_000_000, 0)),
	}
	f.engine = NewEngine(ledger, roles)
	f.engine.SetClock(f.clock)
	f.engine.SetEmitter(events.EmitterFunc(func(e events.Event) { f.events = append(f.events, e) }))
	return f
}

func randomHandle(t *testing.T) Handle {
	t.Helper()
	var h Handle
	if _, err := rand.Read(h[:]); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return h
}

func (f *fixture) issue(t *testing.T, handle Handle, ttl time.Duration) [32]byte {
	t.Helper()
	digest, err := f.engine.Issue(context.Background(), "issuer", IssueRequest{
		Handle:   handle,
		Owner:    "alice",
		Category: CategoryTraining,
		TTL:      ttl,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return digest
}

func (f *fixture) status(t *testing.T, handle Handle) Status {
	t.Helper()
	status, err := f.engine.Status(context.Background(), handle)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	return status
}

func (f *fixture) stats(t *testing.T) Stats {
	t.Helper()
	stats, err := f.engine.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	return stats
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestIssueAndConsume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	handle := randomHandle(t)

	if digest := f.issue(t, handle, time.Hour); digest != Digest(handle) {
		t.Fatalf("issue returned digest %x, want %x", digest, Digest(handle))
	}
	if !f.engine.IsValid(ctx, handle) {
		t.Fatalf("fresh token reported invalid")
	}

	owner, bound, err := f.engine.Consume(ctx, "consumer", handle)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if owner != "alice" || bound != "" {
		t.Fatalf("unexpected consume result: owner=%q bound=%q", owner, bound)
	}
	if f.engine.IsValid(ctx, handle) {
		t.Fatalf("consumed token still valid")
	}
	if got := f.status(t, handle); got != StatusUsed {
		t.Fatalf("status %v, want %v", got, StatusUsed)
	}

	_, _, err = f.engine.Consume(ctx, "consumer", handle)
	expectErr(t, err, ErrTokenAlreadyUsed)

	if got := f.stats(t); got != (Stats{TotalIssued: 1, TotalConsumed: 1}) {
		t.Fatalf("unexpected stats: %+v", got)
	}
	if len(f.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(f.events))
	}
	if f.events[0].EventType() != events.TypeSessionIssued || f.events[1].EventType() != events.TypeSessionConsumed {
		t.Fatalf("unexpected events: %s, %s", f.events[0].EventType(), f.events[1].EventType())
	}
}

func TestIssueValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := IssueRequest{Handle: randomHandle(t), Owner: "alice", Category: CategoryESG, TTL: time.Hour}

	cases := map[string]struct {
		caller string
		mutate func(*IssueRequest)
		want   error
	}{
		"unauthorized":    {caller: "consumer", mutate: func(*IssueRequest) {}, want: common.ErrUnauthorized},
		"missing owner":   {caller: "issuer", mutate: func(r *IssueRequest) { r.Owner = " " }, want: ErrOwnerRequired},
		"bad category":    {caller: "issuer", mutate: func(r *IssueRequest) { r.Category = "GAMING" }, want: ErrInvalidCategory},
		"zero ttl":        {caller: "issuer", mutate: func(r *IssueRequest) { r.TTL = 0 }, want: ErrInvalidTTL},
		"negative ttl":    {caller: "issuer", mutate: func(r *IssueRequest) { r.TTL = -time.Minute }, want: ErrInvalidTTL},
		"ttl over max":    {caller: "issuer", mutate: func(r *IssueRequest) { r.TTL = DefaultMaxTTL + time.Second }, want: ErrInvalidTTL},
		"zero handle":     {caller: "issuer", mutate: func(r *IssueRequest) { r.Handle = Handle{} }, want: ErrInvalidHandle},
		"negative amount": {caller: "issuer", mutate: func(r *IssueRequest) { r.MaxAmount = big.NewInt(-1) }, want: ErrInvalidMaxAmount},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			_, err := f.engine.Issue(ctx, tc.caller, req)
			expectErr(t, err, tc.want)
		})
	}

	if got := f.stats(t).TotalIssued; got != 0 {
		t.Fatalf("rejected issues counted: %d", got)
	}
}

func TestIssueRejectsDuplicateHandle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	handle := randomHandle(t)
	f.issue(t, handle, time.Hour)

	_, err := f.engine.Issue(ctx, "issuer", IssueRequest{Handle: handle, Owner: "bob", Category: CategoryBounty, TTL: time.Hour})
	expectErr(t, err, ErrDuplicateToken)

	// A consumed handle stays reserved.
	if _, _, err := f.engine.Consume(ctx, "consumer", handle); err != nil {
		t.Fatalf("consume: %v", err)
	}
	_, err = f.engine.Issue(ctx, "issuer", IssueRequest{Handle: handle, Owner: "bob", Category: CategoryBounty, TTL: time.Hour})
	expectErr(t, err, ErrDuplicateToken)
}

func TestConsumeExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	handle := randomHandle(t)
	f.issue(t, handle, time.Minute)

	// Valid up to and including the expiry second.
	f.clock.Advance(time.Minute)
	if !f.engine.IsValid(ctx, handle) {
		t.Fatalf("token invalid at its expiry second")
	}

	f.clock.Advance(time.Second)
	if f.engine.IsValid(ctx, handle) {
		t.Fatalf("token valid after expiry")
	}
	if got := f.status(t, handle); got != StatusExpired {
		t.Fatalf("status %v, want %v", got, StatusExpired)
	}

	_, _, err := f.engine.Consume(ctx, "consumer", handle)
	expectErr(t, err, ErrTokenExpired)
}

func TestConsumeUnknownAndUnauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	handle := randomHandle(t)

	_, _, err := f.engine.Consume(ctx, "consumer", handle)
	expectErr(t, err, ErrTokenNotFound)

	f.issue(t, handle, time.Hour)
	_, _, err = f.engine.Consume(ctx, "issuer", handle)
	expectErr(t, err, common.ErrUnauthorized)
	if !f.engine.IsValid(ctx, handle) {
		t.Fatalf("unauthorized consume spent the token")
	}
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	revoked := randomHandle(t)
	used := randomHandle(t)
	f.issue(t, revoked, time.Hour)
	f.issue(t, used, time.Hour)

	expectErr(t, f.engine.Revoke(ctx, "consumer", revoked), common.ErrUnauthorized)
	if err := f.engine.Revoke(ctx, "issuer", revoked); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	expectErr(t, f.engine.Revoke(ctx, "issuer", revoked), ErrAlreadyInactive)

	_, _, err := f.engine.Consume(ctx, "consumer", revoked)
	expectErr(t, err, ErrTokenInactive)

	if _, _, err := f.engine.Consume(ctx, "consumer", used); err != nil {
		t.Fatalf("consume: %v", err)
	}
	expectErr(t, f.engine.Revoke(ctx, "issuer", used), ErrTokenAlreadyUsed)
	expectErr(t, f.engine.Revoke(ctx, "issuer", randomHandle(t)), ErrTokenNotFound)

	if got := f.status(t, revoked); got != StatusRevoked {
		t.Fatalf("status %v, want %v", got, StatusRevoked)
	}
	if got := f.stats(t); got != (Stats{TotalIssued: 2, TotalConsumed: 1, TotalRevoked: 1}) {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestConsumeInTxRollsBackWithCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	handle := randomHandle(t)
	f.issue(t, handle, time.Hour)

	_, _, err := f.engine.ConsumeInTx(ctx, "consumer", handle)
	expectErr(t, err, ErrNoTransaction)

	err = f.ledger.Update(ctx, func(txCtx context.Context, _ *state.Tx) error {
		if _, _, err := f.engine.ConsumeInTx(txCtx, "consumer", handle); err != nil {
			return err
		}
		return ErrDuplicateToken
	})
	expectErr(t, err, ErrDuplicateToken)
	if !f.engine.IsValid(ctx, handle) {
		t.Fatalf("consume must roll back with the enclosing transaction")
	}
}

func TestPausedRegistryRejectsIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.roles.Bootstrap(ctx, "admin", common.CapAdmin); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
	pauses := state.NewPauses(f.ledger, f.roles)
	f.engine.SetPauses(pauses)
	if err := pauses.SetPaused(ctx, "admin", ModuleName, true); err != nil {
		t.Fatalf("pause: %v", err)
	}

	_, err := f.engine.Issue(ctx, "issuer", IssueRequest{Handle: randomHandle(t), Owner: "alice", Category: CategoryPayroll, TTL: time.Hour})
	expectErr(t, err, common.ErrModulePaused)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" esg ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c != CategoryESG {
		t.Fatalf("parsed %v, want %v", c, CategoryESG)
	}
	_, err = ParseCategory("loyalty")
	expectErr(t, err, ErrInvalidCategory)
}
