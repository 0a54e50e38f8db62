package state

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/storage"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return NewLedger(storage.NewMemDB())
}

func TestLedgerUpdateCommitsAtomically(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	if err := ledger.Update(ctx, func(_ context.Context, tx *Tx) error {
		if err := tx.Put(Key("a"), uint64(1)); err != nil {
			return err
		}
		return tx.Put(Key("b"), "two")
	}); err != nil {
		t.Fatalf("seed update: %v", err)
	}

	failure := errors.New("boom")
	err := ledger.Update(ctx, func(_ context.Context, tx *Tx) error {
		if err := tx.Put(Key("a"), uint64(99)); err != nil {
			t.Fatalf("put: %v", err)
		}
		if err := tx.Delete(Key("b")); err != nil {
			t.Fatalf("delete: %v", err)
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected %v, got %v", failure, err)
	}

	err = ledger.View(ctx, func(tx *Tx) error {
		a, err := tx.GetUint64(Key("a"))
		if err != nil {
			return err
		}
		if a != 1 {
			t.Fatalf("aborted write leaked: a=%d", a)
		}
		var b string
		ok, err := tx.Get(Key("b"), &b)
		if err != nil {
			return err
		}
		if !ok || b != "two" {
			t.Fatalf("aborted delete leaked: ok=%v b=%q", ok, b)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestLedgerHooksRunOnlyAfterCommit(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	var fired []string

	if err := ledger.Update(ctx, func(_ context.Context, tx *Tx) error {
		tx.OnCommit(func() { fired = append(fired, "ok") })
		if len(fired) != 0 {
			t.Fatalf("hook fired before commit")
		}
		return tx.Put(Key("k"), true)
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	_ = ledger.Update(ctx, func(_ context.Context, tx *Tx) error {
		tx.OnCommit(func() { fired = append(fired, "failed") })
		return errors.New("abort")
	})
	if !reflect.DeepEqual(fired, []string{"ok"}) {
		t.Fatalf("unexpected hooks: %v", fired)
	}
}

func TestLedgerRejectsReentrantUpdate(t *testing.T) {
	ledger := newTestLedger(t)
	err := ledger.Update(context.Background(), func(ctx context.Context, tx *Tx) error {
		return ledger.Update(ctx, func(context.Context, *Tx) error { return nil })
	})
	if !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("expected ErrReentrantCall, got %v", err)
	}
}

func TestLedgerCollaboratorSeesTransaction(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	// credit stands in for a value ledger: it must work through the ctx it
	// is handed rather than opening its own transition.
	credit := func(ctx context.Context, key []byte, delta uint64) error {
		tx := TxFromContext(ctx)
		if tx == nil {
			return ErrNilLedger
		}
		_, err := tx.Increment(key, delta)
		return err
	}

	err := ledger.Update(ctx, func(txCtx context.Context, tx *Tx) error {
		if TxFromContext(txCtx) != tx {
			t.Fatalf("ctx does not carry the open transaction")
		}
		if err := credit(txCtx, Key("balance"), 5); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatalf("expected abort")
	}
	if err := ledger.Update(ctx, func(txCtx context.Context, _ *Tx) error {
		return credit(txCtx, Key("balance"), 3)
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := credit(ctx, Key("balance"), 1); !errors.Is(err, ErrNilLedger) {
		t.Fatalf("credit outside a transition: %v", err)
	}

	var got uint64
	if err := ledger.View(ctx, func(tx *Tx) error {
		var err error
		got, err = tx.GetUint64(Key("balance"))
		return err
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if got != 3 {
		t.Fatalf("collaborator writes did not follow the transaction: %d", got)
	}
}

func TestLedgerViewJoinsPendingTransaction(t *testing.T) {
	ledger := newTestLedger(t)
	err := ledger.Update(context.Background(), func(ctx context.Context, tx *Tx) error {
		if err := tx.Put(Key("pending"), uint64(7)); err != nil {
			return err
		}
		return ledger.View(ctx, func(view *Tx) error {
			got, err := view.GetUint64(Key("pending"))
			if err != nil {
				return err
			}
			if got != 7 {
				t.Fatalf("view missed pending write: %d", got)
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestViewIsReadOnly(t *testing.T) {
	ledger := newTestLedger(t)
	err := ledger.View(context.Background(), func(tx *Tx) error {
		return tx.Put(Key("x"), uint64(1))
	})
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestListAppendAndCounters(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	prefix := Key("records", "c1")

	if err := ledger.Update(ctx, func(_ context.Context, tx *Tx) error {
		for _, v := range []string{"x", "y", "z"} {
			if _, err := tx.Append(prefix, v); err != nil {
				return err
			}
		}
		next, err := tx.Increment(Key("seq"), 2)
		if err != nil {
			return err
		}
		if next != 2 {
			t.Fatalf("increment returned %d", next)
		}
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := ledger.View(ctx, func(tx *Tx) error {
		n, err := tx.ListLen(prefix)
		if err != nil {
			return err
		}
		if n != 3 {
			t.Fatalf("list length %d", n)
		}
		var item string
		ok, err := tx.ListItem(prefix, 1, &item)
		if err != nil {
			return err
		}
		if !ok || item != "y" {
			t.Fatalf("item 1: ok=%v item=%q", ok, item)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestRoleTableGrantRequiresAdmin(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	roles := NewRoleTable(ledger)
	if err := roles.Bootstrap(ctx, "root", common.CapAdmin); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	if err := roles.Grant(ctx, "mallory", "mallory", common.CapRelayer); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if roles.HasCapability(ctx, "mallory", common.CapRelayer) {
		t.Fatalf("unauthorized grant took effect")
	}

	if err := roles.Grant(ctx, "root", "relayer-1", common.CapRelayer); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !roles.HasCapability(ctx, "relayer-1", common.CapRelayer) {
		t.Fatalf("grant not visible")
	}
	if roles.HasCapability(ctx, "relayer-1", common.CapIssuer) {
		t.Fatalf("grant leaked to another capability")
	}

	if err := roles.Revoke(ctx, "root", "relayer-1", common.CapRelayer); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if roles.HasCapability(ctx, "relayer-1", common.CapRelayer) {
		t.Fatalf("revoke not visible")
	}
}

func TestPausesToggle(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	roles := NewRoleTable(ledger)
	if err := roles.Bootstrap(ctx, "root", common.CapAdmin); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	pauses := NewPauses(ledger, roles)

	if err := pauses.SetPaused(ctx, "nobody", "session", true); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := pauses.SetPaused(ctx, "root", "Session", true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := common.Guard(ctx, pauses, "session"); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := common.Guard(ctx, pauses, "campaign"); err != nil {
		t.Fatalf("unrelated module paused: %v", err)
	}
	if err := pauses.SetPaused(ctx, "root", "session", false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := common.Guard(ctx, pauses, "session"); err != nil {
		t.Fatalf("guard after unpause: %v", err)
	}
}
