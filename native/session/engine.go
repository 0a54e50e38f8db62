package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"lukechampine.com/blake3"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/events"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/state"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
)

// ModuleName identifies the registry for pause toggles.
const ModuleName = "session"

// DefaultMaxTTL bounds the lifetime of an issued session unless overridden.
const DefaultMaxTTL = 30 * 24 * time.Hour

var (
	ErrTokenNotFound    = errors.New("session: token not found")
	ErrTokenInactive    = errors.New("session: token inactive")
	ErrTokenAlreadyUsed = errors.New("session: token already used")
	ErrTokenExpired     = errors.New("session: token expired")
	ErrAlreadyInactive  = errors.New("session: token already inactive")
	ErrDuplicateToken   = errors.New("session: duplicate token")
	ErrOwnerRequired    = errors.New("session: owner required")
	ErrInvalidCategory  = errors.New("session: invalid category")
	ErrInvalidTTL       = errors.New("session: ttl out of range")
	ErrInvalidHandle    = errors.New("session: handle must carry entropy")
	ErrInvalidMaxAmount = errors.New("session: max amount must be non-negative")
	ErrNoTransaction    = errors.New("session: no ledger transaction in context")
)

var (
	keyIssued   = state.Key("session", "stats", "issued")
	keyConsumed = state.Key("session", "stats", "consumed")
	keyRevoked  = state.Key("session", "stats", "revoked")
)

// Digest returns the storage digest of a handle.
func Digest(handle Handle) [32]byte {
	return blake3.Sum256(handle[:])
}

func sessionKey(digest [32]byte) []byte {
	return state.Key("session", "record", string(digest[:]))
}

// Engine is the capability token registry. Every mutation runs as a single
// ledger transaction.
type Engine struct {
	ledger  *state.Ledger
	access  common.AccessControl
	pauses  common.PauseView
	emitter events.Emitter
	clock   common.Clock
	maxTTL  time.Duration
}

// NewEngine constructs a registry over the shared ledger.
func NewEngine(ledger *state.Ledger, access common.AccessControl) *Engine {
	return &Engine{
		ledger:  ledger,
		access:  access,
		emitter: events.NoopEmitter{},
		clock:   common.SystemClock{},
		maxTTL:  DefaultMaxTTL,
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

// SetMaxTTL bounds the TTL accepted by Issue. Non-positive values restore the
// default.
func (e *Engine) SetMaxTTL(ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultMaxTTL
	}
	e.maxTTL = ttl
}

// MaxTTL reports the configured TTL ceiling.
func (e *Engine) MaxTTL() time.Duration { return e.maxTTL }

func (e *Engine) now() uint64 { return common.Unix(e.clock) }

func (e *Engine) validateIssue(req IssueRequest) error {
	if strings.TrimSpace(req.Owner) == "" {
		return ErrOwnerRequired
	}
	if _, err := ParseCategory(string(req.Category)); err != nil {
		return err
	}
	if req.TTL < time.Second || req.TTL > e.maxTTL {
		return fmt.Errorf("%w: %s not in (0, %s]", ErrInvalidTTL, req.TTL, e.maxTTL)
	}
	if req.Handle.IsZero() {
		return ErrInvalidHandle
	}
	if req.MaxAmount != nil && req.MaxAmount.Sign() < 0 {
		return ErrInvalidMaxAmount
	}
	return nil
}

// Issue mints a session for the supplied handle and returns its digest.
func (e *Engine) Issue(ctx context.Context, caller string, req IssueRequest) ([32]byte, error) {
	var digest [32]byte
	if err := common.Guard(ctx, e.pauses, ModuleName); err != nil {
		return digest, err
	}
	if err := common.Require(ctx, e.access, caller, common.CapIssuer); err != nil {
		return digest, err
	}
	if err := e.validateIssue(req); err != nil {
		return digest, err
	}
	category, _ := ParseCategory(string(req.Category))
	digest = Digest(req.Handle)
	now := e.now()
	record := &Session{
		Digest:        digest,
		Owner:         strings.TrimSpace(req.Owner),
		Category:      string(category),
		IssuedAt:      now,
		ExpiresAt:     now + uint64(req.TTL/time.Second),
		Active:        true,
		BoundCampaign: strings.TrimSpace(req.BoundCampaign),
		MaxAmount:     common.CloneAmount(req.MaxAmount),
	}

	err := e.ledger.Update(ctx, func(_ context.Context, tx *state.Tx) error {
		exists, err := tx.Has(sessionKey(digest))
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateToken
		}
		if err := tx.Put(sessionKey(digest), record); err != nil {
			return err
		}
		if _, err := tx.Increment(keyIssued, 1); err != nil {
			return err
		}
		tx.OnCommit(func() {
			e.emitter.Emit(events.SessionIssued{
				Digest:        digest,
				Owner:         record.Owner,
				Category:      record.Category,
				ExpiresAt:     record.ExpiresAt,
				BoundCampaign: record.BoundCampaign,
				Issuer:        caller,
			})
		})
		return nil
	})
	if err != nil {
		return [32]byte{}, err
	}
	return digest, nil
}

func loadSession(tx *state.Tx, digest [32]byte) (*Session, error) {
	record := new(Session)
	ok, err := tx.Get(sessionKey(digest), record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTokenNotFound
	}
	if record.MaxAmount == nil {
		record.MaxAmount = big.NewInt(0)
	}
	return record, nil
}

func checkConsumable(record *Session, now uint64) error {
	switch {
	case !record.Active:
		return ErrTokenInactive
	case record.Used:
		return ErrTokenAlreadyUsed
	case now > record.ExpiresAt:
		return ErrTokenExpired
	}
	return nil
}

// Inspect returns the session behind handle when it is currently consumable,
// or the typed error describing why it is not. It never mutates state and
// reads through the transaction carried by ctx when present.
func (e *Engine) Inspect(ctx context.Context, handle Handle) (*Session, error) {
	var out *Session
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		record, err := loadSession(tx, Digest(handle))
		if err != nil {
			return err
		}
		if err := checkConsumable(record, e.now()); err != nil {
			return err
		}
		out = record
		return nil
	})
	return out, err
}

// Consume marks the session used and returns its owner and bound campaign.
func (e *Engine) Consume(ctx context.Context, caller string, handle Handle) (string, string, error) {
	var owner, bound string
	err := e.ledger.Update(ctx, func(txCtx context.Context, _ *state.Tx) error {
		var err error
		owner, bound, err = e.ConsumeInTx(txCtx, caller, handle)
		return err
	})
	if err != nil {
		return "", "", err
	}
	return owner, bound, nil
}

// ConsumeInTx consumes the session as part of the ledger transaction carried
// by ctx. Engines that must consume a token atomically with their own writes
// use it instead of Consume.
func (e *Engine) ConsumeInTx(ctx context.Context, caller string, handle Handle) (string, string, error) {
	tx := state.TxFromContext(ctx)
	if tx == nil || !tx.Writable() {
		return "", "", ErrNoTransaction
	}
	if err := common.Guard(ctx, e.pauses, ModuleName); err != nil {
		return "", "", err
	}
	if err := common.Require(ctx, e.access, caller, common.CapConsumer); err != nil {
		return "", "", err
	}
	digest := Digest(handle)
	record, err := loadSession(tx, digest)
	if err != nil {
		return "", "", err
	}
	if err := checkConsumable(record, e.now()); err != nil {
		return "", "", err
	}
	record.Used = true
	if err := tx.Put(sessionKey(digest), record); err != nil {
		return "", "", err
	}
	if _, err := tx.Increment(keyConsumed, 1); err != nil {
		return "", "", err
	}
	tx.OnCommit(func() {
		e.emitter.Emit(events.SessionConsumed{Digest: digest, Owner: record.Owner, Consumer: caller})
	})
	return record.Owner, record.BoundCampaign, nil
}

// Revoke deactivates an unused session.
func (e *Engine) Revoke(ctx context.Context, caller string, handle Handle) error {
	if err := common.Guard(ctx, e.pauses, ModuleName); err != nil {
		return err
	}
	if err := common.Require(ctx, e.access, caller, common.CapIssuer); err != nil {
		return err
	}
	digest := Digest(handle)
	return e.ledger.Update(ctx, func(_ context.Context, tx *state.Tx) error {
		record, err := loadSession(tx, digest)
		if err != nil {
			return err
		}
		if record.Used {
			return ErrTokenAlreadyUsed
		}
		if !record.Active {
			return ErrAlreadyInactive
		}
		record.Active = false
		if err := tx.Put(sessionKey(digest), record); err != nil {
			return err
		}
		if _, err := tx.Increment(keyRevoked, 1); err != nil {
			return err
		}
		tx.OnCommit(func() {
			e.emitter.Emit(events.SessionRevoked{Digest: digest, Issuer: caller})
		})
		return nil
	})
}

// IsValid reports whether the session behind handle can be consumed now.
func (e *Engine) IsValid(ctx context.Context, handle Handle) bool {
	_, err := e.Inspect(ctx, handle)
	return err == nil
}

// Status derives the lifecycle state of the session behind handle.
func (e *Engine) Status(ctx context.Context, handle Handle) (Status, error) {
	record, ok, err := e.Session(ctx, handle)
	if err != nil || !ok {
		return StatusUnissued, err
	}
	return record.StatusAt(e.now()), nil
}

// Session returns a copy of the stored record behind handle.
func (e *Engine) Session(ctx context.Context, handle Handle) (*Session, bool, error) {
	var out *Session
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		record, err := loadSession(tx, Digest(handle))
		if errors.Is(err, ErrTokenNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out = record
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// Stats returns the lifetime counters.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := e.ledger.View(ctx, func(tx *state.Tx) error {
		var err error
		if stats.TotalIssued, err = tx.GetUint64(keyIssued); err != nil {
			return err
		}
		if stats.TotalConsumed, err = tx.GetUint64(keyConsumed); err != nil {
			return err
		}
		stats.TotalRevoked, err = tx.GetUint64(keyRevoked)
		return err
	})
	return stats, err
}
