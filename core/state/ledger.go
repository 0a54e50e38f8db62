package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/storage"
)

var (
	// ErrReentrantCall is returned when a state transition is started from
	// inside another transition, e.g. by a value-credit side effect calling
	// back into an engine.
	ErrReentrantCall = errors.New("state: reentrant call rejected")
	// ErrReadOnly is returned when a write is attempted through a view.
	ErrReadOnly = errors.New("state: read-only transaction")
	// ErrNilLedger is returned by engines constructed without a ledger.
	ErrNilLedger = errors.New("state: ledger not configured")
)

type txContextKey struct{}

// Ledger owns every piece of mutable control-plane state. All transitions go
// through Update, which serializes them and commits their writes in a single
// storage batch.
type Ledger struct {
	db storage.Database
	mu sync.RWMutex
}

// NewLedger wraps the provided database.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

// Database exposes the backing store.
func (l *Ledger) Database() storage.Database {
	if l == nil {
		return nil
	}
	return l.db
}

// Update runs fn inside a write transaction. Writes become visible only if fn
// returns nil and the batch commits; hooks registered with OnCommit run after
// the lock is released. The ctx handed to fn carries the transaction so that
// collaborators (value ledgers, access control) can join it.
func (l *Ledger) Update(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	if l == nil || l.db == nil {
		return ErrNilLedger
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if TxFromContext(ctx) != nil {
		return ErrReentrantCall
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := newTx(l.db, true)
	if err := l.apply(ctx, tx, fn); err != nil {
		return err
	}
	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

func (l *Ledger) apply(ctx context.Context, tx *Tx, fn func(ctx context.Context, tx *Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() { tx.closed = true }()

	if err := fn(context.WithValue(ctx, txContextKey{}, tx), tx); err != nil {
		return err
	}
	if err := tx.commit(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

// View runs fn against a read-only snapshot. When ctx already carries a
// transaction, fn reads through it and observes its pending writes.
func (l *Ledger) View(ctx context.Context, fn func(tx *Tx) error) error {
	if l == nil || l.db == nil {
		return ErrNilLedger
	}
	if tx := TxFromContext(ctx); tx != nil {
		return fn(tx)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(newTx(l.db, false))
}

// TxFromContext returns the transaction attached by Update, if any.
func TxFromContext(ctx context.Context) *Tx {
	if ctx == nil {
		return nil
	}
	tx, _ := ctx.Value(txContextKey{}).(*Tx)
	if tx == nil || tx.closed {
		return nil
	}
	return tx
}

// Tx buffers reads and writes for a single state transition.
type Tx struct {
	db       storage.Database
	writable bool
	closed   bool
	writes   map[string][]byte
	deletes  map[string]struct{}
	hooks    []func()
}

func newTx(db storage.Database, writable bool) *Tx {
	return &Tx{
		db:       db,
		writable: writable,
		writes:   make(map[string][]byte),
		deletes:  make(map[string]struct{}),
	}
}

func hashKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (tx *Tx) getRaw(key []byte) ([]byte, bool, error) {
	hashed := string(hashKey(key))
	if value, ok := tx.writes[hashed]; ok {
		return value, true, nil
	}
	if _, deleted := tx.deletes[hashed]; deleted {
		return nil, false, nil
	}
	value, err := tx.db.Get([]byte(hashed))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Get decodes the RLP value stored at key into out.
func (tx *Tx) Get(key []byte, out interface{}) (bool, error) {
	data, ok, err := tx.getRaw(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// Has reports whether key holds a value.
func (tx *Tx) Has(key []byte) (bool, error) {
	_, ok, err := tx.getRaw(key)
	return ok, err
}

// Put RLP-encodes value and stages it under key.
func (tx *Tx) Put(key []byte, value interface{}) error {
	if !tx.writable || tx.closed {
		return ErrReadOnly
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	hashed := string(hashKey(key))
	delete(tx.deletes, hashed)
	tx.writes[hashed] = encoded
	return nil
}

// Delete stages the removal of key.
func (tx *Tx) Delete(key []byte) error {
	if !tx.writable || tx.closed {
		return ErrReadOnly
	}
	hashed := string(hashKey(key))
	delete(tx.writes, hashed)
	tx.deletes[hashed] = struct{}{}
	return nil
}

// OnCommit registers fn to run once the transaction has committed. Hooks are
// dropped when the transaction fails.
func (tx *Tx) OnCommit(fn func()) {
	if fn == nil || !tx.writable {
		return
	}
	tx.hooks = append(tx.hooks, fn)
}

// Writable reports whether the transaction accepts writes.
func (tx *Tx) Writable() bool { return tx.writable && !tx.closed }

func (tx *Tx) commit() error {
	if len(tx.writes) == 0 && len(tx.deletes) == 0 {
		return nil
	}
	batch := tx.db.NewBatch()
	for key, value := range tx.writes {
		batch.Put([]byte(key), value)
	}
	for key := range tx.deletes {
		batch.Delete([]byte(key))
	}
	return batch.Write()
}
