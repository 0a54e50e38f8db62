package bank

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/state"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
)

var (
	ErrAccountRequired     = errors.New("bank: account required")
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrBalanceOverflow     = errors.New("bank: balance overflow")
)

// Ledger is the state-backed ValueLedger. Balances are bounded to 256 bits.
// Calls made with a context that already carries a ledger transaction join it,
// so credits and debits commit or roll back together with the caller's writes.
type Ledger struct {
	state *state.Ledger
}

var _ common.ValueLedger = (*Ledger)(nil)

// NewLedger constructs a bank over the shared ledger state.
func NewLedger(st *state.Ledger) *Ledger {
	return &Ledger{state: st}
}

func balanceKey(account string) []byte {
	return state.Key("bank", "balance", strings.TrimSpace(account))
}

func validate(account string, amount *big.Int) error {
	if strings.TrimSpace(account) == "" {
		return ErrAccountRequired
	}
	if !common.IsPositive(amount) {
		return ErrInvalidAmount
	}
	return nil
}

func (l *Ledger) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if l == nil || l.state == nil {
		return state.ErrNilLedger
	}
	if tx := state.TxFromContext(ctx); tx != nil && tx.Writable() {
		return fn(ctx)
	}
	return l.state.Update(ctx, func(txCtx context.Context, _ *state.Tx) error {
		return fn(txCtx)
	})
}

func readBalance(tx *state.Tx, account string) (*uint256.Int, error) {
	stored := new(big.Int)
	ok, err := tx.Get(balanceKey(account), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	balance, overflow := uint256.FromBig(stored)
	if overflow {
		return nil, fmt.Errorf("%w: stored balance of %s", common.ErrInvariantViolation, account)
	}
	return balance, nil
}

func toUint256(amount *big.Int) (*uint256.Int, error) {
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	return value, nil
}

// Credit implements common.ValueLedger.
func (l *Ledger) Credit(ctx context.Context, account string, amount *big.Int) error {
	if err := validate(account, amount); err != nil {
		return err
	}
	delta, err := toUint256(amount)
	if err != nil {
		return err
	}
	return l.withTx(ctx, func(ctx context.Context) error {
		tx := state.TxFromContext(ctx)
		balance, err := readBalance(tx, account)
		if err != nil {
			return err
		}
		next, overflow := new(uint256.Int).AddOverflow(balance, delta)
		if overflow {
			return ErrBalanceOverflow
		}
		return tx.Put(balanceKey(account), next.ToBig())
	})
}

// Debit implements common.ValueLedger.
func (l *Ledger) Debit(ctx context.Context, account string, amount *big.Int) error {
	if err := validate(account, amount); err != nil {
		return err
	}
	delta, err := toUint256(amount)
	if err != nil {
		return err
	}
	return l.withTx(ctx, func(ctx context.Context) error {
		tx := state.TxFromContext(ctx)
		balance, err := readBalance(tx, account)
		if err != nil {
			return err
		}
		if balance.Lt(delta) {
			return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, account, balance.Dec(), delta.Dec())
		}
		next := new(uint256.Int).Sub(balance, delta)
		return tx.Put(balanceKey(account), next.ToBig())
	})
}

// BalanceOf implements common.ValueLedger.
func (l *Ledger) BalanceOf(ctx context.Context, account string) (*big.Int, error) {
	if strings.TrimSpace(account) == "" {
		return nil, ErrAccountRequired
	}
	if l == nil || l.state == nil {
		return nil, state.ErrNilLedger
	}
	var out *big.Int
	err := l.state.View(ctx, func(tx *state.Tx) error {
		balance, err := readBalance(tx, account)
		if err != nil {
			return err
		}
		out = balance.ToBig()
		return nil
	})
	return out, err
}
