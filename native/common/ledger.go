package common

import (
	"context"
	"math/big"
)

// ValueLedger is the fungible-value primitive the control plane moves value
// through. Amounts are non-negative integers in the ledger's smallest unit.
//
// Engines call it from inside a state transition and pass the ctx they were
// handed, which carries the open transaction. Implementations must do their
// reads and writes with that ctx and must not call back into an engine or
// start work on a fresh context: the transition holds the ledger lock, so a
// detached Update blocks until it is released.
type ValueLedger interface {
	Credit(ctx context.Context, account string, amount *big.Int) error
	Debit(ctx context.Context, account string, amount *big.Int) error
	BalanceOf(ctx context.Context, account string) (*big.Int, error)
}
