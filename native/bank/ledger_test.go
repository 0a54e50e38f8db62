package bank

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/state"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/storage"
)

func newBank(t *testing.T) (*Ledger, *state.Ledger) {
	t.Helper()
	st := state.NewLedger(storage.NewMemDB())
	return NewLedger(st), st
}

func TestCreditDebitBalance(t *testing.T) {
	bank, _ := newBank(t)
	ctx := context.Background()

	require.NoError(t, bank.Credit(ctx, "alice", big.NewInt(500)))
	require.NoError(t, bank.Debit(ctx, "alice", big.NewInt(200)))

	balance, err := bank.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "300", balance.String())

	err = bank.Debit(ctx, "alice", big.NewInt(301))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	balance, err = bank.BalanceOf(ctx, "nobody")
	require.NoError(t, err)
	require.Zero(t, balance.Sign())
}

func TestCreditRejectsInvalidInput(t *testing.T) {
	bank, _ := newBank(t)
	ctx := context.Background()
	require.ErrorIs(t, bank.Credit(ctx, "", big.NewInt(1)), ErrAccountRequired)
	require.ErrorIs(t, bank.Credit(ctx, "alice", big.NewInt(0)), ErrInvalidAmount)
	require.ErrorIs(t, bank.Credit(ctx, "alice", nil), ErrInvalidAmount)
}

func TestCreditOverflow(t *testing.T) {
	bank, _ := newBank(t)
	ctx := context.Background()
	ceiling := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	require.NoError(t, bank.Credit(ctx, "whale", ceiling))
	require.ErrorIs(t, bank.Credit(ctx, "whale", big.NewInt(1)), ErrBalanceOverflow)
	require.ErrorIs(t, bank.Credit(ctx, "other", new(big.Int).Lsh(big.NewInt(1), 256)), ErrBalanceOverflow)
}

func TestCreditJoinsCallerTransaction(t *testing.T) {
	bank, st := newBank(t)
	ctx := context.Background()
	abort := errors.New("abort")

	err := st.Update(ctx, func(txCtx context.Context, _ *state.Tx) error {
		require.NoError(t, bank.Credit(txCtx, "alice", big.NewInt(50)))
		balance, err := bank.BalanceOf(txCtx, "alice")
		require.NoError(t, err)
		require.Equal(t, "50", balance.String())
		return abort
	})
	require.ErrorIs(t, err, abort)

	balance, err := bank.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, balance.Sign(), "credit must roll back with the enclosing transaction")
}

func TestTransfer(t *testing.T) {
	bank, _ := newBank(t)
	ctx := context.Background()
	require.NoError(t, bank.Credit(ctx, "treasury", big.NewInt(10)))

	require.ErrorIs(t, bank.Transfer(ctx, "treasury", "relayer", big.NewInt(11)), ErrInsufficientBalance)
	require.NoError(t, bank.Transfer(ctx, "treasury", "relayer", big.NewInt(4)))

	from, _ := bank.BalanceOf(ctx, "treasury")
	to, _ := bank.BalanceOf(ctx, "relayer")
	require.Equal(t, "6", from.String())
	require.Equal(t, "4", to.String())
}

func TestParseReference(t *testing.T) {
	ref, err := ParseReference("0x" + "0a" + "00000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	require.Equal(t, byte(0x0a), ref[0])

	_, err = ParseReference("0x1234")
	require.Error(t, err)
	_, err = ParseReference("zz" + "00000000000000000000000000000000000000000000000000000000000000")
	require.Error(t, err)
}
