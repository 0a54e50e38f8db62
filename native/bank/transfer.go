package bank

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

const referenceHexLength = 64

// ParseReference normalises and validates a 32-byte reference expressed as a
// hex string, such as a relayed transaction hash or a session handle.
func ParseReference(ref string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return out, fmt.Errorf("bank: reference required")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != referenceHexLength {
		return out, fmt.Errorf("bank: reference must be 32 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("bank: decode reference: %w", err)
	}
	copy(out[:], decoded)
	return out, nil
}

// Transfer moves amount from one account to another inside a single ledger
// transaction.
func (l *Ledger) Transfer(ctx context.Context, from, to string, amount *big.Int) error {
	if err := validate(from, amount); err != nil {
		return err
	}
	if err := validate(to, amount); err != nil {
		return err
	}
	return l.withTx(ctx, func(ctx context.Context) error {
		if err := l.Debit(ctx, from, amount); err != nil {
			return err
		}
		return l.Credit(ctx, to, amount)
	})
}
