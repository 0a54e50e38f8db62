package common

import "math/big"

// BasisPoints is the denominator for bps-denominated multipliers.
const BasisPoints = 10_000

// CloneAmount returns a defensive copy, mapping nil to zero.
func CloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// IsPositive reports whether v is non-nil and greater than zero.
func IsPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

// ApplyBps returns floor(v * bps / 10000).
func ApplyBps(v *big.Int, bps uint64) *big.Int {
	if v == nil || v.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(v, new(big.Int).SetUint64(bps))
	return out.Quo(out, big.NewInt(BasisPoints))
}
