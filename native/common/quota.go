package common

import (
	"errors"
	"math/big"
)

var (
	ErrQuotaCapExceeded     = errors.New("quota cap exceeded")
	ErrQuotaInvalidAmount   = errors.New("quota amount must be non-negative")
	ErrQuotaPeriodUndefined = errors.New("quota period must be positive")
)

// WindowUsage captures the usage counter of a rolling quota window.
type WindowUsage struct {
	Used    *big.Int
	ResetAt uint64
}

// Clone returns a deep copy of the usage record.
func (w WindowUsage) Clone() WindowUsage {
	out := WindowUsage{ResetAt: w.ResetAt, Used: big.NewInt(0)}
	if w.Used != nil {
		out.Used.Set(w.Used)
	}
	return out
}

// WindowLimit defines the cap enforced across a rolling window. A zero or nil
// Cap disables the limit.
type WindowLimit struct {
	Cap    *big.Int
	Period uint64
}

// CheckWindow verifies whether add fits within the window limit. The window
// resets lazily: when now has reached ResetAt the usage is zeroed and the next
// boundary becomes now+Period. The returned usage reflects the reset and the
// added amount when the limit holds; on denial prev is returned unchanged.
func CheckWindow(limit WindowLimit, now uint64, prev WindowUsage, add *big.Int) (WindowUsage, error) {
	if limit.Period == 0 {
		return prev, ErrQuotaPeriodUndefined
	}
	if add == nil {
		add = big.NewInt(0)
	}
	if add.Sign() < 0 {
		return prev, ErrQuotaInvalidAmount
	}
	next := prev.Clone()
	if next.ResetAt == 0 || now >= next.ResetAt {
		next = WindowUsage{Used: big.NewInt(0), ResetAt: now + limit.Period}
	}
	next.Used.Add(next.Used, add)
	if limit.Cap != nil && limit.Cap.Sign() > 0 && next.Used.Cmp(limit.Cap) > 0 {
		return prev, ErrQuotaCapExceeded
	}
	return next, nil
}

// Remaining reports how much of the cap is still available at now without
// mutating the usage. A disabled limit reports nil.
func (l WindowLimit) Remaining(now uint64, usage WindowUsage) *big.Int {
	if l.Cap == nil || l.Cap.Sign() <= 0 {
		return nil
	}
	used := big.NewInt(0)
	if usage.Used != nil && usage.ResetAt != 0 && now < usage.ResetAt {
		used.Set(usage.Used)
	}
	remaining := new(big.Int).Sub(l.Cap, used)
	if remaining.Sign() < 0 {
		return big.NewInt(0)
	}
	return remaining
}
