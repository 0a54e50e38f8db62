package reimburse

import (
	"math/big"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
)

// DefaultPeriod is the length of the rolling reimbursement window in seconds.
const DefaultPeriod uint64 = 24 * 60 * 60

// Limits bounds reimbursements. A nil or zero cap disables that limit once an
// operator has configured limits; an engine with none configured pays nothing.
type Limits struct {
	PerTxCap        *big.Int
	RelayerDailyCap *big.Int
	GlobalDailyCap  *big.Int
	Period          uint64
}

func (l Limits) normalized() Limits {
	out := Limits{
		PerTxCap:        common.CloneAmount(l.PerTxCap),
		RelayerDailyCap: common.CloneAmount(l.RelayerDailyCap),
		GlobalDailyCap:  common.CloneAmount(l.GlobalDailyCap),
		Period:          l.Period,
	}
	if out.Period == 0 {
		out.Period = DefaultPeriod
	}
	return out
}

// RelayerQuota tracks a relayer's usage of the rolling window.
type RelayerQuota struct {
	Relayer      string
	DailyUsed    *big.Int
	DailyResetAt uint64
	LifetimeUsed *big.Int
}

func (q *RelayerQuota) window() common.WindowUsage {
	return common.WindowUsage{Used: common.CloneAmount(q.DailyUsed), ResetAt: q.DailyResetAt}
}

// GlobalQuota tracks usage across every relayer.
type GlobalQuota struct {
	DailyUsed       *big.Int
	DailyResetAt    uint64
	TotalReimbursed *big.Int
}

func (q *GlobalQuota) window() common.WindowUsage {
	return common.WindowUsage{Used: common.CloneAmount(q.DailyUsed), ResetAt: q.DailyResetAt}
}

// Remaining reports the headroom left in each window. A nil field means the
// corresponding cap is disabled.
type Remaining struct {
	Relayer *big.Int
	Global  *big.Int
}

// Receipt describes a committed reimbursement.
type Receipt struct {
	Relayer         string
	Amount          *big.Int
	Reference       [32]byte
	RelayerUsed     *big.Int
	GlobalUsed      *big.Int
	TotalReimbursed *big.Int
}
