package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	rewardMetricsOnce sync.Once
	rewardRegistry    *RewarddMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record API
// handler activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "reward",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "reward",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "reward",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "reward",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of an API request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// RewarddMetrics wraps collectors tracking control-plane health.
type RewarddMetrics struct {
	events         *prometheus.CounterVec
	granted        *prometheus.CounterVec
	invocations    *prometheus.CounterVec
	reimbursed     prometheus.Counter
	quotaRemaining *prometheus.GaugeVec
	quotaUsage     *prometheus.GaugeVec
	pauseEngaged   *prometheus.GaugeVec
}

// Rewardd exposes the metrics registry for the reward daemon.
func Rewardd() *RewarddMetrics {
	rewardMetricsOnce.Do(func() {
		rewardRegistry = &RewarddMetrics{
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "reward",
				Subsystem: "ledger",
				Name:      "events_total",
				Help:      "Committed ledger events segmented by type.",
			}, []string{"type"}),
			granted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "reward",
				Subsystem: "campaign",
				Name:      "granted_amount_total",
				Help:      "Value granted per campaign in integer base units.",
			}, []string{"campaign"}),
			invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "reward",
				Subsystem: "invoker",
				Name:      "invocations_total",
				Help:      "Invoker calls segmented by outcome.",
			}, []string{"outcome"}),
			reimbursed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "reward",
				Subsystem: "reimburse",
				Name:      "paid_amount_total",
				Help:      "Value reimbursed to relayers in integer base units.",
			}),
			quotaRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "reward",
				Subsystem: "reimburse",
				Name:      "quota_remaining",
				Help:      "Remaining reimbursement headroom in the current window.",
			}, []string{"scope"}),
			quotaUsage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "reward",
				Subsystem: "reimburse",
				Name:      "quota_utilization",
				Help:      "Ratio of consumed reimbursement cap for the current window (0-1).",
			}, []string{"scope"}),
			pauseEngaged: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "reward",
				Subsystem: "ledger",
				Name:      "pause_engaged",
				Help:      "Indicates whether a module pause guard is active (1) or not (0).",
			}, []string{"module"}),
		}
		prometheus.MustRegister(
			rewardRegistry.events,
			rewardRegistry.granted,
			rewardRegistry.invocations,
			rewardRegistry.reimbursed,
			rewardRegistry.quotaRemaining,
			rewardRegistry.quotaUsage,
			rewardRegistry.pauseEngaged,
		)
	})
	return rewardRegistry
}

// RecordEvent increments the committed event counter.
func (m *RewarddMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType = strings.TrimSpace(eventType); eventType == "" {
		eventType = "unknown"
	}
	m.events.WithLabelValues(eventType).Inc()
}

// RecordGrant adds a granted amount to the campaign counter.
func (m *RewarddMetrics) RecordGrant(campaign string, amount *big.Int) {
	if m == nil {
		return
	}
	m.granted.WithLabelValues(labelValue(campaign)).Add(bigToFloat(amount))
}

// RecordInvocation counts an invoker call.
func (m *RewarddMetrics) RecordInvocation(success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.invocations.WithLabelValues(outcome).Inc()
}

// RecordReimbursement adds a reimbursed amount.
func (m *RewarddMetrics) RecordReimbursement(amount *big.Int) {
	if m == nil {
		return
	}
	m.reimbursed.Add(bigToFloat(amount))
}

// RecordQuota updates the remaining headroom and utilisation gauge for a
// reimbursement window scope ("global" or a relayer).
func (m *RewarddMetrics) RecordQuota(scope string, remaining, total *big.Int) {
	if m == nil {
		return
	}
	label := labelValue(scope)
	remainingVal := bigToFloat(remaining)
	m.quotaRemaining.WithLabelValues(label).Set(remainingVal)
	totalVal := bigToFloat(total)
	utilisation := 0.0
	if totalVal > 0 {
		used := totalVal - remainingVal
		if used < 0 {
			used = 0
		}
		utilisation = used / totalVal
		if utilisation > 1 {
			utilisation = 1
		}
	}
	m.quotaUsage.WithLabelValues(label).Set(utilisation)
}

// SetPause toggles the pause_engaged gauge of module.
func (m *RewarddMetrics) SetPause(module string, engaged bool) {
	if m == nil {
		return
	}
	if engaged {
		m.pauseEngaged.WithLabelValues(labelValue(module)).Set(1)
		return
	}
	m.pauseEngaged.WithLabelValues(labelValue(module)).Set(0)
}

func labelValue(v string) string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return "unknown"
	}
	return strings.ToLower(trimmed)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
