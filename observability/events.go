package observability

import "github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/events"

// EventMetrics is an events.Emitter that turns committed ledger events into
// metric updates.
type EventMetrics struct {
	metrics *RewarddMetrics
}

// NewEventMetrics binds an emitter to the supplied registry, defaulting to
// Rewardd().
func NewEventMetrics(m *RewarddMetrics) *EventMetrics {
	if m == nil {
		m = Rewardd()
	}
	return &EventMetrics{metrics: m}
}

// Emit implements events.Emitter.
func (e *EventMetrics) Emit(evt events.Event) {
	if e == nil || evt == nil {
		return
	}
	e.metrics.RecordEvent(evt.EventType())
	switch typed := evt.(type) {
	case events.RewardGranted:
		e.metrics.RecordGrant(typed.CampaignID, typed.Amount)
	case events.Invocation:
		e.metrics.RecordInvocation(typed.Success)
	case events.Reimbursed:
		e.metrics.RecordReimbursement(typed.Amount)
	}
}

// PauseGauge adapts the pause toggle to the pause_engaged gauge.
func (e *EventMetrics) PauseGauge(module string, paused bool) {
	if e == nil {
		return
	}
	e.metrics.SetPause(module, paused)
}
