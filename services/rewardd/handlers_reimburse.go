package rewardd

import (
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/observability"
)

type reimburseRequest struct {
	Relayer   string `json:"relayer"`
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
}

type limitsView struct {
	PerTxCap        string `json:"per_tx_cap"`
	RelayerDailyCap string `json:"relayer_daily_cap"`
	GlobalDailyCap  string `json:"global_daily_cap"`
	PeriodSeconds   uint64 `json:"period_seconds"`
}

// headroom renders a nil remaining amount as null, meaning the cap is
// disabled.
func headroom(v *big.Int) *string {
	if v == nil {
		return nil
	}
	out := v.String()
	return &out
}

func (s *Server) handleReimburse(w http.ResponseWriter, r *http.Request) {
	var req reimburseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := requestAmount(req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	reference, err := parseHex32(req.Reference)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	relayer := req.Relayer
	if relayer == "" {
		relayer = caller(r)
	}
	receipt, err := s.engines.Reimburse.Reimburse(r.Context(), caller(r), relayer, amount, reference)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.recordQuota(r, relayer)
	writeJSON(w, http.StatusOK, newReceiptView(receipt))
}

func (s *Server) handleGetLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := s.engines.Reimburse.Limits(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, limitsView{
		PerTxCap:        amountString(limits.PerTxCap),
		RelayerDailyCap: amountString(limits.RelayerDailyCap),
		GlobalDailyCap:  amountString(limits.GlobalDailyCap),
		PeriodSeconds:   limits.Period,
	})
}

func (s *Server) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	var req limitsView
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	spec := LimitsSpec{
		PerTxCap:        req.PerTxCap,
		RelayerDailyCap: req.RelayerDailyCap,
		GlobalDailyCap:  req.GlobalDailyCap,
		PeriodSeconds:   req.PeriodSeconds,
	}
	limits, err := spec.limits()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engines.Reimburse.SetLimits(r.Context(), caller(r), limits); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	relayer := chi.URLParam(r, "relayer")
	quota, err := s.engines.Reimburse.RelayerQuota(r.Context(), relayer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	global, err := s.engines.Reimburse.GlobalQuota(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	remaining, err := s.engines.Reimburse.RemainingQuota(r.Context(), relayer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"relayer":               relayer,
		"daily_used":            amountString(quota.DailyUsed),
		"daily_reset_at":        quota.DailyResetAt,
		"lifetime_used":         amountString(quota.LifetimeUsed),
		"global_daily_used":     amountString(global.DailyUsed),
		"global_daily_reset_at": global.DailyResetAt,
		"total_reimbursed":      amountString(global.TotalReimbursed),
		"relayer_remaining":     headroom(remaining.Relayer),
		"global_remaining":      headroom(remaining.Global),
	})
}

func (s *Server) handleProcessed(w http.ResponseWriter, r *http.Request) {
	reference, err := parseHex32(chi.URLParam(r, "reference"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	processed, err := s.engines.Reimburse.IsProcessed(r.Context(), reference)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"processed": processed})
}

// recordQuota refreshes the headroom gauges after a reimbursement.
func (s *Server) recordQuota(r *http.Request, relayer string) {
	limits, err := s.engines.Reimburse.Limits(r.Context())
	if err != nil {
		return
	}
	remaining, err := s.engines.Reimburse.RemainingQuota(r.Context(), relayer)
	if err != nil {
		return
	}
	metrics := observability.Rewardd()
	if remaining.Global != nil {
		metrics.RecordQuota("global", remaining.Global, limits.GlobalDailyCap)
	}
	if remaining.Relayer != nil {
		metrics.RecordQuota(relayer, remaining.Relayer, limits.RelayerDailyCap)
	}
}
