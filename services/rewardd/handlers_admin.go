package rewardd

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/accrual"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/campaign"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/reimburse"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/session"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/observability"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/services/rewardd/audit"
)

var pausableModules = []string{
	session.ModuleName,
	campaign.ModuleName,
	accrual.ModuleName,
	reimburse.ModuleName,
}

type roleRequest struct {
	Principal  string `json:"principal"`
	Capability string `json:"capability"`
	Granted    bool   `json:"granted"`
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

type transferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	capability, err := common.ParseCapability(req.Capability)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Granted {
		err = s.engines.Roles.Grant(r.Context(), caller(r), req.Principal, capability)
	} else {
		err = s.engines.Roles.Revoke(r.Context(), caller(r), req.Principal, capability)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("role updated",
		"principal", req.Principal,
		"capability", string(capability),
		"granted", req.Granted,
		"by", caller(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPauses(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]bool, len(pausableModules))
	for _, module := range pausableModules {
		out[module] = s.engines.Pauses.IsPaused(r.Context(), module)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetPause(w http.ResponseWriter, r *http.Request) {
	module := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "module")))
	known := false
	for _, candidate := range pausableModules {
		if candidate == module {
			known = true
			break
		}
	}
	if !known {
		writeError(w, http.StatusNotFound, "unknown module")
		return
	}
	var req pauseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.engines.Pauses.SetPaused(r.Context(), caller(r), module, req.Paused); err != nil {
		s.fail(w, r, err)
		return
	}
	observability.Rewardd().SetPause(module, req.Paused)
	s.logger.Warn("module pause toggled", "module", module, "paused", req.Paused, "by", caller(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.engines.Bank.BalanceOf(r.Context(), chi.URLParam(r, "account"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": amountString(balance)})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := requestAmount(req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.engines.Bank.Transfer(r.Context(), caller(r), req.To, amount); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuditEvents(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit store not configured")
		return
	}
	query := audit.Query{
		Type:       strings.TrimSpace(r.URL.Query().Get("type")),
		CampaignID: strings.TrimSpace(r.URL.Query().Get("campaign")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		query.Limit = limit
	}
	records, err := s.audit.List(r.Context(), query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
