package rewardd

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/session"
)

type issueSessionRequest struct {
	Handle        string `json:"handle"`
	Owner         string `json:"owner"`
	Category      string `json:"category"`
	TTLSeconds    uint64 `json:"ttl_seconds"`
	BoundCampaign string `json:"bound_campaign,omitempty"`
	MaxAmount     string `json:"max_amount,omitempty"`
}

type sessionView struct {
	Digest        string `json:"digest"`
	Owner         string `json:"owner"`
	Category      string `json:"category"`
	IssuedAt      uint64 `json:"issued_at"`
	ExpiresAt     uint64 `json:"expires_at"`
	Used          bool   `json:"used"`
	Active        bool   `json:"active"`
	BoundCampaign string `json:"bound_campaign,omitempty"`
	MaxAmount     string `json:"max_amount"`
}

func newSessionView(s *session.Session) *sessionView {
	if s == nil {
		return nil
	}
	return &sessionView{
		Digest:        hexString(s.Digest),
		Owner:         s.Owner,
		Category:      s.Category,
		IssuedAt:      s.IssuedAt,
		ExpiresAt:     s.ExpiresAt,
		Used:          s.Used,
		Active:        s.Active,
		BoundCampaign: s.BoundCampaign,
		MaxAmount:     amountString(s.MaxAmount),
	}
}

func sessionHandle(r *http.Request) (session.Handle, error) {
	raw, err := parseHex32(chi.URLParam(r, "handle"))
	return session.Handle(raw), err
}

func (s *Server) handleIssueSession(w http.ResponseWriter, r *http.Request) {
	var req issueSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	handle, err := parseHex32(req.Handle)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	category, err := session.ParseCategory(req.Category)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	maxAmount, err := optionalAmount(req.MaxAmount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	digest, err := s.engines.Sessions.Issue(r.Context(), caller(r), session.IssueRequest{
		Handle:        session.Handle(handle),
		Owner:         req.Owner,
		Category:      category,
		TTL:           time.Duration(req.TTLSeconds) * time.Second,
		BoundCampaign: req.BoundCampaign,
		MaxAmount:     maxAmount,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"digest": hexString(digest)})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	handle, err := sessionHandle(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	record, ok, err := s.engines.Sessions.Session(r.Context(), handle)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		s.fail(w, r, session.ErrTokenNotFound)
		return
	}
	status, err := s.engines.Sessions.Status(r.Context(), handle)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  status.String(),
		"valid":   s.engines.Sessions.IsValid(r.Context(), handle),
		"session": newSessionView(record),
	})
}

func (s *Server) handleConsumeSession(w http.ResponseWriter, r *http.Request) {
	handle, err := sessionHandle(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	owner, bound, err := s.engines.Sessions.Consume(r.Context(), caller(r), handle)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"owner": owner, "bound_campaign": bound})
}

func (s *Server) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	handle, err := sessionHandle(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.engines.Sessions.Revoke(r.Context(), caller(r), handle); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engines.Sessions.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{
		"total_issued":   stats.TotalIssued,
		"total_consumed": stats.TotalConsumed,
		"total_revoked":  stats.TotalRevoked,
	})
}
