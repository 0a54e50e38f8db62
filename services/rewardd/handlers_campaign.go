package rewardd

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/campaign"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/session"
)

type createCampaignRequest struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Category        string `json:"category,omitempty"`
	RewardPerAction string `json:"reward_per_action"`
	TotalBudget     string `json:"total_budget"`
	StartTime       uint64 `json:"start_time"`
	EndTime         uint64 `json:"end_time"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type activeRequest struct {
	Active bool `json:"active"`
}

type grantRequest struct {
	Handle string `json:"handle"`
	Amount string `json:"amount,omitempty"`
}

type campaignView struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Category        string `json:"category,omitempty"`
	RewardPerAction string `json:"reward_per_action"`
	TotalBudget     string `json:"total_budget"`
	Distributed     string `json:"distributed"`
	Remaining       string `json:"remaining"`
	CompletionCount uint64 `json:"completion_count"`
	Active          bool   `json:"active"`
	StartTime       uint64 `json:"start_time"`
	EndTime         uint64 `json:"end_time"`
}

func newCampaignView(c *campaign.Campaign) campaignView {
	return campaignView{
		ID:              c.ID,
		Name:            c.Name,
		Category:        c.Category,
		RewardPerAction: amountString(c.RewardPerAction),
		TotalBudget:     amountString(c.TotalBudget),
		Distributed:     amountString(c.Distributed),
		Remaining:       amountString(c.Remaining()),
		CompletionCount: c.CompletionCount,
		Active:          c.Active,
		StartTime:       c.StartTime,
		EndTime:         c.EndTime,
	}
}

type recordView struct {
	Sequence   uint64 `json:"sequence"`
	Principal  string `json:"principal"`
	CampaignID string `json:"campaign_id"`
	Amount     string `json:"amount"`
	Timestamp  uint64 `json:"timestamp"`
	TokenRef   string `json:"token_ref"`
}

func newRecordView(r campaign.RewardRecord) recordView {
	return recordView{
		Sequence:   r.Sequence,
		Principal:  r.Principal,
		CampaignID: r.CampaignID,
		Amount:     amountString(r.Amount),
		Timestamp:  r.Timestamp,
		TokenRef:   hexString(r.TokenRef),
	}
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	reward, err := requestAmount(req.RewardPerAction)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	budget, err := requestAmount(req.TotalBudget)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.engines.Campaigns.CreateCampaign(r.Context(), caller(r), campaign.Params{
		ID:              req.ID,
		Name:            req.Name,
		Category:        req.Category,
		RewardPerAction: reward,
		TotalBudget:     budget,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCampaignView(created))
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.engines.Campaigns.Campaigns(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]campaignView, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, newCampaignView(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.engines.Campaigns.Campaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCampaignView(c))
}

func (s *Server) handleAddBudget(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := requestAmount(req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.engines.Campaigns.AddBudget(r.Context(), caller(r), chi.URLParam(r, "id"), amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCampaignView(updated))
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.engines.Campaigns.SetActive(r.Context(), caller(r), chi.URLParam(r, "id"), req.Active)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCampaignView(updated))
}

func (s *Server) handleSetReward(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := requestAmount(req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.engines.Campaigns.SetRewardPerAction(r.Context(), caller(r), chi.URLParam(r, "id"), amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCampaignView(updated))
}

func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	handle, err := parseHex32(req.Handle)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	override, err := optionalAmount(req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.engines.Campaigns.Grant(r.Context(), caller(r), campaign.GrantRequest{
		Handle:         session.Handle(handle),
		CampaignID:     chi.URLParam(r, "id"),
		OverrideAmount: override,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"principal": res.Principal,
		"amount":    amountString(res.Amount),
		"record":    newRecordView(res.Record),
	})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.engines.Campaigns.Records(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]recordView, 0, len(records))
	for _, record := range records {
		out = append(out, newRecordView(record))
	}
	writeJSON(w, http.StatusOK, out)
}

type auditView struct {
	CampaignID      string `json:"campaign_id"`
	Distributed     string `json:"distributed"`
	Recomputed      string `json:"recomputed"`
	CompletionCount uint64 `json:"completion_count"`
	Records         uint64 `json:"records"`
	Consistent      bool   `json:"consistent"`
}

func newAuditView(report campaign.AuditReport) auditView {
	return auditView{
		CampaignID:      report.CampaignID,
		Distributed:     amountString(report.Distributed),
		Recomputed:      amountString(report.Recomputed),
		CompletionCount: report.CompletionCount,
		Records:         report.Records,
		Consistent:      report.Consistent(),
	}
}

func (s *Server) handleAuditCampaign(w http.ResponseWriter, r *http.Request) {
	report, err := s.engines.Campaigns.Audit(r.Context(), chi.URLParam(r, "id"))
	if err != nil && !errors.Is(err, common.ErrInvariantViolation) {
		s.fail(w, r, err)
		return
	}
	if err != nil {
		s.logger.Error("campaign audit mismatch", "campaign", report.CampaignID, "error", err)
	}
	writeJSON(w, http.StatusOK, newAuditView(report))
}

func (s *Server) handleHasCompleted(w http.ResponseWriter, r *http.Request) {
	done, err := s.engines.Campaigns.HasCompleted(r.Context(), chi.URLParam(r, "principal"), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"completed": done})
}
