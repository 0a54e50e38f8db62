package rewardd

import (
	"net/http"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/invoker"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/reimburse"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/session"
)

const maxBatchItems = 256

type reimbursementRequest struct {
	Relayer   string `json:"relayer,omitempty"`
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
}

type invokeRequest struct {
	Handle        string                `json:"handle"`
	CampaignID    string                `json:"campaign_id"`
	Amount        string                `json:"amount,omitempty"`
	Reimbursement *reimbursementRequest `json:"reimbursement,omitempty"`
}

type invokeBatchRequest struct {
	Items []invokeRequest `json:"items"`
}

type receiptView struct {
	Relayer         string `json:"relayer"`
	Amount          string `json:"amount"`
	Reference       string `json:"reference"`
	RelayerUsed     string `json:"relayer_used"`
	GlobalUsed      string `json:"global_used"`
	TotalReimbursed string `json:"total_reimbursed"`
}

func newReceiptView(r *reimburse.Receipt) *receiptView {
	if r == nil {
		return nil
	}
	return &receiptView{
		Relayer:         r.Relayer,
		Amount:          amountString(r.Amount),
		Reference:       hexString(r.Reference),
		RelayerUsed:     amountString(r.RelayerUsed),
		GlobalUsed:      amountString(r.GlobalUsed),
		TotalReimbursed: amountString(r.TotalReimbursed),
	}
}

type outcomeView struct {
	Sequence           uint64       `json:"sequence"`
	Success            bool         `json:"success"`
	Principal          string       `json:"principal,omitempty"`
	Amount             string       `json:"amount,omitempty"`
	Reason             string       `json:"reason,omitempty"`
	Reimbursed         *receiptView `json:"reimbursed,omitempty"`
	ReimbursementError string       `json:"reimbursement_error,omitempty"`
	AuditError         string       `json:"audit_error,omitempty"`
}

func newOutcomeView(o invoker.Outcome) outcomeView {
	view := outcomeView{
		Sequence:   o.Sequence,
		Success:    o.Succeeded(),
		Principal:  o.Principal,
		Reason:     o.Reason,
		Reimbursed: newReceiptView(o.Reimbursed),
	}
	if o.Succeeded() {
		view.Amount = amountString(o.Amount)
	}
	if o.ReimbursementErr != nil {
		view.ReimbursementError = o.ReimbursementErr.Error()
	}
	if o.AuditErr != nil {
		view.AuditError = o.AuditErr.Error()
	}
	return view
}

func (req invokeRequest) item() (invoker.Item, error) {
	handle, err := parseHex32(req.Handle)
	if err != nil {
		return invoker.Item{}, err
	}
	override, err := optionalAmount(req.Amount)
	if err != nil {
		return invoker.Item{}, err
	}
	item := invoker.Item{
		Handle:         session.Handle(handle),
		CampaignID:     req.CampaignID,
		OverrideAmount: override,
	}
	if req.Reimbursement != nil {
		amount, err := requestAmount(req.Reimbursement.Amount)
		if err != nil {
			return invoker.Item{}, err
		}
		reference, err := parseHex32(req.Reimbursement.Reference)
		if err != nil {
			return invoker.Item{}, err
		}
		item.Reimbursement = &invoker.Reimbursement{
			Relayer:   req.Reimbursement.Relayer,
			Amount:    amount,
			Reference: reference,
		}
	}
	return item, nil
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := req.item()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	outcome := s.engines.Invoker.Invoke(r.Context(), caller(r), item)
	status := http.StatusOK
	if !outcome.Succeeded() {
		status = statusFor(outcome.Err)
	}
	writeJSON(w, status, newOutcomeView(outcome))
}

func (s *Server) handleInvokeBatch(w http.ResponseWriter, r *http.Request) {
	var req invokeBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if len(req.Items) == 0 || len(req.Items) > maxBatchItems {
		writeError(w, http.StatusBadRequest, "batch must hold between 1 and 256 items")
		return
	}
	items := make([]invoker.Item, 0, len(req.Items))
	for _, entry := range req.Items {
		item, err := entry.item()
		if err != nil {
			s.fail(w, r, err)
			return
		}
		items = append(items, item)
	}
	result := s.engines.Invoker.InvokeBatch(r.Context(), caller(r), items)
	outcomes := make([]outcomeView, 0, len(result.Outcomes))
	for _, outcome := range result.Outcomes {
		outcomes = append(outcomes, newOutcomeView(outcome))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success_count": result.SuccessCount,
		"outcomes":      outcomes,
	})
}

func (s *Server) handleSequence(w http.ResponseWriter, r *http.Request) {
	sequence, err := s.engines.Invoker.Sequence(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"sequence": sequence})
}
