package rewardd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/accrual"
)

type createPoolRequest struct {
	ID     string `json:"id"`
	Weight uint64 `json:"weight"`
}

type weightRequest struct {
	Weight uint64 `json:"weight"`
}

type tierRequest struct {
	LockSeconds         uint64 `json:"lock_seconds"`
	RewardMultiplierBps uint64 `json:"reward_multiplier_bps"`
	WeightMultiplierBps uint64 `json:"weight_multiplier_bps"`
	MinStake            string `json:"min_stake,omitempty"`
}

type fundRequest struct {
	Amount          string `json:"amount"`
	DurationSeconds uint64 `json:"duration_seconds"`
}

type depositRequest struct {
	Tier   string `json:"tier"`
	Amount string `json:"amount"`
}

type tierSelector struct {
	Tier string `json:"tier"`
}

type poolView struct {
	ID                string `json:"id"`
	TotalDeposited    string `json:"total_deposited"`
	TotalShares       string `json:"total_shares"`
	AccRewardPerShare string `json:"acc_reward_per_share"`
	LastRewardTime    uint64 `json:"last_reward_time"`
	AllocationWeight  uint64 `json:"allocation_weight"`
}

func newPoolView(p *accrual.Pool) poolView {
	return poolView{
		ID:                p.ID,
		TotalDeposited:    amountString(p.TotalDeposited),
		TotalShares:       amountString(p.TotalShares),
		AccRewardPerShare: amountString(p.AccRewardPerShare),
		LastRewardTime:    p.LastRewardTime,
		AllocationWeight:  p.AllocationWeight,
	}
}

type positionView struct {
	Principal           string `json:"principal"`
	PoolID              string `json:"pool_id"`
	TierID              string `json:"tier_id"`
	Amount              string `json:"amount"`
	Shares              string `json:"shares"`
	LockEndsAt          uint64 `json:"lock_ends_at"`
	RewardDebt          string `json:"reward_debt"`
	PendingRewards      string `json:"pending_rewards"`
	LastInteractionTime uint64 `json:"last_interaction_time"`
}

func newPositionView(p *accrual.Position) positionView {
	return positionView{
		Principal:           p.Principal,
		PoolID:              p.PoolID,
		TierID:              p.TierID,
		Amount:              amountString(p.Amount),
		Shares:              amountString(p.Shares),
		LockEndsAt:          p.LockEndsAt,
		RewardDebt:          amountString(p.RewardDebt),
		PendingRewards:      amountString(p.PendingRewards),
		LastInteractionTime: p.LastInteractionTime,
	}
}

type emissionView struct {
	RewardRatePerSecond   string `json:"reward_rate_per_second"`
	RewardsEndTime        uint64 `json:"rewards_end_time"`
	TotalAllocationWeight uint64 `json:"total_allocation_weight"`
	RewardReserve         string `json:"reward_reserve"`
}

func newEmissionView(e *accrual.Emission) emissionView {
	return emissionView{
		RewardRatePerSecond:   amountString(e.RewardRatePerSecond),
		RewardsEndTime:        e.RewardsEndTime,
		TotalAllocationWeight: e.TotalAllocationWeight,
		RewardReserve:         amountString(e.RewardReserve),
	}
}

type tierView struct {
	ID                  string `json:"id"`
	LockSeconds         uint64 `json:"lock_seconds"`
	RewardMultiplierBps uint64 `json:"reward_multiplier_bps"`
	WeightMultiplierBps uint64 `json:"weight_multiplier_bps"`
	MinStake            string `json:"min_stake"`
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	pool, err := s.engines.Accrual.CreatePool(r.Context(), caller(r), req.ID, req.Weight)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPoolView(pool))
}

func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.engines.Accrual.Pools(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]poolView, 0, len(pools))
	for _, pool := range pools {
		out = append(out, newPoolView(pool))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := s.engines.Accrual.Pool(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolView(pool))
}

func (s *Server) handleSetWeight(w http.ResponseWriter, r *http.Request) {
	var req weightRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.engines.Accrual.SetAllocationWeight(r.Context(), caller(r), chi.URLParam(r, "id"), req.Weight); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetTier(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	minStake, err := optionalAmount(req.MinStake)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	err = s.engines.Accrual.SetTier(r.Context(), caller(r), accrual.Tier{
		ID:                  chi.URLParam(r, "id"),
		LockDuration:        req.LockSeconds,
		RewardMultiplierBps: req.RewardMultiplierBps,
		WeightMultiplierBps: req.WeightMultiplierBps,
		MinStake:            minStake,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetTier(w http.ResponseWriter, r *http.Request) {
	tier, err := s.engines.Accrual.Tier(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tierView{
		ID:                  tier.ID,
		LockSeconds:         tier.LockDuration,
		RewardMultiplierBps: tier.RewardMultiplierBps,
		WeightMultiplierBps: tier.WeightMultiplierBps,
		MinStake:            amountString(tier.MinStake),
	})
}

func (s *Server) handleFundRewards(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := requestAmount(req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	emission, err := s.engines.Accrual.FundRewards(r.Context(), caller(r), amount, req.DurationSeconds)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEmissionView(emission))
}

func (s *Server) handleEmission(w http.ResponseWriter, r *http.Request) {
	emission, err := s.engines.Accrual.Emission(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEmissionView(emission))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := requestAmount(req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	position, err := s.engines.Accrual.Deposit(r.Context(), caller(r), chi.URLParam(r, "id"), req.Tier, amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPositionView(position))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req tierSelector
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	stake, reward, err := s.engines.Accrual.Withdraw(r.Context(), caller(r), chi.URLParam(r, "id"), req.Tier)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"stake":  amountString(stake),
		"reward": amountString(reward),
	})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	reward, err := s.engines.Accrual.Claim(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reward": amountString(reward)})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.engines.Accrual.PendingRewards(r.Context(), chi.URLParam(r, "principal"), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pending": amountString(pending)})
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	position, ok, err := s.engines.Accrual.Position(r.Context(), chi.URLParam(r, "principal"), chi.URLParam(r, "id"), chi.URLParam(r, "tier"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		s.fail(w, r, accrual.ErrNoPosition)
		return
	}
	writeJSON(w, http.StatusOK, newPositionView(position))
}
