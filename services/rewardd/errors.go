package rewardd

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/state"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/accrual"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/bank"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/campaign"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/invoker"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/reimburse"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/session"
)

var errInvalidRequest = errors.New("invalid request")

type statusRule struct {
	err    error
	status int
}

// statusRules is evaluated in order; the first matching sentinel wins.
var statusRules = []statusRule{
	{errInvalidRequest, http.StatusBadRequest},
	{common.ErrInvariantViolation, http.StatusInternalServerError},
	{common.ErrUnauthorized, http.StatusForbidden},
	{common.ErrModulePaused, http.StatusServiceUnavailable},
	{state.ErrReentrantCall, http.StatusConflict},
	{invoker.ErrNotConfigured, http.StatusServiceUnavailable},
	{reimburse.ErrLimitsNotConfigured, http.StatusServiceUnavailable},

	{session.ErrTokenNotFound, http.StatusNotFound},
	{campaign.ErrCampaignNotFound, http.StatusNotFound},
	{accrual.ErrPoolNotFound, http.StatusNotFound},
	{accrual.ErrTierNotFound, http.StatusNotFound},
	{accrual.ErrNoPosition, http.StatusNotFound},

	{session.ErrTokenInactive, http.StatusConflict},
	{session.ErrTokenAlreadyUsed, http.StatusConflict},
	{session.ErrTokenExpired, http.StatusConflict},
	{session.ErrAlreadyInactive, http.StatusConflict},
	{session.ErrDuplicateToken, http.StatusConflict},
	{invoker.ErrInvalidToken, http.StatusConflict},
	{campaign.ErrCampaignExists, http.StatusConflict},
	{campaign.ErrCampaignInactive, http.StatusConflict},
	{campaign.ErrNotStarted, http.StatusConflict},
	{campaign.ErrEnded, http.StatusConflict},
	{campaign.ErrCampaignMismatch, http.StatusConflict},
	{campaign.ErrCategoryMismatch, http.StatusConflict},
	{campaign.ErrAlreadyCompleted, http.StatusConflict},
	{accrual.ErrPoolExists, http.StatusConflict},
	{accrual.ErrLocked, http.StatusConflict},
	{reimburse.ErrReferenceReused, http.StatusConflict},

	{campaign.ErrBudgetExhausted, http.StatusUnprocessableEntity},
	{campaign.ErrAmountAboveCeiling, http.StatusUnprocessableEntity},
	{accrual.ErrInsufficientRewards, http.StatusUnprocessableEntity},
	{accrual.ErrBelowMinStake, http.StatusUnprocessableEntity},
	{accrual.ErrRateUnderflow, http.StatusUnprocessableEntity},
	{bank.ErrInsufficientBalance, http.StatusUnprocessableEntity},
	{bank.ErrBalanceOverflow, http.StatusUnprocessableEntity},
	{reimburse.ErrInsufficientFunds, http.StatusUnprocessableEntity},

	{reimburse.ErrPerTxLimitExceeded, http.StatusTooManyRequests},
	{reimburse.ErrDailyRelayerLimitExceeded, http.StatusTooManyRequests},
	{reimburse.ErrDailyGlobalLimitExceeded, http.StatusTooManyRequests},

	{session.ErrOwnerRequired, http.StatusBadRequest},
	{session.ErrInvalidCategory, http.StatusBadRequest},
	{session.ErrInvalidTTL, http.StatusBadRequest},
	{session.ErrInvalidHandle, http.StatusBadRequest},
	{session.ErrInvalidMaxAmount, http.StatusBadRequest},
	{campaign.ErrCampaignIDRequired, http.StatusBadRequest},
	{campaign.ErrZeroAmount, http.StatusBadRequest},
	{campaign.ErrInvalidWindow, http.StatusBadRequest},
	{accrual.ErrPrincipalRequired, http.StatusBadRequest},
	{accrual.ErrInvalidID, http.StatusBadRequest},
	{accrual.ErrInvalidAmount, http.StatusBadRequest},
	{accrual.ErrInvalidDuration, http.StatusBadRequest},
	{accrual.ErrInvalidTier, http.StatusBadRequest},
	{bank.ErrAccountRequired, http.StatusBadRequest},
	{bank.ErrInvalidAmount, http.StatusBadRequest},
	{reimburse.ErrRelayerRequired, http.StatusBadRequest},
	{reimburse.ErrReferenceRequired, http.StatusBadRequest},
	{reimburse.ErrZeroAmount, http.StatusBadRequest},
	{reimburse.ErrInvalidLimits, http.StatusBadRequest},
	{state.ErrInvalidPrincipal, http.StatusBadRequest},
}

// statusFor maps an engine error onto an HTTP status code.
func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, rule := range statusRules {
		if errors.Is(err, rule.err) {
			return rule.status
		}
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
