package rewardd

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/events"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/accrual"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/reimburse"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/observability/logging"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/storage"
)

const testSecret = "rewardd-test-secret"

type harness struct {
	t       *testing.T
	clock   *common.ManualClock
	engines *Engines
	hub     *Hub
	server  *Server
}

func testCatalog() *Catalog {
	return &Catalog{
		Operator: "ops",
		Roles: []RoleGrant{
			{Principal: "issuer", Capabilities: []string{"session_issuer"}},
			{Principal: "relayer", Capabilities: []string{"relayer"}},
		},
		Tiers:  []TierSpec{{ID: "flex", RewardMultiplierBps: 10_000, WeightMultiplierBps: 10_000}},
		Pools:  []PoolSpec{{ID: "core", Weight: 1}},
		Limits: &LimitsSpec{PerTxCap: "10", RelayerDailyCap: "15"},
		Campaigns: []CampaignSpec{{
			ID:              "onboarding",
			Name:            "Onboarding",
			Category:        "TRAINING",
			RewardPerAction: "100",
			TotalBudget:     "250",
		}},
		Balances: []BalanceSpec{
			{Account: "treasury", Amount: "1000"},
			{Account: "ops", Amount: "5000"},
			{Account: "alice", Amount: "500"},
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, testCatalog())
}

func newHarnessWith(t *testing.T, catalog *Catalog) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{t: t, clock: common.NewManualClock(time.Unix(1_700_000_000, 0)), hub: NewHub()}
	engines, err := NewEngines(ctx, storage.NewMemDB(), EngineOptions{
		Treasury: "treasury",
		Clock:    h.clock,
		Emitter:  events.MultiEmitter{h.hub},
	})
	require.NoError(t, err)
	require.NoError(t, catalog.Apply(ctx, engines))
	h.engines = engines

	auth, err := NewAuthenticator(AuthConfig{HMACSecret: testSecret}, nil)
	require.NoError(t, err)
	h.server, err = NewServer(ServerOptions{
		Engines:       engines,
		Hub:           h.hub,
		Authenticator: auth,
		RateLimiter:   NewRateLimiter(RateLimitConfig{RequestsPerMinute: 60_000, Burst: 1_000}),
	})
	require.NoError(t, err)
	return h
}

func token(t *testing.T, subject string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (h *harness) do(principal, method, path string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if principal != "" {
		req.Header.Set("Authorization", "Bearer "+token(h.t, principal))
	}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func randomHandle(t *testing.T) string {
	t.Helper()
	var b [32]byte
	_, err := rand.Read(b[:])
	require.NoError(t, err)
	return "0x" + hex.EncodeToString(b[:])
}

func (h *harness) issue(owner string) string {
	h.t.Helper()
	handle := randomHandle(h.t)
	rec := h.do("issuer", http.MethodPost, "/v1/sessions", map[string]interface{}{
		"handle":      handle,
		"owner":       owner,
		"category":    "training",
		"ttl_seconds": 3600,
	})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return handle
}

func TestHealthAndAuth(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do("", http.MethodGet, "/healthz", nil).Code)
	require.Equal(t, http.StatusUnauthorized, h.do("", http.MethodGet, "/v1/me", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do("ops", http.MethodGet, "/v1/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "ops", body["principal"])
	require.Contains(t, body["capabilities"], string(common.CapAdmin))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestInvokeGrantsOnceAndAudits(t *testing.T) {
	h := newHarness(t)
	handle := h.issue("alice")

	rec := h.do("issuer", http.MethodGet, "/v1/sessions/"+handle, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decode(t, rec)["valid"])

	rec = h.do("relayer", http.MethodPost, "/v1/invoke", map[string]interface{}{
		"handle":      handle,
		"campaign_id": "onboarding",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	outcome := decode(t, rec)
	require.Equal(t, true, outcome["success"])
	require.Equal(t, "alice", outcome["principal"])
	require.Equal(t, "100", outcome["amount"])
	require.EqualValues(t, 1, outcome["sequence"])

	rec = h.do("alice", http.MethodGet, "/v1/balances/alice", nil)
	require.Equal(t, "600", decode(t, rec)["balance"])

	rec = h.do("relayer", http.MethodPost, "/v1/invoke", map[string]interface{}{
		"handle":      handle,
		"campaign_id": "onboarding",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	outcome = decode(t, rec)
	require.Equal(t, false, outcome["success"])
	require.EqualValues(t, 2, outcome["sequence"])
	require.NotEmpty(t, outcome["reason"])

	rec = h.do("issuer", http.MethodGet, "/v1/sessions/"+handle, nil)
	body := decode(t, rec)
	require.Equal(t, "used", body["status"])
	require.Equal(t, false, body["valid"])

	rec = h.do("ops", http.MethodGet, "/v1/campaigns/onboarding/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	audit := decode(t, rec)
	require.Equal(t, true, audit["consistent"])
	require.Equal(t, "100", audit["distributed"])

	rec = h.do("ops", http.MethodGet, "/v1/campaigns/onboarding/completions/alice", nil)
	require.Equal(t, true, decode(t, rec)["completed"])
}

func TestInvokeBatchIsBestEffort(t *testing.T) {
	h := newHarness(t)
	items := []map[string]interface{}{
		{"handle": h.issue("alice"), "campaign_id": "onboarding"},
		{"handle": randomHandle(t), "campaign_id": "onboarding"},
		{"handle": h.issue("bob"), "campaign_id": "onboarding"},
		{"handle": h.issue("carol"), "campaign_id": "onboarding"},
	}
	rec := h.do("relayer", http.MethodPost, "/v1/invoke/batch", map[string]interface{}{"items": items})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	// Budget 250 covers two grants of 100.
	require.EqualValues(t, 2, body["success_count"])
	outcomes := body["outcomes"].([]interface{})
	require.Len(t, outcomes, 4)
	require.Equal(t, false, outcomes[1].(map[string]interface{})["success"])
	require.Equal(t, false, outcomes[3].(map[string]interface{})["success"])

	rec = h.do("relayer", http.MethodGet, "/v1/invoke/sequence", nil)
	require.EqualValues(t, 4, decode(t, rec)["sequence"])
}

func TestInvokeZeroAmountUsesRewardPerAction(t *testing.T) {
	h := newHarness(t)
	rec := h.do("relayer", http.MethodPost, "/v1/invoke", map[string]interface{}{
		"handle":      h.issue("alice"),
		"campaign_id": "onboarding",
		"amount":      "0",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "100", decode(t, rec)["amount"])

	rec = h.do("relayer", http.MethodPost, "/v1/invoke", map[string]interface{}{
		"handle":      h.issue("bob"),
		"campaign_id": "onboarding",
		"amount":      "-5",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCapabilitiesAreEnforced(t *testing.T) {
	h := newHarness(t)
	rec := h.do("alice", http.MethodPost, "/v1/campaigns", map[string]interface{}{
		"id":                "rogue",
		"name":              "Rogue",
		"reward_per_action": "1",
		"total_budget":      "1",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do("ops", http.MethodPost, "/v1/campaigns", map[string]interface{}{
		"id":                "onboarding",
		"name":              "Duplicate",
		"reward_per_action": "1",
		"total_budget":      "1",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do("ops", http.MethodPost, "/v1/campaigns", map[string]interface{}{
		"id":                "bad",
		"reward_per_action": "-1",
		"total_budget":      "1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do("ops", http.MethodPost, "/v1/admin/roles", map[string]interface{}{
		"principal":  "alice",
		"capability": "campaign_manager",
		"granted":    true,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do("alice", http.MethodPost, "/v1/campaigns", map[string]interface{}{
		"id":                "esg",
		"name":              "ESG",
		"category":          "esg",
		"reward_per_action": "5",
		"total_budget":      "50",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "ESG", decode(t, rec)["category"])
}

func TestPauseBlocksModule(t *testing.T) {
	h := newHarness(t)
	rec := h.do("alice", http.MethodPost, "/v1/admin/pauses/session", map[string]bool{"paused": true})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do("ops", http.MethodPost, "/v1/admin/pauses/session", map[string]bool{"paused": true})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do("issuer", http.MethodPost, "/v1/sessions", map[string]interface{}{
		"handle":      randomHandle(t),
		"owner":       "alice",
		"category":    "training",
		"ttl_seconds": 60,
	})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = h.do("ops", http.MethodGet, "/v1/admin/pauses", nil)
	require.Equal(t, true, decode(t, rec)["session"])

	require.Equal(t, http.StatusNoContent, h.do("ops", http.MethodPost, "/v1/admin/pauses/session", map[string]bool{"paused": false}).Code)
	h.issue("alice")

	require.Equal(t, http.StatusNotFound, h.do("ops", http.MethodPost, "/v1/admin/pauses/unknown", map[string]bool{"paused": true}).Code)
}

func TestReimbursementCaps(t *testing.T) {
	h := newHarness(t)
	ref := randomHandle(t)

	rec := h.do("relayer", http.MethodPost, "/v1/reimburse", map[string]string{"amount": "11", "reference": ref})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = h.do("relayer", http.MethodPost, "/v1/reimburse", map[string]string{"amount": "10", "reference": ref})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "10", decode(t, rec)["relayer_used"])

	rec = h.do("relayer", http.MethodPost, "/v1/reimburse", map[string]string{"amount": "1", "reference": ref})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do("relayer", http.MethodPost, "/v1/reimburse", map[string]string{"amount": "6", "reference": randomHandle(t)})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = h.do("relayer", http.MethodGet, "/v1/reimburse/quota/relayer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	quota := decode(t, rec)
	require.Equal(t, "5", quota["relayer_remaining"])
	require.Nil(t, quota["global_remaining"])

	rec = h.do("relayer", http.MethodGet, "/v1/reimburse/references/"+ref, nil)
	require.Equal(t, true, decode(t, rec)["processed"])

	rec = h.do("alice", http.MethodGet, "/v1/balances/relayer", nil)
	require.Equal(t, "10", decode(t, rec)["balance"])

	// A full window later the relayer cap resets.
	h.clock.Advance(24 * time.Hour)
	rec = h.do("relayer", http.MethodPost, "/v1/reimburse", map[string]string{"amount": "10", "reference": randomHandle(t)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAccrualLifecycle(t *testing.T) {
	h := newHarness(t)
	rec := h.do("ops", http.MethodPost, "/v1/accrual/fund", map[string]interface{}{"amount": "1000", "duration_seconds": 100})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "10", decode(t, rec)["reward_rate_per_second"])

	rec = h.do("alice", http.MethodPost, "/v1/accrual/pools/core/deposit", map[string]string{"tier": "flex", "amount": "500"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	h.clock.Advance(50 * time.Second)
	rec = h.do("alice", http.MethodGet, "/v1/accrual/pools/core/pending/alice", nil)
	require.Equal(t, "500", decode(t, rec)["pending"])

	rec = h.do("alice", http.MethodPost, "/v1/accrual/pools/core/claim", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "500", decode(t, rec)["reward"])

	rec = h.do("bob", http.MethodPost, "/v1/accrual/pools/core/claim", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do("alice", http.MethodPost, "/v1/accrual/pools/core/withdraw", map[string]string{"tier": "flex"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "500", decode(t, rec)["stake"])

	rec = h.do("alice", http.MethodGet, "/v1/balances/alice", nil)
	require.Equal(t, "1000", decode(t, rec)["balance"])

	rec = h.do("alice", http.MethodGet, "/v1/accrual/pools/core", nil)
	require.Equal(t, "0", decode(t, rec)["total_deposited"])
}

func TestMalformedRequests(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusBadRequest, h.do("issuer", http.MethodGet, "/v1/sessions/0x1234", nil).Code)
	require.Equal(t, http.StatusNotFound, h.do("issuer", http.MethodGet, "/v1/sessions/"+randomHandle(t), nil).Code)
	require.Equal(t, http.StatusBadRequest, h.do("relayer", http.MethodPost, "/v1/invoke", map[string]string{"handle": "zz", "campaign_id": "onboarding"}).Code)
	require.Equal(t, http.StatusBadRequest, h.do("relayer", http.MethodPost, "/v1/invoke", map[string]string{"unexpected": "field"}).Code)
	require.Equal(t, http.StatusBadRequest, h.do("relayer", http.MethodPost, "/v1/invoke/batch", map[string]interface{}{"items": []interface{}{}}).Code)
	require.Equal(t, http.StatusNotFound, h.do("ops", http.MethodGet, "/v1/campaigns/missing", nil).Code)
}

func TestCatalogApplyIsIdempotent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, testCatalog().Apply(context.Background(), h.engines))

	balance, err := h.engines.Bank.BalanceOf(context.Background(), "treasury")
	require.NoError(t, err)
	require.Equal(t, "1000", balance.String())
	campaigns, err := h.engines.Campaigns.Campaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
}

func TestCatalogApplyKeepsRuntimeChanges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.engines.Roles.Revoke(ctx, "ops", "relayer", common.CapRelayer))
	require.NoError(t, h.engines.Accrual.SetTier(ctx, "ops", accrual.Tier{ID: "flex", RewardMultiplierBps: 5_000, WeightMultiplierBps: 10_000}))
	require.NoError(t, h.engines.Reimburse.SetLimits(ctx, "ops", reimburse.Limits{PerTxCap: big.NewInt(3)}))

	// A restart re-applies the same catalog to the existing ledger.
	require.NoError(t, testCatalog().Apply(ctx, h.engines))

	require.False(t, h.engines.Roles.HasCapability(ctx, "relayer", common.CapRelayer))
	tier, err := h.engines.Accrual.Tier(ctx, "flex")
	require.NoError(t, err)
	require.Equal(t, uint64(5_000), tier.RewardMultiplierBps)
	limits, err := h.engines.Reimburse.Limits(ctx)
	require.NoError(t, err)
	require.Equal(t, "3", limits.PerTxCap.String())

	rec := h.do("relayer", http.MethodPost, "/v1/reimburse", map[string]string{"amount": "1", "reference": randomHandle(t)})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReimburseWithoutLimitsIsUnavailable(t *testing.T) {
	catalog := testCatalog()
	catalog.Limits = nil
	h := newHarnessWith(t, catalog)

	rec := h.do("relayer", http.MethodPost, "/v1/reimburse", map[string]string{"amount": "1", "reference": randomHandle(t)})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	rec = h.do("alice", http.MethodGet, "/v1/balances/relayer", nil)
	require.Equal(t, "0", decode(t, rec)["balance"])

	rec = h.do("ops", http.MethodPut, "/v1/reimburse/limits", map[string]string{"per_tx_cap": "5"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = h.do("relayer", http.MethodPost, "/v1/reimburse", map[string]string{"amount": "1", "reference": randomHandle(t)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAuthFailureLogsMaskHandles(t *testing.T) {
	var buf bytes.Buffer
	auth, err := NewAuthenticator(AuthConfig{HMACSecret: testSecret}, slog.New(slog.NewJSONHandler(&buf, nil)))
	require.NoError(t, err)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	handle := randomHandle(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+handle, nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	auth.Middleware(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, buf.String(), "token validation failed")
	require.NotContains(t, buf.String(), handle[2:])
	require.Contains(t, buf.String(), logging.RedactedValue)
}
