package rewardd

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/bank"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/native/common"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/observability"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/observability/logging"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/services/rewardd/audit"
)

const maxRequestBody = 1 << 20

// ServerOptions wires the HTTP surface.
type ServerOptions struct {
	Engines       *Engines
	Hub           *Hub
	Audit         *audit.Store
	Authenticator *Authenticator
	RateLimiter   *RateLimiter
	Logger        *slog.Logger
	// OriginPatterns restricts websocket origins; empty allows same-origin
	// only.
	OriginPatterns []string
}

// Server exposes every control-plane operation over HTTP.
type Server struct {
	engines        *Engines
	hub            *Hub
	audit          *audit.Store
	auth           *Authenticator
	limiter        *RateLimiter
	logger         *slog.Logger
	originPatterns []string
	router         chi.Router
}

// NewServer constructs the router.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Engines == nil {
		return nil, errors.New("rewardd: engines required")
	}
	if opts.Authenticator == nil {
		return nil, errors.New("rewardd: authenticator required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engines:        opts.Engines,
		hub:            opts.Hub,
		audit:          opts.Audit,
		auth:           opts.Authenticator,
		limiter:        opts.RateLimiter,
		logger:         logger,
		originPatterns: opts.OriginPatterns,
	}
	s.router = s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler wraps the router with OpenTelemetry HTTP instrumentation.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "rewardd")
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(s.auth.Middleware)
		v1.Get("/me", s.observe("admin", "me", s.handleWhoAmI))
		v1.Get("/stream", s.handleStream)

		v1.Group(func(g chi.Router) {
			g.Use(s.limiter.Middleware("session"))
			g.Post("/sessions", s.observe("session", "issue", s.handleIssueSession))
			g.Get("/sessions/stats", s.observe("session", "stats", s.handleSessionStats))
			g.Get("/sessions/{handle}", s.observe("session", "get", s.handleGetSession))
			g.Post("/sessions/{handle}/consume", s.observe("session", "consume", s.handleConsumeSession))
			g.Post("/sessions/{handle}/revoke", s.observe("session", "revoke", s.handleRevokeSession))
		})

		v1.Group(func(g chi.Router) {
			g.Use(s.limiter.Middleware("campaign"))
			g.Post("/campaigns", s.observe("campaign", "create", s.handleCreateCampaign))
			g.Get("/campaigns", s.observe("campaign", "list", s.handleListCampaigns))
			g.Get("/campaigns/{id}", s.observe("campaign", "get", s.handleGetCampaign))
			g.Post("/campaigns/{id}/budget", s.observe("campaign", "add_budget", s.handleAddBudget))
			g.Post("/campaigns/{id}/active", s.observe("campaign", "set_active", s.handleSetActive))
			g.Post("/campaigns/{id}/reward", s.observe("campaign", "set_reward", s.handleSetReward))
			g.Post("/campaigns/{id}/grant", s.observe("campaign", "grant", s.handleGrant))
			g.Get("/campaigns/{id}/records", s.observe("campaign", "records", s.handleRecords))
			g.Get("/campaigns/{id}/audit", s.observe("campaign", "audit", s.handleAuditCampaign))
			g.Get("/campaigns/{id}/completions/{principal}", s.observe("campaign", "completed", s.handleHasCompleted))
		})

		v1.Group(func(g chi.Router) {
			g.Use(s.limiter.Middleware("invoker"))
			g.Post("/invoke", s.observe("invoker", "invoke", s.handleInvoke))
			g.Post("/invoke/batch", s.observe("invoker", "invoke_batch", s.handleInvokeBatch))
			g.Get("/invoke/sequence", s.observe("invoker", "sequence", s.handleSequence))
		})

		v1.Group(func(g chi.Router) {
			g.Use(s.limiter.Middleware("accrual"))
			g.Post("/accrual/pools", s.observe("accrual", "create_pool", s.handleCreatePool))
			g.Get("/accrual/pools", s.observe("accrual", "list_pools", s.handleListPools))
			g.Get("/accrual/pools/{id}", s.observe("accrual", "get_pool", s.handleGetPool))
			g.Post("/accrual/pools/{id}/weight", s.observe("accrual", "set_weight", s.handleSetWeight))
			g.Post("/accrual/pools/{id}/deposit", s.observe("accrual", "deposit", s.handleDeposit))
			g.Post("/accrual/pools/{id}/withdraw", s.observe("accrual", "withdraw", s.handleWithdraw))
			g.Post("/accrual/pools/{id}/claim", s.observe("accrual", "claim", s.handleClaim))
			g.Get("/accrual/pools/{id}/pending/{principal}", s.observe("accrual", "pending", s.handlePending))
			g.Get("/accrual/pools/{id}/positions/{principal}/{tier}", s.observe("accrual", "position", s.handlePosition))
			g.Put("/accrual/tiers/{id}", s.observe("accrual", "set_tier", s.handleSetTier))
			g.Get("/accrual/tiers/{id}", s.observe("accrual", "get_tier", s.handleGetTier))
			g.Post("/accrual/fund", s.observe("accrual", "fund", s.handleFundRewards))
			g.Get("/accrual/emission", s.observe("accrual", "emission", s.handleEmission))
		})

		v1.Group(func(g chi.Router) {
			g.Use(s.limiter.Middleware("reimburse"))
			g.Post("/reimburse", s.observe("reimburse", "reimburse", s.handleReimburse))
			g.Get("/reimburse/limits", s.observe("reimburse", "limits", s.handleGetLimits))
			g.Put("/reimburse/limits", s.observe("reimburse", "set_limits", s.handleSetLimits))
			g.Get("/reimburse/quota/{relayer}", s.observe("reimburse", "quota", s.handleQuota))
			g.Get("/reimburse/references/{reference}", s.observe("reimburse", "processed", s.handleProcessed))
		})

		v1.Group(func(g chi.Router) {
			g.Use(s.limiter.Middleware("admin"))
			g.Post("/admin/roles", s.observe("admin", "roles", s.handleSetRole))
			g.Get("/admin/pauses", s.observe("admin", "pauses", s.handleListPauses))
			g.Post("/admin/pauses/{module}", s.observe("admin", "pause", s.handleSetPause))
			g.Get("/balances/{account}", s.observe("bank", "balance", s.handleBalance))
			g.Post("/transfers", s.observe("bank", "transfer", s.handleTransfer))
			g.Get("/audit/events", s.observe("audit", "events", s.handleAuditEvents))
		})
	})
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *Server) observe(module, method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		observability.ModuleMetrics().Observe(module, method, recorder.status, time.Since(start))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.engines.Invoker.Sequence(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "ledger unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	held := []string{}
	for _, capability := range common.Capabilities() {
		if s.engines.Roles.HasCapability(r.Context(), principal, capability) {
			held = append(held, string(capability))
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"principal":    principal,
		"capabilities": held,
	})
}

// fail writes err with its mapped status. Server-side failures are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			logging.MaskField("route", routePattern(r)),
			logging.MaskField("path", r.URL.Path),
			slog.String("request_id", w.Header().Get("X-Request-ID")),
			slog.Any("error", err))
	}
	writeError(w, status, err.Error())
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func decodeJSON(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}

func caller(r *http.Request) string {
	return PrincipalFromContext(r.Context())
}

func parseHex32(raw string) ([32]byte, error) {
	out, err := bank.ParseReference(raw)
	if err != nil {
		return out, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return out, nil
}

func requestAmount(raw string) (*big.Int, error) {
	amount, err := parseAmount(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return amount, nil
}

// optionalAmount returns nil for an empty string.
func optionalAmount(raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return requestAmount(raw)
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func hexString(b [32]byte) string {
	return "0x" + hex.EncodeToString(b[:])
}
