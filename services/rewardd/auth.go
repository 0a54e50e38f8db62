package rewardd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/observability/logging"
)

type contextKey string

const contextKeyPrincipal contextKey = "rewardd.principal"

var errMissingSubject = errors.New("token subject missing")

// Authenticator verifies HMAC-signed bearer JWTs. The subject claim becomes
// the principal every engine call is made under.
type Authenticator struct {
	secret    []byte
	issuer    string
	audience  string
	clockSkew time.Duration
	logger    *slog.Logger
}

// NewAuthenticator constructs an Authenticator from configuration.
func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) (*Authenticator, error) {
	secret := strings.TrimSpace(cfg.HMACSecret)
	if secret == "" {
		return nil, errors.New("auth secret not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	skew := cfg.ClockSkew.Duration
	if skew <= 0 {
		skew = 2 * time.Minute
	}
	return &Authenticator{
		secret:    []byte(secret),
		issuer:    strings.TrimSpace(cfg.Issuer),
		audience:  strings.TrimSpace(cfg.Audience),
		clockSkew: skew,
		logger:    logger,
	}, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil {
			writeError(w, http.StatusInternalServerError, "authentication unavailable")
			return
		}
		tokenString := parseBearerToken(r.Header.Get("Authorization"))
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		principal, err := a.principal(tokenString)
		if err != nil {
			a.logger.Warn("token validation failed", slog.Any("error", err), logging.MaskField("path", r.URL.Path))
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyPrincipal, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) principal(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.clockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("token invalid")
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", errMissingSubject
	}
	return subject, nil
}

// PrincipalFromContext returns the authenticated caller.
func PrincipalFromContext(ctx context.Context) string {
	principal, _ := ctx.Value(contextKeyPrincipal).(string)
	return principal
}

func parseBearerToken(header string) string {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return ""
	}
	parts := strings.SplitN(trimmed, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(strings.TrimSpace(parts[0]), "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
