package middleware

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vkrizan/insights-host-inventory/pkg/jwtutil"
	"github.com/vkrizan/insights-host-inventory/pkg/logger"
	"github.com/vkrizan/insights-host-inventory/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// IdentityHeader carries the caller's base64 encoded identity document.
const IdentityHeader = "x-rh-identity"

// AccountKey is the echo context key under which the resolved account
// number is stored for handlers.
const AccountKey = "account"

// Identity is the decoded caller identity.
type Identity struct {
	AccountNumber string `json:"account_number"`
}

type identityEnvelope struct {
	Identity Identity `json:"identity"`
}

// IdentityMiddleware resolves the caller's account scope. It accepts
// either the platform identity header (base64 JSON document) or a bearer
// token issued to a service account. Requests without a resolvable,
// non-empty account number are rejected with 403.
func IdentityMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		prometheus.IdentityAttemptsCounter.Inc()

		account, ok := resolveAccount(c)
		if !ok {
			log.Warn("Rejected request without a valid identity",
				zap.String("path", c.Request().URL.Path))
			prometheus.IdentityFailuresCounter.Inc()
			return c.JSON(http.StatusForbidden, echo.Map{"error": "identity required"})
		}

		// Store the account scope in the context
		c.Set(AccountKey, account)

		// Update logger with the account scope
		log = log.With(zap.String("account", account))
		c.Set("logger", log)

		return next(c)
	}
}

func resolveAccount(c echo.Context) (string, bool) {
	if raw := c.Request().Header.Get(IdentityHeader); raw != "" {
		return decodeIdentityHeader(raw)
	}

	// Service-to-service path: bearer token with an account claim
	auth := c.Request().Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[0:7], "BEARER ") {
		claims, err := jwtutil.ValidateToken(auth[7:])
		if err != nil || claims.AccountNumber == "" {
			return "", false
		}
		return claims.AccountNumber, true
	}

	return "", false
}

func decodeIdentityHeader(raw string) (string, bool) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", false
	}

	var envelope identityEnvelope
	if err := json.Unmarshal(decoded, &envelope); err != nil {
		return "", false
	}
	if envelope.Identity.AccountNumber == "" {
		return "", false
	}
	return envelope.Identity.AccountNumber, true
}
