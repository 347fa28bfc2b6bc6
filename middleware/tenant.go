package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/veloro-ai/modelrouter/utils"
	"go.uber.org/zap"
)

// TenantClaims are the JWT claims carried by caller tokens.
type TenantClaims struct {
	Tenant string `json:"tenant"`
	jwt.RegisteredClaims
}

// TenantMiddleware resolves the tenant for each request, either from a
// signed bearer token or, when no signing secret is configured, from
// the X-Tenant-ID header for local development.
type TenantMiddleware struct {
	secret []byte
	logger *zap.Logger
}

// NewTenantMiddleware creates the middleware. An empty secret disables
// token verification and trusts the X-Tenant-ID header.
func NewTenantMiddleware(secret string, logger *zap.Logger) *TenantMiddleware {
	return &TenantMiddleware{secret: []byte(secret), logger: logger}
}

// RequireTenant rejects requests whose tenant cannot be resolved.
func (m *TenantMiddleware) RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant, err := m.resolve(r)
		if err != nil {
			m.logger.Warn("tenant resolution failed", zap.Error(err))
			_ = utils.WriteUnauthorized(w, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenant)))
	})
}

func (m *TenantMiddleware) resolve(r *http.Request) (string, error) {
	if len(m.secret) == 0 {
		tenant := r.Header.Get("X-Tenant-ID")
		if tenant == "" {
			return "", fmt.Errorf("missing X-Tenant-ID header")
		}
		return tenant, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return "", fmt.Errorf("malformed Authorization header")
	}

	claims := &TenantClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims.Tenant == "" {
		return "", fmt.Errorf("token carries no tenant claim")
	}
	return claims.Tenant, nil
}
