package ginserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const principalContextKey = "stayflow.principal"

type principal struct {
	ID    string
	Email string
	Roles []string
	Token string
}

func (p principal) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, r := range p.Roles {
		if strings.ToLower(r) == role {
			return true
		}
	}
	return false
}

type principalClaims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// AuthMiddleware resolves a bearer token into a request principal. Requests
// without a valid token pass through anonymous; handlers that need identity
// reject them via requirePrincipal.
type AuthMiddleware struct {
	Secret []byte
	Logger *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || len(m.Secret) == 0 {
		c.Next()
		return
	}
	claims := &principalClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.Secret, nil
	})
	if err != nil || !parsed.Valid {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	setPrincipal(c, principal{
		ID:    claims.Subject,
		Email: claims.Email,
		Roles: claims.Roles,
		Token: token,
	})
	c.Next()
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireRole(c *gin.Context, role string) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	if role != "" && !p.HasRole(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
