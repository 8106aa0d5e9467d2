package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// operatorClaims is the JWT payload issued after a successful login.
// There is exactly one operator per deployment (spec.md's domain has no
// multi-user surface), so the claim carries no subject identity beyond
// "this token was issued by us".
type operatorClaims struct {
	jwt.RegisteredClaims
}

func generateToken(secret string, expiresAt time.Time) (string, error) {
	claims := operatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseToken(tokenStr, secret string) error {
	token, err := jwt.ParseWithClaims(tokenStr, &operatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}

// AuthMiddleware enforces a bearer JWT on protected routes.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": "MISSING_TOKEN", "error": "missing Authorization header",
			})
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": "INVALID_AUTH_HEADER", "error": "invalid Authorization header",
			})
			return
		}
		if err := parseToken(parts[1], secret); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": "INVALID_TOKEN", "error": "invalid or expired token",
			})
			return
		}
		c.Next()
	}
}

// login issues a JWT after verifying the configured operator secret (a
// shared deployment-wide credential, not a per-user password — this
// engine runs against one account per venue, so there is nothing to
// register).
func (s *Server) login(c *gin.Context) {
	var req struct {
		Secret string `json:"secret"`
	}
	if err := c.BindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request payload")
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.OperatorSecret)) != 1 {
		respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials")
		return
	}

	expiresAt := time.Now().Add(24 * time.Hour)
	token, err := generateToken(s.JWTSecret, expiresAt)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to generate token")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}
