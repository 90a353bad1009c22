package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"collabrag/internal/pkg/jwtutil"
	"collabrag/internal/transport/http/response"
)

const (
	ContextUserIDKey   = "user_id"
	ContextUsernameKey = "username"

	// browsers cannot set headers on EventSource, so streams may pass the token here
	tokenQueryParam = "access_token"
)

// AuthJWT rejects requests without a valid bearer token and stores the
// caller identity on the context.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "missing or malformed bearer token")
			return
		}

		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Next()
	}
}

// UserID returns the authenticated caller set by AuthJWT.
func UserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get(ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		token := strings.TrimSpace(c.Query(tokenQueryParam))
		return token, token != ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, msg)
	c.Abort()
}
