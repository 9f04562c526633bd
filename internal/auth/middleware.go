package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const clientIDKey contextKey = "authClientID"

// APIKeyHeader carries the raw shared secret.
const APIKeyHeader = "x-api-key"

// defaultClientID names callers that authenticate with the raw key or a
// token without a subject.
const defaultClientID = "booth"

// GetClientID retrieves the authenticated caller from context.
func GetClientID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if value, ok := ctx.Value(clientIDKey).(string); ok && value != "" {
		return value, true
	}
	return "", false
}

// SharedSecretMiddleware admits requests that present secret in the
// x-api-key header or as the HMAC key of an HS256 bearer token. An empty
// secret disables the check.
func SharedSecretMiddleware(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)

	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		clientID, err := authenticate(c.Request, secret)
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		ctx := context.WithValue(c.Request.Context(), clientIDKey, clientID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(string(clientIDKey), clientID)

		c.Next()
	}
}

func authenticate(r *http.Request, secret string) (string, error) {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		if subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
			return "", errors.New("invalid api key")
		}
		return defaultClientID, nil
	}

	tokenString, err := extractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return "", err
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return defaultClientID, nil
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("api key or bearer token required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": message})
}
