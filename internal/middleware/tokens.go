package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/windoze95/manas-api/internal/config"
	"github.com/windoze95/manas-api/internal/util"
)

var (
	errInvalidToken     = errors.New("invalid or expired token")
	errInvalidTokenType = errors.New("invalid token type")
	errInvalidSubject   = errors.New("invalid user_id in token")
)

// ParseAccessToken verifies an HS256 access token and returns the user it
// was issued for. The user is read from a numeric or string user_id claim,
// falling back to sub.
func ParseAccessToken(tokenString, secret string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}

	// Ensure this is an access token, not a refresh token
	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "access" {
		return "", errInvalidTokenType
	}

	switch id := claims["user_id"].(type) {
	case float64:
		// JSON numbers decode as float64
		return strconv.FormatUint(uint64(id), 10), nil
	case string:
		if id != "" {
			return id, nil
		}
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	return "", errInvalidSubject
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	return strings.TrimSpace(tokenString)
}

// RequireAuth verifies the JWT token provided in the Authorization header and
// sets user_id in the context.
func RequireAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := ParseAccessToken(bearerToken(c), cfg.EnvVars.JwtSecretKey)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": capitalize(err)})
			c.Abort()
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}

// OptionalAuth behaves like RequireAuth when a token is present. Requests
// without one continue as util.DefaultUserID.
func OptionalAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.Set("user_id", util.DefaultUserID)
			c.Next()
			return
		}
		userID, err := ParseAccessToken(tokenString, cfg.EnvVars.JwtSecretKey)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": capitalize(err)})
			c.Abort()
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}

func capitalize(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return fmt.Sprintf("%s%s", strings.ToUpper(msg[:1]), msg[1:])
}
