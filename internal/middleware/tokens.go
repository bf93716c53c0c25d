package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/windoze95/saltybytes-resolver/internal/config"
	"github.com/windoze95/saltybytes-resolver/internal/util"
)

var (
	// ErrInvalidToken is returned for malformed, expired or badly signed tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrInvalidTokenType is returned for refresh tokens used as access tokens.
	ErrInvalidTokenType = errors.New("invalid token type")
	// ErrInvalidUserID is returned when the user_id claim is missing or not a number.
	ErrInvalidUserID = errors.New("invalid user_id in token")
)

// ParseAccessToken validates an HS256 access token and returns its user ID.
func ParseAccessToken(secret, tokenString string) (uint, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	// Ensure this is an access token, not a refresh token
	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "access" {
		return 0, ErrInvalidTokenType
	}

	// JSON numbers decode as float64
	idFloat, ok := claims["user_id"].(float64)
	if !ok || idFloat < 1 {
		return 0, ErrInvalidUserID
	}
	return uint(idFloat), nil
}

// VerifyTokenMiddleware verifies the JWT token provided in the Authorization header.
func VerifyTokenMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		tokenString = strings.TrimSpace(tokenString)

		userID, err := ParseAccessToken(cfg.EnvVars.JwtSecretKey, tokenString)
		switch {
		case errors.Is(err, ErrInvalidUserID):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			c.Abort()
			return
		case err != nil:
			c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
			c.Abort()
			return
		}

		util.SetUserID(c, userID)
		c.Next()
	}
}
