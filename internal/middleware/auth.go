package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"casei/internal/config"
	"casei/internal/models"
)

const (
	accessTokenExpiry  = 15 * time.Minute
	refreshTokenExpiry = 7 * 24 * time.Hour
)

// Response bodies for rejected requests, worded the way API clients of the
// catalog already expect.
const (
	detailNotAuthenticated = "Authentication credentials were not provided."
	detailInvalidToken     = "Given token not valid for any token type"
	detailForbidden        = "You do not have permission to perform this action."
)

const tokenIssuer = "casei-api"

type tokenType string

const (
	accessToken  tokenType = "access"
	refreshToken tokenType = "refresh"
)

func signingKey() []byte {
	return []byte(config.Get().JWTSecret)
}

// JWTClaims are the claims of both token types. TokenType keeps a refresh
// token from being used as an access token and the other way round.
type JWTClaims struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	TokenType tokenType `json:"token_type"`
	jwt.RegisteredClaims
}

func newToken(user *models.User, typ tokenType, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		UserID:    user.ID,
		Username:  user.Username,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   user.ID,
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey())
}

// GenerateAccessToken signs a short-lived access token for user.
func GenerateAccessToken(user *models.User) (string, error) {
	return newToken(user, accessToken, accessTokenExpiry)
}

// GenerateRefreshToken signs a refresh token for user. Only its hash is
// stored, so each login or refresh invalidates the previous one.
func GenerateRefreshToken(user *models.User) (string, error) {
	return newToken(user, refreshToken, refreshTokenExpiry)
}

var tokenParser = jwt.NewParser(
	jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	jwt.WithIssuer(tokenIssuer),
	jwt.WithExpirationRequired(),
)

func parseToken(raw string, want tokenType) (*JWTClaims, error) {
	claims := &JWTClaims{}
	if _, err := tokenParser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return signingKey(), nil
	}); err != nil {
		return nil, fmt.Errorf("invalid %s token: %w", want, err)
	}
	if claims.TokenType != want {
		return nil, fmt.Errorf("expected %s token, got %q", want, claims.TokenType)
	}
	return claims, nil
}

// ValidateRefreshToken returns the claims of a valid, unexpired refresh token.
func ValidateRefreshToken(raw string) (*JWTClaims, error) {
	return parseToken(raw, refreshToken)
}

// HashToken returns the SHA-256 hex digest of a token string.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// AuthMiddleware verifies the bearer access token and sets userID and
// username in the context. Rejections carry a {"detail": ...} body.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, raw, found := strings.Cut(c.GetHeader("Authorization"), " ")
		if !found || scheme != "Bearer" || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detailNotAuthenticated})
			return
		}

		claims, err := parseToken(strings.TrimSpace(raw), accessToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detailInvalidToken})
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)
		c.Next()
	}
}
