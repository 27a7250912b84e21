package utils

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var ErrWrongTokenType = errors.New("token type mismatch")

type UserClaims struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenManager issues and parses HS256 access and refresh tokens. The two
// kinds are signed with different secrets.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (m *TokenManager) GenerateAccessToken(userID int64, username string) (string, error) {
	token, _, err := m.generate(userID, username, TokenTypeAccess, m.accessSecret, m.accessTTL)
	return token, err
}

// GenerateRefreshToken returns the signed token and its claims so callers
// can record the jti.
func (m *TokenManager) GenerateRefreshToken(userID int64, username string) (string, *UserClaims, error) {
	return m.generate(userID, username, TokenTypeRefresh, m.refreshSecret, m.refreshTTL)
}

func (m *TokenManager) generate(userID int64, username, tokenType string, secret []byte, ttl time.Duration) (string, *UserClaims, error) {
	now := m.now()
	claims := &UserClaims{
		UserID:    userID,
		Username:  username,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", nil, err
	}
	return tokenString, claims, nil
}

func (m *TokenManager) ParseAccessToken(tokenString string) (*UserClaims, error) {
	return m.parse(tokenString, TokenTypeAccess, m.accessSecret)
}

func (m *TokenManager) ParseRefreshToken(tokenString string) (*UserClaims, error) {
	return m.parse(tokenString, TokenTypeRefresh, m.refreshSecret)
}

func (m *TokenManager) parse(tokenString, tokenType string, secret []byte) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrInvalidKey
	}
	if claims.TokenType != tokenType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
