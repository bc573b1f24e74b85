package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	accessTTL  = 24 * time.Hour
	refreshTTL = 7 * 24 * time.Hour
)

type Claims struct {
	UserID  int64 `json:"user_id"`
	Refresh bool  `json:"refresh,omitempty"`
	jwt.RegisteredClaims
}

type contextKey string

const UserKey contextKey = "user"

// Tokens issues and verifies the bearer credentials backing both the REST
// API and the chat channel handshake.
type Tokens struct {
	secret []byte
}

func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret)}
}

// Generate creates an access/refresh token pair for a user id.
func (t *Tokens) Generate(userID int64) (access, refresh string, err error) {
	access, err = t.sign(userID, accessTTL, false)
	if err != nil {
		return "", "", err
	}
	refresh, err = t.sign(userID, refreshTTL, true)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (t *Tokens) sign(userID int64, ttl time.Duration, refresh bool) (string, error) {
	claims := &Claims{
		UserID:  userID,
		Refresh: refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses and validates a token string. Malformed, expired or
// wrongly-signed input never panics; it resolves to a nil identity.
func (t *Tokens) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// VerifyAccess rejects refresh tokens presented as access credentials.
func (t *Tokens) VerifyAccess(tokenString string) (*Claims, error) {
	claims, err := t.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Refresh {
		return nil, errors.New("refresh token used as access token")
	}
	return claims, nil
}

// VerifyRefresh accepts only refresh tokens.
func (t *Tokens) VerifyRefresh(tokenString string) (*Claims, error) {
	claims, err := t.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if !claims.Refresh {
		return nil, errors.New("access token used as refresh token")
	}
	return claims, nil
}
