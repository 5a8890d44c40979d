package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload of the signed session cookie. It only carries
// the server-side session id; everything else lives in the SessionStore.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// SignSessionID issues an HS256 token for sessionID valid for ttl.
func SignSessionID(secret, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseSessionID validates a session cookie and returns the session id.
func ParseSessionID(secret, tokenStr string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid || claims.SessionID == "" {
		return "", errors.New("invalid session claims")
	}
	return claims.SessionID, nil
}
