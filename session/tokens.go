package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// usableToken rejects the stringified null values older dashboard builds
// persisted by mistake.
func usableToken(token string) bool {
	return token != "" && token != "undefined" && token != "null"
}

func sanitize(value string) string {
	if !usableToken(value) {
		return ""
	}
	return value
}

// jwtExpiry reads the exp claim without verifying the signature. The backend
// owns verification; the console only needs to know when to refresh.
func jwtExpiry(raw string) (time.Time, bool) {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (m *Manager) expiryFor(tokens *Tokens) time.Time {
	if tokens.ExpiresIn > 0 {
		return m.nowFunc().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	}
	if exp, ok := jwtExpiry(tokens.AccessToken); ok {
		return exp
	}
	return time.Time{}
}
