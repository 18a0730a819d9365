package token

import "time"

// RefreshToken is the server side record of an opaque refresh token.
type RefreshToken struct {
	Token  string
	UserID string
	Iat    time.Time
}

type RefreshTokenRepo interface {
	Upsert(refreshToken *RefreshToken) error
	Delete(token string) error
	Get(token string) (*RefreshToken, error)
	GetByUserID(userID string) (*RefreshToken, error)
}
