package token

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Signer signs access tokens and hands out the key used to verify them.
type Signer interface {
	Sign(claims jwt.MapClaims) (string, error)
	GetVerificationKey(token *jwt.Token) (any, error)
	GetSigningMethod() jwt.SigningMethod
}

var _ Signer = (*HMACSigner)(nil)

// HMACSigner signs HS256 tokens with a shared secret. Each token carries a
// kid derived from the secret so tokens minted under another secret are
// rejected before any signature check.
type HMACSigner struct {
	secret []byte
	keyID  string
}

func NewHMACSigner(secret string) *HMACSigner {
	sum := sha256.Sum256([]byte(secret))
	return &HMACSigner{
		secret: []byte(secret),
		keyID:  hex.EncodeToString(sum[:4]),
	}
}

// KeyID is the kid stamped on every token this signer issues.
func (h *HMACSigner) KeyID() string {
	return h.keyID
}

func (h *HMACSigner) Sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = h.keyID
	signed, err := token.SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "[HMACSigner.Sign] signing token")
	}
	return signed, nil
}

func (h *HMACSigner) GetVerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	if kid, _ := token.Header["kid"].(string); kid != h.keyID {
		return nil, errors.Errorf("unknown key id %q", kid)
	}
	return h.secret, nil
}

func (h *HMACSigner) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}
