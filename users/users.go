package users

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is an operator account known to the mock fleet backend.
type User struct {
	ID           string    `json:"id,omitempty"`
	Username     string    `json:"username,omitempty"`
	DisplayName  string    `json:"displayName,omitempty"`
	PasswordHash string    `json:"-"` // never serialize
	Blocked      bool      `json:"blocked,omitempty"`
	LastLogin    time.Time `json:"lastLogin,omitempty"`
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}

// NewUser hashes password and returns a ready to store account.
func NewUser(username, displayName, password string) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &User{Username: username, DisplayName: displayName, PasswordHash: hash}, nil
}
