package tokenfakerepo

import (
	"sync"

	apperrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/jrsteele09/fleet-console/token"
)

var _ token.RefreshTokenRepo = (*FakeTokenRepo)(nil)

type FakeTokenRepo struct {
	tokens  map[string]*token.RefreshToken
	userIDs map[string]string // user ID to token
	lock    sync.RWMutex
}

func NewFakeTokensRepo() token.RefreshTokenRepo {
	return &FakeTokenRepo{
		tokens:  make(map[string]*token.RefreshToken),
		userIDs: make(map[string]string),
	}
}

func (tr *FakeTokenRepo) Upsert(refreshToken *token.RefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.tokens[refreshToken.Token] = refreshToken
	tr.userIDs[refreshToken.UserID] = refreshToken.Token
	return nil
}

func (tr *FakeTokenRepo) Delete(token string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	rt, ok := tr.tokens[token]
	if !ok {
		return apperrors.ErrNotFound
	}
	if tr.userIDs[rt.UserID] == token {
		delete(tr.userIDs, rt.UserID)
	}
	delete(tr.tokens, token)
	return nil
}

func (tr *FakeTokenRepo) Get(token string) (*token.RefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	rt, ok := tr.tokens[token]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return rt, nil
}

func (tr *FakeTokenRepo) GetByUserID(userID string) (*token.RefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	tok, ok := tr.userIDs[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return tr.tokens[tok], nil
}
