package session

// Fixed keys of the persisted token layout. Presence of KeyAccessToken is the
// only authentication signal read at boot.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUsername     = "username"
)

var persistedKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUsername}

// Storage is the persisted key/value holder behind the token store.
// Get returns internal/errors.ErrNotFound for a missing key.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(keys ...string) error
}
