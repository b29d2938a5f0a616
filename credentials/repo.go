package credentials

import "errors"

// Storage keys. They match the names the web client kept in local storage so a
// store can be shared with older tooling.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserEmail    = "userEmail"
	KeyUsername     = "username"
	// KeyLegacyToken mirrors access_token for older readers.
	KeyLegacyToken = "token"
)

// SessionKeys lists every key owned by a session. They are always cleared together.
var SessionKeys = []string{KeyLegacyToken, KeyAccessToken, KeyRefreshToken, KeyUserEmail, KeyUsername}

var ErrNotFound = errors.New("not found")

// Batch is a set of writes that must land together or not at all.
type Batch struct {
	Puts    map[string]string
	Deletes []string
}

// Repo is a durable key-value store for session credentials.
type Repo interface {
	// Get returns ErrNotFound when the key does not exist.
	Get(key string) (string, error)
	// Apply commits every put and delete in the batch atomically.
	Apply(batch Batch) error
	Close() error
}
