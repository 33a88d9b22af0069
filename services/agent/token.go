package agent

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const tokenFileName = "session_token"

// TokenStore owns the random identifier for this login instance. The token
// is scoped to one state directory: every agent instance pointed at its own
// directory gets its own token, which is what lets a single login instance
// be individually targeted for deactivation. The token identifies the login
// instance, not the user.
type TokenStore struct {
	dir string

	mu    sync.Mutex
	token string
}

// NewTokenStore returns a store persisting its token under dir. An empty
// dir keeps the token in memory only, scoped to the process.
func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: dir}
}

// Token returns the stable session token for this scope, generating and
// persisting one on first call. Persistence is best effort: a write failure
// leaves the token process-scoped rather than failing the login.
func (s *TokenStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token
	}

	if s.dir != "" {
		path := filepath.Join(s.dir, tokenFileName)
		if data, err := os.ReadFile(path); err == nil {
			if token := strings.TrimSpace(string(data)); token != "" {
				s.token = token
				return s.token
			}
		}
	}

	s.token = uuid.NewString()

	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o700); err == nil {
			path := filepath.Join(s.dir, tokenFileName)
			_ = os.WriteFile(path, []byte(s.token), 0o600)
		}
	}
	return s.token
}
