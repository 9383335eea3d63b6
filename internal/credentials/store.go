package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Tokens holds the current access/refresh pair. Both values are opaque
// strings; the store never inspects them. A zero value means no session.
type Tokens struct {
	Access  string `json:"access_token"`
	Refresh string `json:"refresh_token"`
}

// TokenStore persists the session tokens. The store is shared mutable
// state: both the gateway (on renewal) and the session manager (on
// login/logout) write it, so it is injected as a collaborator rather than
// accessed as an ambient global.
type TokenStore interface {
	// Set stores a new access/refresh pair.
	Set(access, refresh string) error

	// SetAccess replaces the access token, keeping the refresh token.
	// Used on renewal; the service does not rotate refresh tokens.
	SetAccess(access string) error

	// Get returns the current tokens. A missing store yields zero Tokens
	// and no error.
	Get() (Tokens, error)

	// Clear removes both tokens.
	Clear() error
}

// FileStore persists tokens on the local filesystem so a session survives
// across process runs. Any process sharing the same directory shares the
// session; this is accepted, not mitigated.
type FileStore struct {
	baseDir string
}

var _ TokenStore = (*FileStore)(nil)

// NewFileStore creates a token store rooted at baseDir.
// If baseDir is empty, uses ~/.lockerctl/
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".lockerctl")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("token store initialized")

	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) tokensPath() string {
	return filepath.Join(s.baseDir, "tokens.json")
}

// Set stores a new access/refresh pair.
func (s *FileStore) Set(access, refresh string) error {
	return s.save(Tokens{Access: access, Refresh: refresh})
}

// SetAccess replaces the access token, keeping the stored refresh token.
func (s *FileStore) SetAccess(access string) error {
	tokens, err := s.Get()
	if err != nil {
		return err
	}

	tokens.Access = access
	return s.save(tokens)
}

// Get returns the stored tokens, or zero Tokens if none are stored.
func (s *FileStore) Get() (Tokens, error) {
	data, err := os.ReadFile(s.tokensPath())
	if err != nil {
		if os.IsNotExist(err) {
			return Tokens{}, nil
		}
		return Tokens{}, fmt.Errorf("failed to read tokens: %w", err)
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return Tokens{}, fmt.Errorf("failed to parse tokens: %w", err)
	}

	return tokens, nil
}

// Clear removes the stored tokens.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.tokensPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}

	log.Debug().Msg("tokens cleared")

	return nil
}

// save writes the tokens file atomically.
func (s *FileStore) save(tokens Tokens) error {
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	tokensPath := s.tokensPath()
	tempPath := tokensPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write tokens: %w", err)
	}

	if err := os.Rename(tempPath, tokensPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save tokens: %w", err)
	}

	return nil
}

// MemStore is an in-memory TokenStore for tests and embedding.
type MemStore struct {
	mu     sync.Mutex
	tokens Tokens
}

var _ TokenStore = (*MemStore)(nil)

// NewMemStore creates an empty in-memory token store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Set(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = Tokens{Access: access, Refresh: refresh}
	return nil
}

func (s *MemStore) SetAccess(access string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens.Access = access
	return nil
}

func (s *MemStore) Get() (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens, nil
}

func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = Tokens{}
	return nil
}
