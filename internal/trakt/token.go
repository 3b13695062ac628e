// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package trakt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/afero"

	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/models"
)

// Token is an OAuth token as returned by the token endpoints.
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

// ExpiresAt is the absolute expiry time.
func (t *Token) ExpiresAt() time.Time {
	return time.Unix(t.CreatedAt+t.ExpiresIn, 0)
}

// ExpiresWithin reports whether the token expires before now+d.
func (t *Token) ExpiresWithin(d time.Duration, now time.Time) bool {
	return !now.Add(d).Before(t.ExpiresAt())
}

// Sealer encrypts the token file. config.TokenEncryptor implements it.
type Sealer interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

// TokenStore persists the token in a single file. With a Sealer the file
// holds base64 AES-GCM ciphertext, otherwise plain JSON.
type TokenStore struct {
	fs     afero.Fs
	path   string
	sealer Sealer

	mu     sync.Mutex
	cached *Token
}

// NewTokenStore creates a store for path on fs. sealer may be nil.
func NewTokenStore(fs afero.Fs, path string, sealer Sealer) *TokenStore {
	if sealer == nil {
		logging.Warn().Str("path", path).Msg("security.token_secret not set, Trakt token stored unencrypted")
	}
	return &TokenStore{fs: fs, path: path, sealer: sealer}
}

// Load returns the stored token or models.ErrNotFound.
func (s *TokenStore) Load() (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		t := *s.cached
		return &t, nil
	}

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}
	if s.sealer != nil {
		if data, err = s.sealer.Decrypt(strings.TrimSpace(string(data))); err != nil {
			return nil, fmt.Errorf("decrypt token file: %w", err)
		}
	}

	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	if t.AccessToken == "" {
		return nil, models.ErrNotFound
	}
	s.cached = &t
	out := t
	return &out, nil
}

// Save writes the token atomically (temp file + rename).
func (s *TokenStore) Save(t *Token) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if s.sealer != nil {
		sealed, err := s.sealer.Encrypt(data)
		if err != nil {
			return fmt.Errorf("encrypt token: %w", err)
		}
		data = []byte(sealed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	cp := *t
	s.cached = &cp
	return nil
}

// Clear removes the stored token.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
