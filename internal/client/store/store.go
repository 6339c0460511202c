// Package store persists the client's tokens, encrypted at rest.
package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nagare-io/authgate/internal/auth/models"
	"github.com/nagare-io/authgate/internal/logger"
	"go.uber.org/zap"
)

// Entry keys, mirroring the browser local-storage layout this store replaces.
const (
	KeyIDToken         = "id_token"
	KeyAccessToken     = "access_token"
	KeyRefreshToken    = "refresh_token"
	KeyTokenType       = "token_type"
	KeyTokenExpiration = "token_expiration" // epoch millis, as a string
)

// Store is an encrypted key/value token store backed by SQLite. Values are
// compressed and sealed with AES-GCM under a key derived from the configured
// secret; the schema never sees a plaintext token.
type Store struct {
	db  *sql.DB
	key []byte
	mu  sync.Mutex
}

// Open creates or opens the store at path.
func Open(path, secret string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	s := &Store{db: db, key: DeriveKey(secret)}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS tokens (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create tokens table: %w", err)
	}
	return nil
}

// Save replaces the stored session with tokens. The replacement is atomic: a
// reader never observes entries from two different sessions.
func (s *Store) Save(tokens models.TokenSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := map[string]string{
		KeyIDToken:         tokens.IDToken,
		KeyAccessToken:     tokens.AccessToken,
		KeyTokenType:       tokens.TokenType,
		KeyTokenExpiration: strconv.FormatInt(tokens.ExpiresAt.UnixMilli(), 10),
	}
	if tokens.RefreshToken != "" {
		entries[KeyRefreshToken] = tokens.RefreshToken
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM tokens"); err != nil {
		return fmt.Errorf("failed to clear previous session: %w", err)
	}

	now := time.Now()
	for key, value := range entries {
		encrypted, err := encrypt([]byte(value), s.key)
		if err != nil {
			return fmt.Errorf("failed to encrypt %s: %w", key, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO tokens (key, value, updated_at) VALUES (?, ?, ?)",
			key, encrypted, now,
		); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Load returns the stored session. Corrupted entries or a wrong key behave as
// "no stored session": the store is wiped and an empty set is returned, never
// an error the caller has to recover from.
func (s *Store) Load() (models.TokenSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT key, value FROM tokens")
	if err != nil {
		return models.TokenSet{}, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.TokenSet{}, fmt.Errorf("failed to scan row: %w", err)
		}
		plaintext, err := decrypt(value, s.key)
		if err != nil {
			logger.Warn("Discarding unreadable token store", zap.String("key", key), zap.Error(err))
			return models.TokenSet{}, s.clearLocked()
		}
		entries[key] = string(plaintext)
	}
	if err := rows.Err(); err != nil {
		return models.TokenSet{}, fmt.Errorf("failed to read tokens: %w", err)
	}

	accessToken := entries[KeyAccessToken]
	expiration := entries[KeyTokenExpiration]
	if accessToken == "" || expiration == "" {
		return models.TokenSet{}, nil
	}

	millis, err := strconv.ParseInt(expiration, 10, 64)
	if err != nil {
		logger.Warn("Discarding token store with malformed expiration", zap.Error(err))
		return models.TokenSet{}, s.clearLocked()
	}

	return models.TokenSet{
		IDToken:      entries[KeyIDToken],
		AccessToken:  accessToken,
		RefreshToken: entries[KeyRefreshToken],
		TokenType:    entries[KeyTokenType],
		ExpiresAt:    time.UnixMilli(millis),
	}, nil
}

// Clear removes every stored entry.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked()
}

func (s *Store) clearLocked() error {
	if _, err := s.db.Exec("DELETE FROM tokens"); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
