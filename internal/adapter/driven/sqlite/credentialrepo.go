package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/port/driven"
)

// githubService is the credentials row key for the GitHub token.
const githubService = "github"

// legacyTokenKey is the settings key where early revisions stored the token in
// plaintext, in the sync partition of all places.
const legacyTokenKey = "githubToken"

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port
// interface. Token values are encrypted with AES-256-GCM before write and
// decrypted after read. On first read it migrates any legacy plaintext
// githubToken settings row: the value is encrypted into the credentials table
// and the legacy row is blanked. Plaintext is never written back.
type CredentialRepo struct {
	db          *DB
	key         []byte // 32-byte AES-256 key; nil when encryption is disabled.
	migrateOnce sync.Once
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable credential storage (all operations will
// return ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// GetToken retrieves the stored GitHub token. Returns ("", nil) if none is stored.
func (r *CredentialRepo) GetToken(ctx context.Context) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	r.migrateOnce.Do(func() {
		if err := r.migrateLegacyToken(ctx); err != nil {
			slog.Warn("legacy token migration failed", "error", err)
		}
	})

	const query = `SELECT value FROM credentials WHERE service = ?`
	var encrypted string
	err := r.db.Reader.QueryRowContext(ctx, query, githubService).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %q: %w", githubService, err)
	}

	plaintext, err := r.decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("decrypt credential %q: %w", githubService, err)
	}
	return plaintext, nil
}

// SetToken stores or replaces the GitHub token.
func (r *CredentialRepo) SetToken(ctx context.Context, plaintext string) error {
	encrypted, err := r.encrypt(plaintext)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO credentials (service, value)
		VALUES (?, ?)
		ON CONFLICT(service) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.Writer.ExecContext(ctx, query, githubService, encrypted); err != nil {
		return fmt.Errorf("set credential %q: %w", githubService, err)
	}
	return nil
}

// ClearToken removes the stored GitHub token. No-op if none is stored.
func (r *CredentialRepo) ClearToken(ctx context.Context) error {
	const query = `DELETE FROM credentials WHERE service = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, githubService); err != nil {
		return fmt.Errorf("clear credential %q: %w", githubService, err)
	}
	return nil
}

// migrateLegacyToken moves a plaintext githubToken settings row into encrypted
// storage. The legacy row is blanked rather than deleted so older readers see
// an empty token instead of re-creating their own copy. Skipped when an
// encrypted token already exists.
func (r *CredentialRepo) migrateLegacyToken(ctx context.Context) error {
	const existsQuery = `SELECT COUNT(*) FROM credentials WHERE service = ?`
	var count int
	if err := r.db.Reader.QueryRowContext(ctx, existsQuery, githubService).Scan(&count); err != nil {
		return fmt.Errorf("check existing credential: %w", err)
	}
	if count > 0 {
		return nil
	}

	const legacyQuery = `SELECT value FROM settings WHERE partition = ? AND key = ?`
	var raw string
	err := r.db.Reader.QueryRowContext(ctx, legacyQuery, string(driven.PartitionSync), legacyTokenKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read legacy token: %w", err)
	}

	var token string
	if jsonErr := json.Unmarshal([]byte(raw), &token); jsonErr != nil {
		// Oldest revisions stored the bare string without JSON quoting.
		token = strings.TrimSpace(raw)
	}
	if token == "" {
		return nil
	}

	if err := r.SetToken(ctx, token); err != nil {
		return fmt.Errorf("store migrated token: %w", err)
	}

	const blankQuery = `UPDATE settings SET value = '""', updated_at = CURRENT_TIMESTAMP WHERE partition = ? AND key = ?`
	if _, err := r.db.Writer.ExecContext(ctx, blankQuery, string(driven.PartitionSync), legacyTokenKey); err != nil {
		return fmt.Errorf("blank legacy token: %w", err)
	}

	slog.Info("migrated legacy plaintext token to encrypted storage")
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded string
// containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
