package driven

import (
	"context"
	"errors"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// DEVWATCH_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set DEVWATCH_SECRET_KEY")

// CredentialStore defines the driven port for GitHub token persistence.
// Implementations encrypt at rest; this interface operates on plaintext at the
// domain boundary. Implementations are also responsible for migrating any
// legacy plaintext token found in the settings storage: on first read the
// value is copied into encrypted storage and the legacy entry is blanked. The
// migration is idempotent and runs at most once per process lifetime.
type CredentialStore interface {
	// GetToken retrieves the stored token. Returns ("", nil) if none is stored.
	GetToken(ctx context.Context) (string, error)

	// SetToken stores or replaces the token.
	SetToken(ctx context.Context, plaintext string) error

	// ClearToken removes the stored token. No-op if none is stored.
	ClearToken(ctx context.Context) error
}
