package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SettingStore = (*SettingRepo)(nil)

// SettingRepo is the SQLite implementation of the SettingStore port interface.
// Each row is one (partition, key) pair with an opaque JSON value.
type SettingRepo struct {
	db *DB
}

// NewSettingRepo creates a new SettingRepo backed by the given DB.
func NewSettingRepo(db *DB) *SettingRepo {
	return &SettingRepo{db: db}
}

// Get returns the stored value for key, or ok=false if the key is absent.
// A stored falsy value ("", 0, false, null) is still ok=true.
func (r *SettingRepo) Get(ctx context.Context, partition driven.Partition, key string) (json.RawMessage, bool, error) {
	if !partition.Valid() {
		return nil, false, fmt.Errorf("get setting %q: %w: %q", key, driven.ErrUnknownPartition, partition)
	}

	const query = `SELECT value FROM settings WHERE partition = ? AND key = ?`
	var value string
	err := r.db.Reader.QueryRowContext(ctx, query, string(partition), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get setting %q: %w", key, err)
	}
	return json.RawMessage(value), true, nil
}

// GetMany returns the stored values for the given keys. Absent keys are
// omitted from the result map.
func (r *SettingRepo) GetMany(ctx context.Context, partition driven.Partition, keys []string) (map[string]json.RawMessage, error) {
	if !partition.Valid() {
		return nil, fmt.Errorf("get settings: %w: %q", driven.ErrUnknownPartition, partition)
	}
	if len(keys) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	placeholders := strings.Repeat("?, ", len(keys)-1) + "?"
	query := fmt.Sprintf(`SELECT key, value FROM settings WHERE partition = ? AND key IN (%s)`, placeholders)

	args := make([]any, 0, len(keys)+1)
	args = append(args, string(partition))
	for _, k := range keys {
		args = append(args, k)
	}

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	defer rows.Close()

	result := make(map[string]json.RawMessage, len(keys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		result[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}

	return result, nil
}

// Set stores or replaces the value for key.
func (r *SettingRepo) Set(ctx context.Context, partition driven.Partition, key string, value json.RawMessage) error {
	if !partition.Valid() {
		return fmt.Errorf("set setting %q: %w: %q", key, driven.ErrUnknownPartition, partition)
	}

	const query = `
		INSERT INTO settings (partition, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(partition, key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.Writer.ExecContext(ctx, query, string(partition), key, string(value))
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}
