// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"encoding/json"
	"errors"
)

// Partition names one of the two key-value storage areas. The sync partition
// holds small, device-replicated state; the local partition holds bulk,
// device-only state (activity feed, read markers) and secrets.
type Partition string

const (
	PartitionSync  Partition = "sync"
	PartitionLocal Partition = "local"
)

// Valid reports whether p is a known partition.
func (p Partition) Valid() bool {
	return p == PartitionSync || p == PartitionLocal
}

// ErrUnknownPartition indicates a partition name outside sync/local.
var ErrUnknownPartition = errors.New("unknown storage partition")

// SettingStore defines the driven port for partitioned key-value persistence.
// Values are opaque JSON documents; decoding and default substitution belong
// to the caller. Absence is reported via the ok bool so that falsy-but-present
// values (0, "", false) are never confused with missing keys. Missing keys are
// not errors; errors surface only from the underlying storage.
type SettingStore interface {
	// Get returns the stored value for key, or ok=false if the key is absent.
	Get(ctx context.Context, partition Partition, key string) (value json.RawMessage, ok bool, err error)

	// GetMany returns the stored values for the given keys. Absent keys are
	// omitted from the result map, never substituted.
	GetMany(ctx context.Context, partition Partition, keys []string) (map[string]json.RawMessage, error)

	// Set stores or replaces the value for key.
	Set(ctx context.Context, partition Partition, key string, value json.RawMessage) error
}
