package sqlite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/port/driven"
)

func TestSettingRepo_Get_Absent(t *testing.T) {
	db := newTestDB(t)
	repo := NewSettingRepo(db)
	ctx := context.Background()

	value, ok, err := repo.Get(ctx, driven.PartitionSync, "checkInterval")
	require.NoError(t, err)
	assert.False(t, ok, "absent key should report ok=false, not an error")
	assert.Nil(t, value)
}

func TestSettingRepo_SetGet_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewSettingRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, driven.PartitionSync, "theme", json.RawMessage(`"dark"`)))

	value, ok, err := repo.Get(ctx, driven.PartitionSync, "theme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `"dark"`, string(value))
}

func TestSettingRepo_Get_FalsyValuesArePresent(t *testing.T) {
	db := newTestDB(t)
	repo := NewSettingRepo(db)
	ctx := context.Background()

	// 0, "", and false are valid stored values, not absence.
	falsy := map[string]string{
		"checkInterval": `0`,
		"searchQuery":   `""`,
		"showArchive":   `false`,
	}
	for key, raw := range falsy {
		require.NoError(t, repo.Set(ctx, driven.PartitionSync, key, json.RawMessage(raw)))
	}

	for key, raw := range falsy {
		value, ok, err := repo.Get(ctx, driven.PartitionSync, key)
		require.NoError(t, err)
		assert.True(t, ok, "falsy value for %q must still be present", key)
		assert.JSONEq(t, raw, string(value))
	}
}

func TestSettingRepo_Set_Overwrite(t *testing.T) {
	db := newTestDB(t)
	repo := NewSettingRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, driven.PartitionSync, "checkInterval", json.RawMessage(`15`)))
	require.NoError(t, repo.Set(ctx, driven.PartitionSync, "checkInterval", json.RawMessage(`30`)))

	value, ok, err := repo.Get(ctx, driven.PartitionSync, "checkInterval")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `30`, string(value))
}

func TestSettingRepo_PartitionsAreIsolated(t *testing.T) {
	db := newTestDB(t)
	repo := NewSettingRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, driven.PartitionSync, "readItems", json.RawMessage(`["sync"]`)))
	require.NoError(t, repo.Set(ctx, driven.PartitionLocal, "readItems", json.RawMessage(`["local"]`)))

	value, ok, err := repo.Get(ctx, driven.PartitionLocal, "readItems")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["local"]`, string(value))

	value, ok, err = repo.Get(ctx, driven.PartitionSync, "readItems")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["sync"]`, string(value))
}

func TestSettingRepo_GetMany_OmitsAbsentKeys(t *testing.T) {
	db := newTestDB(t)
	repo := NewSettingRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, driven.PartitionSync, "theme", json.RawMessage(`"light"`)))
	require.NoError(t, repo.Set(ctx, driven.PartitionSync, "checkInterval", json.RawMessage(`15`)))

	result, err := repo.GetMany(ctx, driven.PartitionSync, []string{"theme", "checkInterval", "missing"})
	require.NoError(t, err)

	require.Len(t, result, 2, "absent keys are omitted, never defaulted")
	assert.JSONEq(t, `"light"`, string(result["theme"]))
	assert.JSONEq(t, `15`, string(result["checkInterval"]))
	_, present := result["missing"]
	assert.False(t, present)
}

func TestSettingRepo_GetMany_EmptyKeys(t *testing.T) {
	db := newTestDB(t)
	repo := NewSettingRepo(db)

	result, err := repo.GetMany(context.Background(), driven.PartitionLocal, nil)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestSettingRepo_UnknownPartition(t *testing.T) {
	db := newTestDB(t)
	repo := NewSettingRepo(db)
	ctx := context.Background()

	_, _, err := repo.Get(ctx, driven.Partition("session"), "theme")
	assert.ErrorIs(t, err, driven.ErrUnknownPartition)

	err = repo.Set(ctx, driven.Partition("session"), "theme", json.RawMessage(`"dark"`))
	assert.ErrorIs(t, err, driven.ErrUnknownPartition)
}
