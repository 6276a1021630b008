package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	s, err := NewStore(filepath.Join(t.TempDir(), "registry", "experiments.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PragmasApplied(t *testing.T) {
	s := testStore(t)

	var mode string
	require.NoError(t, s.db.Get(&mode, "PRAGMA journal_mode"))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, s.db.Get(&fk, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, fk)
}

func TestStore_SaveAndGetRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := NewRun("primevul", "only", RunKindTrain)
	run.JobID = 123456
	run.LogFile = "logs/train_primevul_only_123456.log"
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "primevul", got.Dataset)
	assert.Equal(t, "only", got.Variant)
	assert.Equal(t, RunKindTrain, got.Kind)
	assert.Equal(t, 123456, got.JobID)
	assert.Equal(t, run.LogFile, got.LogFile)
}

func TestStore_GetRunNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetRun(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveRunReplaces(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := NewRun("reposvul", "codellama", RunKindTest)
	require.NoError(t, s.SaveRun(ctx, run))

	run.LogFile = "test_with_reposvul_codellama.log"
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "test_with_reposvul_codellama.log", got.LogFile)
}

func TestStore_Metrics(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := NewRun("primevul", "only", RunKindTest)
	require.NoError(t, s.SaveRun(ctx, run))

	metrics := map[string]string{
		"test_accuracy": "0.9482",
		"test_f1":       "0.3121",
		"test_recall":   "", // empty values are skipped
	}
	require.NoError(t, s.SaveMetrics(ctx, run.ID, metrics))

	got, err := s.GetMetrics(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.9482", got["test_accuracy"])
	assert.Equal(t, "0.3121", got["test_f1"])
	_, present := got["test_recall"]
	assert.False(t, present)

	// Upsert replaces values in place.
	require.NoError(t, s.SaveMetrics(ctx, run.ID, map[string]string{"test_f1": "0.4000"}))
	got, err = s.GetMetrics(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.4000", got["test_f1"])
}

func TestStore_ListRuns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, ds := range []string{"primevul", "primevul", "reposvul"} {
		require.NoError(t, s.SaveRun(ctx, NewRun(ds, "only", RunKindTest)))
	}

	all, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	pv, err := s.ListRuns(ctx, "primevul")
	require.NoError(t, err)
	assert.Len(t, pv, 2)
}
