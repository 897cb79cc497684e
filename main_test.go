package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"akiya_collector/models"
	"akiya_collector/storage"
)

func TestMaskConnectionString(t *testing.T) {
	assert.Equal(t, "postgres://user:****@db:5432/akiya", maskConnectionString("postgres://user:secret@db:5432/akiya"))
	assert.Equal(t, "postgres://db:5432/akiya", maskConnectionString("postgres://db:5432/akiya"))
	assert.Equal(t, "not a url", maskConnectionString("not a url"))
}

func TestEnqueueCommand(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "cmd.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	require.NoError(t, enqueueCommand(ctx, store, "pause", "", logger))
	require.NoError(t, enqueueCommand(ctx, store, "collect_dataset", "vacancy", logger))
	assert.ErrorContains(t, enqueueCommand(ctx, store, "collect_dataset", "", logger), "requires -dataset")
	assert.ErrorContains(t, enqueueCommand(ctx, store, "reboot", "", logger), "unknown command")

	cmds, err := store.PendingCommands(ctx)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, models.CmdPause, cmds[0].Command)
	assert.Equal(t, models.CmdCollectDataset, cmds[1].Command)
}

func TestPrintRuns(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	run := models.NewImportRun("vacancy")
	require.NoError(t, store.CreateRun(ctx, run))
	run.Status = models.RunStatusCompleted
	run.RowsImported = 28
	run.FileHash = "0123456789abcdef0123456789abcdef"
	require.NoError(t, store.UpdateRun(ctx, run))
	require.NoError(t, store.Log(ctx, &run.ID, models.LogLevelInfo, "imported 28 rows", "vacancy"))

	var buf bytes.Buffer
	require.NoError(t, printRuns(ctx, &buf, store, 5))

	out := buf.String()
	assert.Contains(t, out, "DATASET")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "0123456789abcdef")
	assert.NotContains(t, out, "0123456789abcdef0")
	assert.Contains(t, out, "[info] imported 28 rows")
}
