package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsmatch/internal/batch"
	"newsmatch/internal/config"
	"newsmatch/internal/storage"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(append(args, "--env", ""))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func TestMergeCommand(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	output, err := storage.ParseLocation(filepath.Join(dir, "result.csv"))
	require.NoError(t, err)

	blobs := storage.NewBlobs(nil)
	header := []string{"title", "body", batch.LinkColumn, batch.RatioColumn}
	for id := 0; id < 2; id++ {
		part := &batch.Table{Header: header, Rows: [][]string{{"t", "b", "", "0.000"}}}
		require.NoError(t, batch.Write(ctx, blobs, batch.PartLocation(output, id, 2), part))
	}

	require.NoError(t, execute(t, "merge", "--output", output.Path, "--total_workers", "2", "--stats"))

	merged, err := batch.Read(ctx, blobs, output)
	require.NoError(t, err)
	assert.Len(t, merged.Rows, 5)
	assert.Equal(t, "matched", merged.Rows[2][0])
	assert.Equal(t, "0", merged.Rows[2][1])
}

func TestMatchRejectsBadPartitionFlags(t *testing.T) {
	t.Setenv("NAVER_CLIENT_ID", "id")
	t.Setenv("NAVER_CLIENT_SECRET", "secret")

	err := execute(t, "match", "--input", "in.csv", "--output", "out.csv", "--worker_id", "2", "--total_workers", "2")
	assert.ErrorIs(t, err, config.ErrConfig)

	err = execute(t, "match", "--input", "in.csv", "--output", "out.csv", "--total_workers", "0")
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestMatchRunIDFlagOverridesConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Checkpoint.RunID = "default"

	(&matchFlags{}).apply(cfg)
	assert.Equal(t, "default", cfg.Checkpoint.RunID)

	(&matchFlags{runID: " batch-2026-10 "}).apply(cfg)
	assert.Equal(t, "batch-2026-10", cfg.Checkpoint.RunID)

	flag := newMatchCmd(&app{}).Flags().Lookup("run_id")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
}

func TestMatchFailsOnMissingInput(t *testing.T) {
	t.Setenv("NAVER_CLIENT_ID", "id")
	t.Setenv("NAVER_CLIENT_SECRET", "secret")
	dir := t.TempDir()

	err := execute(t, "match",
		"--input", filepath.Join(dir, "missing.csv"),
		"--output", filepath.Join(dir, "out.csv"),
	)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, statErr := os.Stat(filepath.Join(dir, "out.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestMatchRequiresCredentials(t *testing.T) {
	t.Setenv("NAVER_CLIENT_ID", "")
	t.Setenv("NAVER_CLIENT_SECRET", "")
	err := execute(t, "match", "--input", "in.csv", "--output", "out.csv")
	assert.ErrorIs(t, err, config.ErrConfig)
}
