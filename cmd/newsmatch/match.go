package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"newsmatch/internal/batch"
	"newsmatch/internal/config"
	"newsmatch/internal/engine"
	"newsmatch/internal/storage"
	"newsmatch/pkg/types"
)

type matchFlags struct {
	input        string
	output       string
	workerID     int
	totalWorkers int
	runID        string
}

func newMatchCmd(a *app) *cobra.Command {
	f := &matchFlags{}
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match posts to their source articles",
		Long: `Match every post of one partition (or of all partitions with --worker_id -1)
to its most likely source article and write the input rows with the link and
copy ratio appended. Progress is checkpointed; rerunning resumes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMatch(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.input, "input", "", "input .xlsx or .csv (local path or s3://bucket/key)")
	cmd.Flags().StringVar(&f.output, "output", "", "output .csv or .xlsx (local path or s3://bucket/key)")
	cmd.Flags().IntVar(&f.workerID, "worker_id", -1, "partition to process; -1 runs every partition in this process")
	cmd.Flags().IntVar(&f.totalWorkers, "total_workers", 1, "number of partitions the input is split into")
	cmd.Flags().StringVar(&f.runID, "run_id", "", "checkpoint namespace; overrides checkpoint.run_id from the config")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func (f *matchFlags) validate() error {
	if f.totalWorkers <= 0 {
		return fmt.Errorf("%w: --total_workers must be > 0 (got %d)", config.ErrConfig, f.totalWorkers)
	}
	if f.workerID < -1 || f.workerID >= f.totalWorkers {
		return fmt.Errorf("%w: --worker_id must be -1 or in [0,%d) (got %d)", config.ErrConfig, f.totalWorkers, f.workerID)
	}
	return nil
}

// apply copies flag overrides into cfg.
func (f *matchFlags) apply(cfg *config.Config) {
	if id := strings.TrimSpace(f.runID); id != "" {
		cfg.Checkpoint.RunID = id
	}
}

func (a *app) runMatch(cmd *cobra.Command, f *matchFlags) error {
	if err := f.validate(); err != nil {
		return err
	}
	f.apply(a.cfg)
	ctx := cmd.Context()
	input, err := storage.ParseLocation(f.input)
	if err != nil {
		return fmt.Errorf("%w: --input: %w", config.ErrConfig, err)
	}
	output, err := storage.ParseLocation(f.output)
	if err != nil {
		return fmt.Errorf("%w: --output: %w", config.ErrConfig, err)
	}
	blobs, s3, err := openBlobs(ctx, a.cfg, input, output)
	if err != nil {
		return err
	}

	table, err := batch.Read(ctx, blobs, input)
	if err != nil {
		return err
	}
	posts, err := table.Posts()
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	comps, err := buildEngine(ctx, a.cfg, blobs, s3, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			a.logger.Warn("closing resources failed", "error", err)
		}
	}()

	logger := a.logger.With("input", input.String(), "run_id", a.cfg.Checkpoint.RunID,
		"worker_id", f.workerID, "total_workers", f.totalWorkers)
	logger.Info("match started", "rows", len(posts))
	start := time.Now()

	var (
		results []types.MatchResult
		out     *batch.Table
		dest    = output
	)
	if f.workerID < 0 {
		results, err = comps.engine.RunBatch(ctx, posts, f.totalWorkers)
		out = table.WithResults(results)
		if a.cfg.Output.Stats {
			batch.AppendStats(out, batch.ComputeStats(out))
		}
	} else {
		results, err = comps.engine.RunPartition(ctx, posts, f.workerID, f.totalWorkers)
		lo, hi, boundsErr := engine.Bounds(len(posts), f.workerID, f.totalWorkers)
		if boundsErr != nil {
			return boundsErr
		}
		out = table.WithResults(results)
		out.Rows = out.Rows[lo:hi]
		dest = batch.PartLocation(output, f.workerID, f.totalWorkers)
	}
	if err != nil {
		if errors.Is(err, ctx.Err()) {
			logger.Warn("match interrupted; rerun with the same run id to resume", "finished", len(results))
		}
		return err
	}

	if err := batch.Write(ctx, blobs, dest, out); err != nil {
		return err
	}
	matched := 0
	for _, r := range results {
		if r.Matched() {
			matched++
		}
	}
	logger.Info("match finished",
		"output", dest.String(),
		"rows", len(results),
		"matched", matched,
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return nil
}
