package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"newsmatch/internal/batch"
	"newsmatch/internal/config"
	"newsmatch/internal/storage"
)

type mergeFlags struct {
	output       string
	totalWorkers int
	stats        bool
}

func newMergeCmd(a *app) *cobra.Command {
	f := &mergeFlags{}
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Concatenate partition outputs",
		Long: `Concatenate the _part<id> files written by "match --worker_id" in partition
order into --output, optionally followed by match statistics rows.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMerge(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.output, "output", "", "output path given to match (local path or s3://bucket/key)")
	cmd.Flags().IntVar(&f.totalWorkers, "total_workers", 1, "number of partitions to merge")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "append matched / 0.3+ / 0.8+ count rows")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func (a *app) runMerge(cmd *cobra.Command, f *mergeFlags) error {
	if f.totalWorkers <= 0 {
		return fmt.Errorf("%w: --total_workers must be > 0 (got %d)", config.ErrConfig, f.totalWorkers)
	}
	ctx := cmd.Context()
	output, err := storage.ParseLocation(f.output)
	if err != nil {
		return fmt.Errorf("%w: --output: %w", config.ErrConfig, err)
	}
	blobs, _, err := openBlobs(ctx, &config.Config{Storage: a.cfg.Storage}, output)
	if err != nil {
		return err
	}
	stats, err := batch.Merge(ctx, blobs, output, f.totalWorkers, f.stats || a.cfg.Output.Stats)
	if err != nil {
		return err
	}
	a.logger.Info("merge finished",
		"output", output.String(),
		"partitions", f.totalWorkers,
		"matched", stats.Matched,
		"ratio_0_3_to_0_8", stats.Mid,
		"ratio_0_8_plus", stats.High,
	)
	return nil
}
