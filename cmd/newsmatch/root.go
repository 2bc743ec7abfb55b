package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"newsmatch/internal/config"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	envPath    string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "newsmatch",
		Short: "Find the news article a forum post was copied from",
		Long: `newsmatch reads exported forum posts, searches the news API for the
article each post was copied from and scores how much of it was copied.

Example usage:
  newsmatch match --input posts.xlsx --output result.csv
  newsmatch match --input s3://bucket/posts.csv --output s3://bucket/result.csv --worker_id 2 --total_workers 4
  newsmatch merge --output s3://bucket/result.csv --total_workers 4 --stats`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (defaults apply when empty)")
	root.PersistentFlags().StringVar(&a.envPath, "env", ".env", "dotenv file holding API credentials")

	root.AddCommand(newMatchCmd(a), newMergeCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if err := config.LoadEnv(a.envPath); err != nil {
		return err
	}
	var (
		cfg *config.Config
		err error
	)
	if cmd.Name() == "merge" {
		cfg, err = config.Read(a.configPath)
	} else {
		cfg, err = config.Load(a.configPath)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := config.BuildLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
