package main

import (
	"errors"
	"log/slog"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/cobra"

	"github.com/JordanRousseau/capital-problem/internal/adapter/sqlite"
	"github.com/JordanRousseau/capital-problem/internal/config"
	"github.com/JordanRousseau/capital-problem/internal/observability"
)

// cliContext carries the persistent flags shared by every subcommand.
type cliContext struct {
	profile  string
	dbPath   string
	logLevel string
}

func newRootCommand() *cobra.Command {
	ctx := &cliContext{}

	rootCmd := &cobra.Command{
		Use:           "climatematch",
		Short:         "Compare daily temperature series and rank the closest match",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.profile, "profile", "p", sharedcfg.EnvOrDefault("ANALYSIS_PROFILE", ""), "TOML analysis profile")
	rootCmd.PersistentFlags().StringVar(&ctx.dbPath, "db", sharedcfg.EnvOrDefault("REPORT_DB_PATH", ""), "SQLite report database")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newCompareCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))

	return rootCmd
}

// analysis resolves settings from defaults, the --profile flag and the
// environment. The flag replaces ANALYSIS_PROFILE.
func (c *cliContext) analysis() (config.Analysis, error) {
	return config.LoadAnalysisWithProfile(c.profile)
}

func (c *cliContext) logger(cmd *cobra.Command) *slog.Logger {
	return observability.NewTextLogger(cmd.ErrOrStderr(), c.logLevel)
}

// openStore opens the report database, or returns nil when none is configured
// and required is false.
func (c *cliContext) openStore(required bool) (*sqlite.Store, error) {
	if c.dbPath == "" {
		if required {
			return nil, errors.New("--db (or REPORT_DB_PATH) is required")
		}
		return nil, nil
	}
	return sqlite.Open(c.dbPath, nil)
}
