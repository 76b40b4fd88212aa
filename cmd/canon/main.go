// Command canon is the Scoracle canonicalization CLI. It merges player
// snapshots into one canonical dataset, writes the run artifacts and
// optionally publishes them to Postgres.
//
// Usage:
//
//	scoracle-canon run --manifest manifest.toml --output output
//	scoracle-canon run --shards 8 --xlsx
//	scoracle-canon publish --manifest manifest.toml
//	scoracle-canon inspect manifest
//	scoracle-canon inspect run --output output
//	scoracle-canon schema
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/albapepper/scoracle-canon/internal/db"
	"github.com/albapepper/scoracle-canon/internal/export"
	"github.com/albapepper/scoracle-canon/internal/source"
	"github.com/albapepper/scoracle-canon/internal/store"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	var flags runFlags
	root := &cobra.Command{
		Use:           "scoracle-canon",
		Short:         "Scoracle player canonicalization CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.register(root)

	root.AddCommand(runCmd(&flags))
	root.AddCommand(publishCmd(&flags))
	root.AddCommand(inspectCmd(&flags))
	root.AddCommand(schemaCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd(flags *runFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Canonicalize the manifest's snapshots and write the artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRun(cmd, flags, func(ctx context.Context, r *runContext) error {
				fmt.Fprintln(cmd.OutOrStdout(), renderSummary(r.result, r.written))
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// publish command
// --------------------------------------------------------------------------

func publishCmd(flags *runFlags) *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Run the pipeline and upsert the canonical dataset into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRun(cmd, flags, func(ctx context.Context, r *runContext) error {
				r.logger.Info("Connecting to database...")
				pool, err := db.New(ctx, r.cfg)
				if err != nil {
					return fmt.Errorf("connect to database: %w", err)
				}
				defer pool.Close()

				if !skipMigrate {
					if err := pool.Migrate(ctx); err != nil {
						return err
					}
				}

				start := time.Now()
				published, err := store.NewPublisher(pool.Pool, r.logger).Publish(ctx, r.result, r.snapshots)
				if err != nil {
					return fmt.Errorf("publish: %w", err)
				}
				r.logger.Info("Publish finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"summary", published.Summary())
				fmt.Fprintln(cmd.OutOrStdout(), renderSummary(r.result, r.written))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not apply the schema before publishing")
	return cmd
}

// --------------------------------------------------------------------------
// inspect command
// --------------------------------------------------------------------------

func inspectCmd(flags *runFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the manifest or the last run's metadata",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "manifest",
		Short: "List the snapshots the manifest declares, in pass order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.config(cmd)
			if err != nil {
				return err
			}
			m, err := source.LoadManifest(cfg.ManifestPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderManifest(m))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Show the metadata of the run in the output directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.config(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(cfg.OutputDir, export.RunMetadataFile))
			if err != nil {
				return fmt.Errorf("read run metadata: %w", err)
			}
			var meta export.RunMetadata
			if err := toml.Unmarshal(data, &meta); err != nil {
				return fmt.Errorf("decode run metadata: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRunMetadata(meta))
			return nil
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// schema command
// --------------------------------------------------------------------------

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the Postgres schema publish applies",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), db.Schema())
			return err
		},
	}
}

// signalContext cancels on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
