// Command ontanictl administers the diagnosis catalog: schema migrations,
// catalog seeding, cache purges and MCP client registration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ontani-server/internal/app"
	"github.com/ontani-server/internal/cache"
	"github.com/ontani-server/internal/config"
	"github.com/ontani-server/internal/logging"
	"github.com/ontani-server/internal/seed"
	"github.com/ontani-server/internal/setup"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "ontanictl",
		Short:         "Administer the ontani diagnosis catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "config file (default: config.yaml in ., ./config or /etc/ontani)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(cacheCmd())
	rootCmd.AddCommand(mcpCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the --config file, or the default search path when unset,
// and builds a logger from it.
func loadConfig(cmd *cobra.Command) (*config.Manager, *logrus.Logger, error) {
	path, _ := cmd.Flags().GetString("config")

	cm, err := config.NewManagerWithFile(path)
	if err != nil {
		return nil, nil, err
	}
	if err := cm.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg := cm.GetConfig().Logging
	logCfg.Output = "stderr"
	logger, _, err := logging.New(logCfg)
	if err != nil {
		return nil, nil, err
	}
	return cm, logger, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run catalog schema migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return app.MigrateUp(cmd.Context(), cm, logger)
		},
	}

	// migrate down
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runner, err := app.NewMigrationRunner(cm, logger)
			if err != nil {
				return err
			}
			defer runner.Close()
			return runner.Down(cmd.Context())
		},
	}

	// migrate version
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runner, err := app.NewMigrationRunner(cm, logger)
			if err != nil {
				return err
			}
			defer runner.Close()

			version, dirty, err := runner.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %t\n", version, dirty)
			return nil
		},
	}

	cmd.AddCommand(upCmd, downCmd, versionCmd)
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Load a YAML catalog into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			catalog, err := seed.LoadFile(args[0])
			if err != nil {
				return err
			}

			if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
				if err := app.MigrateUp(cmd.Context(), cm, logger); err != nil {
					return err
				}
			}

			store, err := app.OpenSQLStore(cmd.Context(), cm, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := seed.Apply(cmd.Context(), store, catalog, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d symptoms, %d clinics, %d diagnoses, %d links\n",
				res.Symptoms, res.Clinics, res.Diagnoses, res.Links)
			return nil
		},
	}
	cmd.Flags().Bool("migrate", false, "apply pending migrations before seeding")
	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the reference data cache",
	}

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Drop all cached catalog entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg := cm.GetConfig().Cache
			if cfg.RedisURL == "" {
				// the in-memory tier lives inside each server process
				fmt.Fprintln(cmd.OutOrStdout(), "no redis cache configured; nothing to purge")
				return nil
			}

			c, err := cache.NewCatalogCache(cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Purge(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache purged")
			return nil
		},
	}

	cmd.AddCommand(purgeCmd)
	return cmd
}

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Register the standalone MCP server with a desktop client",
	}
	cmd.PersistentFlags().String("client-config", "", "client config file (default: platform location)")

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Add or replace the server entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := clientConfigPath(cmd)
			if err != nil {
				return err
			}
			binary, _ := cmd.Flags().GetString("binary")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			seedFile, _ := cmd.Flags().GetString("seed-file")
			logLevel, _ := cmd.Flags().GetString("log-level")

			entry, err := setup.Register(path, setup.Options{
				BinaryPath: binary,
				DataDir:    dataDir,
				SeedFile:   seedFile,
				LogLevel:   logLevel,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "registered %s in %s\n", setup.ServerName, path)
			fmt.Fprintf(out, "  command: %s\n", entry.Command)
			fmt.Fprintln(out, "restart the client to pick up the change")
			return nil
		},
	}
	installCmd.Flags().String("binary", "", "path to ontani-mcp-lite (default: search PATH)")
	installCmd.Flags().String("data-dir", "", "catalog data directory")
	installCmd.Flags().String("seed-file", "", "YAML catalog applied at startup")
	installCmd.Flags().String("log-level", "", "server log level")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := clientConfigPath(cmd)
			if err != nil {
				return err
			}
			status, err := setup.Inspect(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config: %s\n", status.ConfigPath)
			fmt.Fprintf(out, "registered: %t\n", status.Registered)
			if status.Registered {
				fmt.Fprintf(out, "command: %s\n", status.Entry.Command)
			}
			if len(status.Issues) > 0 {
				fmt.Fprintf(out, "issues:\n  %s\n", strings.Join(status.Issues, "\n  "))
			}
			return nil
		},
	}

	uninstallCmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the server entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := clientConfigPath(cmd)
			if err != nil {
				return err
			}
			removed, err := setup.Unregister(path)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", setup.ServerName, path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was not registered\n", setup.ServerName)
			}
			return nil
		},
	}

	cmd.AddCommand(installCmd, statusCmd, uninstallCmd)
	return cmd
}

func clientConfigPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("client-config"); path != "" {
		return path, nil
	}
	return setup.DefaultClientConfigPath()
}
