// Package main provides the f07-server binary: the F07 change-request
// approval service and its admin commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/f07-workflow/internal/config"
	"github.com/garyjia/f07-workflow/internal/container"
	"github.com/garyjia/f07-workflow/internal/infrastructure/seed"
	"github.com/garyjia/f07-workflow/migrations"
	"github.com/garyjia/f07-workflow/pkg/database"
	"github.com/garyjia/f07-workflow/pkg/utils"
)

const (
	Version = "1.0.0"
	appName = "f07-server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "F07 IT change-request approval service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Config file path (YAML)")

	cmd.AddCommand(serveCmd(&configPath))
	cmd.AddCommand(migrateCmd(&configPath))
	cmd.AddCommand(seedCmd(&configPath))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("Starting F07 workflow service",
				zap.String("version", Version),
				zap.Int("port", cfg.Server.Port))

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
			if err != nil {
				return err
			}
			if err := c.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := c.Close(); err != nil {
					logger.Error("Shutdown finished with errors", zap.Error(err))
				}
			}()

			if err := c.Serve(ctx); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			logger.Info("Server exited successfully")
			return nil
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := database.New(database.Config{
				Path:        cfg.Database.Path,
				BusyTimeout: cfg.Database.BusyTimeout,
			}, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			migrator := database.NewMigrator(db, logger)
			if err := migrator.RunMigrations(migrations.FS); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			versions, err := migrator.AppliedVersions()
			if err != nil {
				return err
			}
			fmt.Printf("Applied migrations: %v\n", versions)
			return nil
		},
	}
}

func seedCmd(configPath *string) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "seed <workflow.yaml>",
		Short: "Validate and load a workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.ParseFile(args[0])
			if err != nil {
				return err
			}

			if dryRun {
				_, warnings, err := f.Validate()
				if err != nil {
					return err
				}
				for _, w := range warnings {
					fmt.Printf("warning: %s\n", w)
				}
				fmt.Printf("%s is valid\n", args[0])
				return nil
			}

			cfg, logger, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ccfg := cfg.ToContainerConfig()
			ccfg.Metrics.Enabled = false
			ccfg.NATS.URL = ""
			ccfg.Database.AutoMigrate = true

			c, err := container.NewContainer(ccfg, logger)
			if err != nil {
				return err
			}
			if err := c.Start(cmd.Context()); err != nil {
				return err
			}
			defer c.Close()

			summary, err := c.SeedLoader().Load(cmd.Context(), f)
			if err != nil {
				return err
			}
			for _, w := range summary.Warnings {
				fmt.Printf("warning: %s\n", w)
			}
			fmt.Printf("Loaded %d categories, %d transitions, %d legacy steps, %d special approvers, %d users\n",
				summary.Categories, summary.Transitions, summary.LegacySteps, summary.SpecialApprovers, summary.Users)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate without writing to the database")
	return cmd
}

// bootstrap loads configuration and builds the logger it describes
func bootstrap(configPath string) (*config.Config, *zap.Logger, error) {
	if _, err := os.Stat(configPath); err != nil {
		configPath = ""
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	return cfg, logger, nil
}
