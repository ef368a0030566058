package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/pipeboard/core/internal/infrastructure/config"
	"github.com/pipeboard/core/internal/infrastructure/database"
	"github.com/pipeboard/core/internal/infrastructure/logger"
	"github.com/pipeboard/core/internal/infrastructure/server"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Pipeboard API server",
		Long:  "Start the Pipeboard API server with all configured routes and middleware",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations (up, down, version)",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run all up migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("up", 0)
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Run all down migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("down", 0)
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		Run: func(cmd *cobra.Command, args []string) {
			showMigrationVersion()
		},
	})

	return migrateCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print Pipeboard version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Pipeboard Core v1.0.0")
		},
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	db, err := database.New(cfg.Database)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	srv, err := server.New(cfg, db, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize server", "error", err)
	}

	// Load the board before taking traffic.
	loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := srv.Session().Refresh(loadCtx); err != nil {
		appLogger.Fatal("Failed to load board", "error", err)
	}
	cancel()

	appLogger.Info("Starting Pipeboard API server",
		"port", cfg.Server.Port,
		"environment", cfg.App.Environment,
	)

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
			appLogger.Error("Server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Graceful shutdown failed", "error", err)
	}
}

func runMigration(direction string, steps int) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	m := newMigrator(db)

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	}

	if err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Migration failed: %v", err)
	}

	if err == migrate.ErrNoChange {
		fmt.Println("No migrations to run")
	} else {
		fmt.Printf("Migration %s completed successfully\n", direction)
	}
}

func showMigrationVersion() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	m := newMigrator(db)

	version, dirty, err := m.Version()
	if err != nil {
		log.Fatalf("Failed to get migration version: %v", err)
	}

	fmt.Printf("Current migration version: %d\n", version)
	fmt.Printf("Dirty: %t\n", dirty)
}

func newMigrator(db *database.DB) *migrate.Migrate {
	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		log.Fatalf("Failed to create migration instance: %v", err)
	}

	return m
}
