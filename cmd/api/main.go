package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/pipeboard/core/cmd/api/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pipeboard",
		Short: "Pipeboard API Server",
		Long:  `Pipeboard is a pipeline board engine for managing content posts and project tasks across status columns.`,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
