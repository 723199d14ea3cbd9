// Maestro orchestrator — coordinates planner, worker and reviewer agents
// over user sessions, exposed through an HTTP API and this CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/maestro-ai/maestro/pkg/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "maestro",
		Short:         "Multi-agent orchestrator",
		Version:       version.Full(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("config-dir", getEnv("CONFIG_DIR", "."),
		"Path to configuration directory")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSessionCmd())
	return root
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
