package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/spark-agent/internal/config"
)

// Build information injected via ldflags at build time.
var version = "dev"

// v holds the environment-backed config; flags are bound on top of it.
var v = config.NewViper()

var rootCmd = &cobra.Command{
	Use:          "spark-api",
	Short:        "SPARK guided-session API",
	Long:         `Serves the five-stage SPARK emotional-regulation sessions over HTTP and websockets.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
