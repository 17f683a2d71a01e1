// Command flightdeals records flight prices from several providers and reports
// routes that are currently much cheaper than usual.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/San4ouzs/Flight-deals-eu/pkg/config"
	"github.com/San4ouzs/Flight-deals-eu/pkg/logging"
	"github.com/San4ouzs/Flight-deals-eu/pkg/version"
)

const defaultConfigFile = "config.yaml"

var (
	cfg    *config.Config
	logger *logging.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "flightdeals",
	Short: "Flight price history and deal finder",
	Long: `flightdeals scans flight prices for a set of routes, keeps every observation
in a price history and reports routes whose latest price is well below the
average of the preceding 365 days.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}

		configFile, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(configFile)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !cmd.Flag("config").Changed:
			loaded = config.Default()
		case err != nil:
			return fmt.Errorf("failed to load config: %w", err)
		}

		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			loaded.Logging.Level = level
		}
		if err := config.Validate(loaded); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		l, err := logging.Init(loaded.Logging.Level, loaded.Logging.Format, loaded.Logging.Output)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, logger = loaded, l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", defaultConfigFile, "path to the YAML configuration file")
	rootCmd.PersistentFlags().String("env-file", ".env", "optional KEY=VALUE file loaded before the configuration")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(dealsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(botCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "flightdeals version %s\n", version.Version)
	},
}
