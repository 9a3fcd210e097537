// Command veragrid is the engine's CLI front end: one subcommand per
// driver in pkg/vdriver's uniform surface, operating on the built-in
// demo networks (internal/demogrid) since pkg/grid ships no
// file-format loader.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/veragrid/veragridengine/pkg/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "veragrid",
	Short: "Power-system numerical core: power flow, contingency, reduction, RMS dynamics, reliability",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		configureLogging(cfg.Logging)
		return nil
	},
}

func configureLogging(lc config.LoggingConfig) {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if lc.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: veragrid.yaml, or built-in defaults)")

	rootCmd.AddCommand(pfCmd)
	rootCmd.AddCommand(dcCmd)
	rootCmd.AddCommand(acCmd)
	rootCmd.AddCommand(contingencyCmd)
	rootCmd.AddCommand(reduceCmd)
	rootCmd.AddCommand(rmsCmd)
	rootCmd.AddCommand(reliabilityCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
