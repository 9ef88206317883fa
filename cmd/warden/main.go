package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/netwarden/warden/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:           "warden",
	Short:         "Per-connection bandwidth guard",
	Long:          "warden blocks bandwidth heavy and background processes on untrusted networks\nand accounts the traffic of every classified connection.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "C", "", "config file (default warden.yaml in /etc/warden, ~/.warden or .)")
}

// loadConfig reads the config file. A missing default config yields an empty config.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if cfgFile != "" {
		if err := cfg.ReadFile(cfgFile); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err := cfg.Load(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
