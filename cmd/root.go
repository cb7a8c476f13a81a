// Package cmd wires the huebridge CLI, grounded in the teacher's
// cmd/root.go cobra-root-plus-subcommands shape.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wiredhome/huebridge/cmd/serve"
	"github.com/wiredhome/huebridge/internal/conf"
)

// RootCommand creates the huebridge root command and its serve subcommand.
func RootCommand() *cobra.Command {
	settings := &conf.Settings{}

	var configPath string
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "huebridge",
		Short: "Emulates a Philips Hue bridge for Alexa Smart Home control",
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: platform config directory)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable verbose request logging")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configPath)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if debug {
			loaded.Debug = true
		}
		*settings = *loaded
		return nil
	}

	rootCmd.AddCommand(serve.Command(settings))

	return rootCmd
}
