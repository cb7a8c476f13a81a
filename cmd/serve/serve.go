// Package serve implements the `huebridge serve` subcommand: load
// configuration, build a hub.Hub, and run it until SIGINT/SIGTERM.
package serve

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wiredhome/huebridge/internal/conf"
	"github.com/wiredhome/huebridge/internal/hub"
	"github.com/wiredhome/huebridge/internal/logging"
	"github.com/wiredhome/huebridge/internal/registry"
)

// Command builds the serve subcommand bound to settings, which the root
// command's PersistentPreRunE populates before RunE runs.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge emulator until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}
}

func run(settings *conf.Settings) error {
	loggers, err := logging.New(settings.Log.Path, settings.Debug)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = loggers.Close() }()

	log := loggers.Text
	if !settings.Debug {
		log = loggers.JSON
	}

	localIP, err := hub.LocalIPv4()
	if err != nil {
		return fmt.Errorf("determine local IP address: %w", err)
	}

	devices := make([]registry.StaticDevice, 0, len(settings.Devices))
	for _, d := range settings.Devices {
		devices = append(devices, registry.StaticDevice{ID: d.ID, Name: d.Name})
	}
	source := registry.NewStaticSource(log, devices)

	h, err := hub.New(settings, source, localIP, log)
	if err != nil {
		return fmt.Errorf("build hub: %w", err)
	}

	log.Info("starting huebridge", "local_ip", localIP, "port", settings.Hub.Port)
	return h.RunWithGracefulShutdown()
}
