// Package conf loads and validates the hub's configuration using
// spf13/viper, following the same embed-a-default/read-from-disk pattern
// used throughout the teacher codebase this module was adapted from.
package conf

import (
	"embed"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings holds every recognized configuration option for a single hub
// (spec.md §6) plus the ambient and domain-stack additions from
// SPEC_FULL.md.
type Settings struct {
	Debug bool // verbose request logging (spec §6)

	Hub struct {
		// ID is the hub's stable identity (spec §3). Preferred form is 32
		// lowercase hex chars; if empty at load time, one is derived from
		// the host's primary MAC/interface by the hub package.
		ID string

		Port int // TCP listen port, default 80 (spec §6)

		// AdInterval is how often NOTIFY ssdp:alive beacons are sent.
		AdInterval time.Duration

		// RequestDeadline is loaded and validated (default 10s), but no
		// handler or middleware applies it: HTTP requests run without a
		// per-request deadline.
		RequestDeadline time.Duration

		// ShutdownGrace bounds how long in-flight handlers get to finish
		// on Shutdown before the server force-closes (spec §5).
		ShutdownGrace time.Duration

		// CertFile and KeyFile: HTTPS is requested when both are set or when
		// Port is 443. If HTTPS is requested but the pair can't be loaded,
		// the hub falls back to plain HTTP and
		// reports status "yellow ring HTTP fallback" (spec §6) instead of
		// failing to start.
		CertFile string
		KeyFile  string
	}

	Log struct {
		Path string // empty = stderr only
	}

	Security struct {
		AllowedOrigins []string
		BodyLimit      string // e.g. "10K", enforced on Hue/Alexa POST/PUT bodies
		RateLimit      struct {
			Requests int           // spec §5: 100 requests
			Window   time.Duration // spec §5: 15 minutes
		}
	}

	MQTT struct {
		Broker   string // e.g. "tcp://192.168.1.10:1883"; empty disables the sink
		ClientID string
		Username string
		Password string
	}

	// Devices seeds the standalone `serve` command's built-in device
	// registry source (spec §6's iterateNodes host environment, stood in
	// for embedders that have no device directory of their own). An
	// embedding host environment normally supplies its own
	// registry.Source instead of relying on this list.
	Devices []DeviceConfig
}

// DeviceConfig is one statically configured device exposed by the built-in
// registry source.
type DeviceConfig struct {
	ID   string
	Name string
}

var (
	current   *Settings
	currentMu sync.RWMutex
	loadOnce  sync.Once
)

// Load reads configuration from the first discovered config file, seeding
// viper with defaults first so an absent file still yields a usable
// Settings. If no config file exists, the embedded default is written to
// explicitPath when one is given, otherwise into the first candidate
// directory of the search path.
func Load(explicitPath string) (*Settings, error) {
	settings := &Settings{}

	v := viper.New()
	setDefaults(v)

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		paths, err := defaultConfigPaths()
		if err != nil {
			return nil, fmt.Errorf("determine default config paths: %w", err)
		}
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if !configMissing(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if explicitPath != "" {
			if err := writeDefaultConfigTo(v, explicitPath); err != nil {
				return nil, fmt.Errorf("write default config: %w", err)
			}
		} else if err := writeDefaultConfig(v); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	Validate(settings)

	currentMu.Lock()
	current = settings
	currentMu.Unlock()
	loadOnce.Do(func() {})

	return settings, nil
}

// configMissing reports whether err indicates the config file simply isn't
// there yet, whether viper found that via its own search-path notion of
// "not found" or a plain os.Stat failure on an explicit path.
func configMissing(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if stderrors.As(err, &notFound) {
		return true
	}
	return os.IsNotExist(err) || stderrors.Is(err, fs.ErrNotExist)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("hub.port", 80)
	v.SetDefault("hub.adinterval", "30s")
	v.SetDefault("hub.requestdeadline", "10s")
	v.SetDefault("hub.shutdowngrace", "5s")
	v.SetDefault("log.path", "logs/huebridge.log")
	v.SetDefault("security.allowedorigins", []string{"*"})
	v.SetDefault("security.bodylimit", "10K")
	v.SetDefault("security.ratelimit.requests", 100)
	v.SetDefault("security.ratelimit.window", "15m")
}

func defaultConfigPaths() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("user home directory: %w", err)
	}
	switch runtime.GOOS {
	case "windows":
		return []string{filepath.Join(home, "AppData", "Roaming", "huebridge")}, nil
	default:
		return []string{filepath.Join(home, ".config", "huebridge"), "/etc/huebridge"}, nil
	}
}

func writeDefaultConfig(v *viper.Viper) error {
	paths, err := defaultConfigPaths()
	if err != nil {
		return err
	}
	dir := paths[0]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory %s: %w", dir, err)
	}
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("read embedded default config: %w", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default config to %s: %w", path, err)
	}
	v.SetConfigFile(path)
	return v.ReadInConfig()
}

// writeDefaultConfigTo writes the embedded default config to an explicit
// path (creating parent directories as needed) and re-reads it into v.
func writeDefaultConfigTo(v *viper.Viper, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory %s: %w", dir, err)
		}
	}
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("read embedded default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default config to %s: %w", path, err)
	}
	v.SetConfigFile(path)
	return v.ReadInConfig()
}

// Current returns the most recently Loaded Settings, or nil if Load has not
// run yet.
func Current() *Settings {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}
