// Package config loads depctl's settings from a TOML file and environment
// variables (in that precedence order, lowest first), and
// watches the file for live edits. Grounded on the teacher's use of a
// standalone viper.New() instance scoped to one config file
// (cmd/bd/config.go's validateSyncConfig) rather than viper's package-level
// singleton, and on cmd/bd/list.go's fsnotify-watcher-plus-debounce idiom
// for reacting to file changes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix depctl environment-variable overrides use, e.g.
// DEPENGINE_STORAGE_BACKEND.
const EnvPrefix = "DEPENGINE"

// Config is the resolved settings depctl and its library packages read at
// startup. Field names match the TOML/YAML keys via viper's default
// lowercase-dotted-path mapping (storage.backend, telemetry.otlp_endpoint).
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Retry     RetryConfig     `mapstructure:"retry"`
	CLI       CLIConfig       `mapstructure:"cli"`
}

// StorageConfig selects and configures the dependency-registry and catalog
// backend (§4.2's sqlite/dolt dual-backend split).
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`    // "sqlite" or "dolt"
	Path      string `mapstructure:"path"`       // sqlite file path, or dolt working dir
	ServerDSN string `mapstructure:"server_dsn"` // non-empty replaces path as the embedded dolt driver's DSN; there is no server mode
}

// TelemetryConfig controls the otel tracer/meter wiring in internal/telemetry.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"` // not read by depctl, which always uses the stdout exporter
}

// RetryConfig holds a backoff limit for lock-acquisition waits. It is not
// read by internal/retry, whose backoff policy uses fixed constants.
type RetryConfig struct {
	MaxElapsed time.Duration `mapstructure:"max_elapsed"`
}

// CLIConfig holds depctl's own output preferences.
type CLIConfig struct {
	DefaultMode string `mapstructure:"default_mode"` // "cascade" or "restrict"
	JSON        bool   `mapstructure:"json"`
}

func defaults() Config {
	return Config{
		Storage: StorageConfig{Backend: "sqlite", Path: "depengine.db"},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
		Retry: RetryConfig{MaxElapsed: 30 * time.Second},
		CLI:   CLIConfig{DefaultMode: "restrict"},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaults()
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.server_dsn", d.Storage.ServerDSN)
	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.otlp_endpoint", d.Telemetry.OTLPEndpoint)
	v.SetDefault("retry.max_elapsed", d.Retry.MaxElapsed)
	v.SetDefault("cli.default_mode", d.CLI.DefaultMode)
	v.SetDefault("cli.json", d.CLI.JSON)
}

// Load reads configPath (TOML, or YAML if the extension is .yaml/.yml) over
// the built-in defaults, then layers DEPENGINE_-prefixed environment
// variables on top. A missing configPath is not an error: defaults and env
// vars alone are a valid configuration, matching the teacher's
// LoadLocalConfig returning an empty struct rather than failing when
// config.yaml is absent.
func Load(configPath string) (Config, error) {
	v := newViper(configPath)
	if err := readIfPresent(v, configPath); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType(formatOf(configPath))
	}
	return v
}

func formatOf(path string) string {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "toml"
	}
}

func readIfPresent(v *viper.Viper, configPath string) error {
	if configPath == "" {
		return nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", configPath, err)
	}
	return nil
}

// LoadYAMLDirect parses configPath as YAML without going through viper,
// returning a zero Config (not an error) if the file is missing or
// unparseable. Mirrors LoadLocalConfig's direct-read escape hatch for
// callers that need a config value before the viper-backed Load has run,
// or from a working directory other than the one Load was called from.
func LoadYAMLDirect(configPath string) Config {
	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is operator-supplied, not request data
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// Watcher watches configPath for writes and re-runs Load, invoking onChange
// with the freshly parsed Config. Grounded on cmd/bd/list.go's
// fsnotify.NewWatcher + debounce-timer loop (events are debounced 500ms so
// a burst of saves from an editor only triggers one reload).
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// WatchFile starts watching configPath's containing directory (fsnotify
// watches directories, not bare files, so the watch survives editors that
// replace the file via rename-on-save) and calls onChange on every debounced
// write. Call Close to stop watching.
func WatchFile(configPath string, onChange func(Config, error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	dir := filepath.Dir(configPath)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch config directory %s: %w", dir, err)
	}

	w := &Watcher{watcher: fw, done: make(chan struct{})}
	go w.run(configPath, onChange)
	return w, nil
}

func (w *Watcher) run(configPath string, onChange func(Config, error)) {
	target := filepath.Clean(configPath)
	const debounceDelay = 500 * time.Millisecond
	var timer *time.Timer

	reload := func() {
		cfg, err := Load(configPath)
		onChange(cfg, err)
	}

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, reload)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
