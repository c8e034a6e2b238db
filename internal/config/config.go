package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/sunbird89629/pip-plugin/internal/logger"
	"gopkg.in/yaml.v3"
)

// Defaults for a freshly created config file.
const (
	DefaultListenAddr = "127.0.0.1:8765"
	DefaultLogLevel   = "info"
	DefaultBackend    = "auto"
)

// Config holds the daemon settings. PiP appearance is not part of it; the
// host sends that with every setup.
type Config struct {
	ListenAddr     string   `json:"listen_addr" yaml:"listen_addr" mapstructure:"listen_addr"`
	LogLevel       string   `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogPretty      bool     `json:"log_pretty" yaml:"log_pretty" mapstructure:"log_pretty"`
	Backend        string   `json:"backend" yaml:"backend" mapstructure:"backend"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		ListenAddr:     DefaultListenAddr,
		LogLevel:       DefaultLogLevel,
		Backend:        DefaultBackend,
		AllowedOrigins: []string{},
	}
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/pipd/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "pipd", "config.yaml"), nil
}

// NewManager loads configFile, or the default path when it is empty. A
// missing file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	m := &Manager{configPath: path}

	if err := m.load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		m.config = Defaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Str("listen_addr", m.config.ListenAddr).
		Str("backend", m.config.Backend).
		Msg("Config loaded")

	return m, nil
}

// load reads the configuration from disk. Empty fields take their defaults.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	normalize(cfg)

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

func normalize(cfg *Config) {
	d := Defaults()
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = d.ListenAddr
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = d.LogLevel
	}
	if strings.TrimSpace(cfg.Backend) == "" {
		cfg.Backend = d.Backend
	}
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{}
	}
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg := *m.config
	cfg.AllowedOrigins = append([]string{}, m.config.AllowedOrigins...)
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	cfg := m.Get()

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// Override replaces fields for this run only; nothing is written to disk.
// Empty values are ignored.
func (m *Manager) Override(listenAddr, logLevel, backend string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if listenAddr != "" {
		m.config.ListenAddr = listenAddr
	}
	if logLevel != "" {
		m.config.LogLevel = logLevel
	}
	if backend != "" {
		m.config.Backend = backend
	}
}

// Keys lists the settable configuration keys.
func Keys() []string {
	return []string{"listen_addr", "log_level", "log_pretty", "backend", "allowed_origins"}
}

// Values returns the configuration as a key/value map.
func (m *Manager) Values() (map[string]any, error) {
	var out map[string]any
	if err := mapstructure.Decode(m.Get(), &out); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}

// Lookup returns a single configuration value.
func (m *Manager) Lookup(key string) (any, error) {
	values, err := m.Values()
	if err != nil {
		return nil, err
	}
	v, ok := values[key]
	if !ok {
		return nil, fmt.Errorf("configuration key not found: %s", key)
	}
	return v, nil
}

// Set validates and stores one value, then saves the file.
// allowed_origins takes a comma separated list.
func (m *Manager) Set(key, value string) error {
	m.mu.Lock()
	switch key {
	case "listen_addr":
		if _, _, err := net.SplitHostPort(value); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("invalid listen address %q: %w", value, err)
		}
		m.config.ListenAddr = value
	case "log_level":
		validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[value] {
			m.mu.Unlock()
			return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", value)
		}
		m.config.LogLevel = value
	case "log_pretty":
		b, err := strconv.ParseBool(value)
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("invalid boolean: %s (use: true or false)", value)
		}
		m.config.LogPretty = b
	case "backend":
		m.config.Backend = strings.ToLower(strings.TrimSpace(value))
	case "allowed_origins":
		origins := []string{}
		for _, o := range strings.Split(value, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		m.config.AllowedOrigins = origins
	default:
		m.mu.Unlock()
		return fmt.Errorf("unknown configuration key: %s (use one of: %s)", key, strings.Join(Keys(), ", "))
	}
	m.mu.Unlock()

	return m.Save()
}

// GetConfigPath returns the config file path
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// Watch reloads the file whenever it changes and calls onChange with the
// new configuration, until ctx is cancelled. The parent directory is watched
// so that editors that replace the file on save are handled too.
func (m *Manager) Watch(ctx context.Context, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(m.configPath)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	log := logger.WithComponent("config")
	target := filepath.Clean(m.configPath)

	go func() {
		defer w.Close()

		// coalesce the burst of events a single save produces
		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				debounce = time.After(100 * time.Millisecond)

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("Config watcher error")

			case <-debounce:
				debounce = nil
				if err := m.load(); err != nil {
					log.Warn().Err(err).Str("path", m.configPath).Msg("Failed to reload config")
					continue
				}
				log.Info().Str("path", m.configPath).Msg("Config reloaded")
				if onChange != nil {
					onChange(m.Get())
				}
			}
		}
	}()
	return nil
}
