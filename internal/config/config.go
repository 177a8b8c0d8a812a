package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/opus-domini/activityboard/internal/validate"
)

const (
	DefaultServer     = "http://127.0.0.1:8000"
	DefaultListenAddr = "127.0.0.1:4050"
	DefaultTimeout    = 10 * time.Second
	DefaultWatch      = "@every 30s"
	DefaultLogLevel   = "info"
	FileName          = "config.toml"
)

var (
	osUserHomeDir = os.UserHomeDir
	osCurrentUser = user.Current
	osGeteuid     = os.Geteuid
	osTempDir     = os.TempDir
)

type Config struct {
	Server         string
	Token          string
	Timeout        time.Duration
	ListenAddr     string
	AllowedOrigins []string
	Unregister     bool
	Watch          string
	DataDir        string
	LogLevel       string
}

// Path returns the config file location inside DataDir.
func (c Config) Path() string {
	return filepath.Join(c.DataDir, FileName)
}

const defaultConfigContent = `# Activity board configuration
# All values shown are defaults. Uncomment and edit to customize.

# Base URL of the activities server.
# Environment variable: ACTIVITYBOARD_SERVER
# server = "http://127.0.0.1:8000"

# Bearer token sent to the activities server, if it requires one.
# Environment variable: ACTIVITYBOARD_TOKEN
# token = ""

# Per-request timeout.
# Environment variable: ACTIVITYBOARD_TIMEOUT
# timeout = "10s"

# Address the web front-end listens on.
# Environment variable: ACTIVITYBOARD_LISTEN
# listen = "127.0.0.1:4050"

# Extra origins allowed to post to the web front-end.
# Environment variable: ACTIVITYBOARD_ALLOWED_ORIGINS (comma-separated)
# allowed_origins = []

# Show unregister controls.
# Environment variable: ACTIVITYBOARD_UNREGISTER
# unregister = true

# Refresh schedule for "activityboard watch" (cron expression or @every).
# Environment variable: ACTIVITYBOARD_WATCH
# watch = "@every 30s"

# Log level: debug, info, warn, error.
# Environment variable: ACTIVITYBOARD_LOG_LEVEL
# log_level = "info"
`

type fileConfig struct {
	Server         string        `toml:"server"`
	Token          string        `toml:"token"`
	Timeout        time.Duration `toml:"timeout"`
	Listen         string        `toml:"listen"`
	AllowedOrigins []string      `toml:"allowed_origins"`
	Unregister     *bool         `toml:"unregister"`
	Watch          string        `toml:"watch"`
	LogLevel       string        `toml:"log_level"`
}

type envConfig struct {
	DataDir        string        `env:"ACTIVITYBOARD_DATA_DIR"`
	Server         string        `env:"ACTIVITYBOARD_SERVER"`
	Token          string        `env:"ACTIVITYBOARD_TOKEN"`
	Timeout        time.Duration `env:"ACTIVITYBOARD_TIMEOUT"`
	Listen         string        `env:"ACTIVITYBOARD_LISTEN"`
	AllowedOrigins []string      `env:"ACTIVITYBOARD_ALLOWED_ORIGINS" envSeparator:","`
	Unregister     string        `env:"ACTIVITYBOARD_UNREGISTER"`
	Watch          string        `env:"ACTIVITYBOARD_WATCH"`
	LogLevel       string        `env:"ACTIVITYBOARD_LOG_LEVEL"`
}

// Load resolves configuration: defaults, then config.toml in the data dir,
// then environment variables. A commented default file is written when none
// exists.
func Load() (Config, error) {
	cfg := Config{
		Server:     DefaultServer,
		Timeout:    DefaultTimeout,
		ListenAddr: DefaultListenAddr,
		Unregister: true,
		Watch:      DefaultWatch,
		LogLevel:   DefaultLogLevel,
	}

	var fromEnv envConfig
	if err := env.Parse(&fromEnv); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if v := strings.TrimSpace(fromEnv.DataDir); v != "" {
		cfg.DataDir = v
	} else {
		cfg.DataDir = defaultDataDir()
	}

	configPath := cfg.Path()
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		writeDefaultConfig(configPath)
	}

	file, err := loadFile(configPath)
	if err != nil {
		return cfg, err
	}
	applyFile(&cfg, file)
	if err := applyEnv(&cfg, fromEnv); err != nil {
		return cfg, err
	}

	cfg.Server = strings.TrimRight(cfg.Server, "/")
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.Timeout <= 0 {
		return cfg, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	if err := validate.CronExpression(cfg.Watch); err != nil {
		return cfg, fmt.Errorf("watch: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the TOML config file. A missing file yields zero values.
func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileConfig{}, nil
		}
		return fileConfig{}, fmt.Errorf("read %s: %w", path, err)
	}
	return fc, nil
}

func applyFile(cfg *Config, fc fileConfig) {
	if v := strings.TrimSpace(fc.Server); v != "" {
		cfg.Server = v
	}
	if v := strings.TrimSpace(fc.Token); v != "" {
		cfg.Token = v
	}
	if fc.Timeout != 0 {
		cfg.Timeout = fc.Timeout
	}
	if v := strings.TrimSpace(fc.Listen); v != "" {
		cfg.ListenAddr = v
	}
	if origins := cleanList(fc.AllowedOrigins); len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}
	if fc.Unregister != nil {
		cfg.Unregister = *fc.Unregister
	}
	if v := strings.TrimSpace(fc.Watch); v != "" {
		cfg.Watch = v
	}
	if v := strings.TrimSpace(fc.LogLevel); v != "" {
		cfg.LogLevel = v
	}
}

func applyEnv(cfg *Config, ec envConfig) error {
	if v := strings.TrimSpace(ec.Server); v != "" {
		cfg.Server = v
	}
	if v := strings.TrimSpace(ec.Token); v != "" {
		cfg.Token = v
	}
	if ec.Timeout != 0 {
		cfg.Timeout = ec.Timeout
	}
	if v := strings.TrimSpace(ec.Listen); v != "" {
		cfg.ListenAddr = v
	}
	if origins := cleanList(ec.AllowedOrigins); len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}
	if v := strings.TrimSpace(ec.Unregister); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ACTIVITYBOARD_UNREGISTER: %w", err)
		}
		cfg.Unregister = enabled
	}
	if v := strings.TrimSpace(ec.Watch); v != "" {
		cfg.Watch = v
	}
	if v := strings.TrimSpace(ec.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

func defaultDataDir() string {
	if home, err := osUserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
		return filepath.Join(home, ".activityboard")
	}
	if u, err := osCurrentUser(); err == nil && strings.TrimSpace(u.HomeDir) != "" {
		return filepath.Join(u.HomeDir, ".activityboard")
	}
	return filepath.Join(osTempDir(), fmt.Sprintf("activityboard-%d", osGeteuid()))
}

// writeDefaultConfig creates the config file with commented-out defaults.
// Best-effort: errors are silently ignored.
func writeDefaultConfig(path string) {
	_ = os.MkdirAll(filepath.Dir(path), 0o700)
	_ = os.WriteFile(path, []byte(defaultConfigContent), 0o600) //nolint:gosec // fixed content, not user input
}

func cleanList(in []string) []string {
	var out []string
	for _, p := range in {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
