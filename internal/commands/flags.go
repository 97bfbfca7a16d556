package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ConserveLee/farmbot/internal/config"
	"github.com/ConserveLee/farmbot/internal/logger"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
	Log    zerolog.Logger
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "farmbot", "config.yaml")
}

// Level is the effective log level: the flag wins over the config file.
func (f *Flags) Level() string {
	if f.LogLevel != "" {
		return f.LogLevel
	}
	if f.Config != nil && f.Config.Log.Level != "" {
		return f.Config.Log.Level
	}
	return "info"
}

// File is the effective log file; empty logs to stderr.
func (f *Flags) File() string {
	if f.LogFile != "" {
		return f.LogFile
	}
	if f.Config != nil {
		return f.Config.Log.File
	}
	return ""
}

// Setup loads the config and builds the logger. It runs in the root
// command's Before hook; the returned func closes the log file.
func (f *Flags) Setup() (func(), error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	f.Config = cfg

	l, closer, err := logger.New(f.Level(), f.File())
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	f.Log = l
	log.Logger = l

	if len(cfg.Dropped) > 0 {
		l.Warn().Str("keys", strings.Join(cfg.Dropped, ", ")).Str("config", f.ConfigPath).Msg("ignoring unknown config keys")
	}
	return closer, nil
}
