package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// UserConfigDir is the directory for user-level config.
	UserConfigDir = ".config/acp"
	// UserConfigFile is the name of the user-level config file.
	UserConfigFile = "config.yaml"
)

// ProjectConfigFiles are the project config names, in lookup order.
var ProjectConfigFiles = []string{".acp.config.yaml", "acp.config.yaml", ".acp.config.json"}

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
	// UserPath overrides the user config location. Empty uses the home
	// directory; "-" disables the user layer.
	UserPath string
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/acp/config.yaml)
// 3. Project config in root
func (l *Loader) Load(root string) (*Config, error) {
	config := DefaultConfig()

	if userPath := l.userConfigPath(); userPath != "" {
		if userConfig, err := parseFile(userPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userPath))
			config.Merge(userConfig)
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userPath), slog.String("error", err.Error()))
		}
	}

	if projectPath := FindProjectConfig(root); projectPath != "" {
		projectConfig, err := parseFile(projectPath)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded project config", slog.String("path", projectPath))
		config.Merge(projectConfig)
	} else {
		l.logger.Debug("No project config found", slog.String("root", root))
	}

	if config.Project.Name == "" {
		if abs, err := filepath.Abs(root); err == nil {
			config.Project.Name = filepath.Base(abs)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (l *Loader) userConfigPath() string {
	switch l.UserPath {
	case "-":
		return ""
	case "":
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, UserConfigDir, UserConfigFile)
	}
	return l.UserPath
}

// FindProjectConfig returns the first project config file present in root,
// or "".
func FindProjectConfig(root string) string {
	for _, name := range ProjectConfigFiles {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
