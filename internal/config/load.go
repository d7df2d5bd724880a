package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Validation errors.
var (
	ErrInvalidDispScale = errors.New("scene.disp_scale must be positive")
	ErrInvalidStride    = errors.New("scene.max_placement_stride must be at least 2")
	ErrInvalidView      = errors.New("scene.default_view must be realism or data")
	ErrTooManyTextures  = errors.New("scene.terrain_textures holds at most 5 entries")
	ErrNoAssetSource    = errors.New("one of server.base_url or server.asset_dir is required")
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		// --save-config may name a file that does not exist yet.
		err := loadFromFile(cfg, configPath)
		if err != nil && !(SaveRequested() && errors.Is(err, fs.ErrNotExist)) {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the scene pipeline cannot work with.
func (c *Config) Validate() error {
	if c.Scene.DispScale <= 0 {
		return ErrInvalidDispScale
	}
	if c.Scene.MaxPlacementStride < 2 {
		return ErrInvalidStride
	}
	if c.Scene.DefaultView != "realism" && c.Scene.DefaultView != "data" {
		return fmt.Errorf("%w: %q", ErrInvalidView, c.Scene.DefaultView)
	}
	if len(c.Scene.TerrainTextures) > 5 {
		return ErrTooManyTextures
	}
	if c.Server.BaseURL == "" && c.Server.AssetDir == "" {
		return ErrNoAssetSource
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "LandsimViewer")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "LandsimViewer")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "landsim-viewer")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "landsim-viewer")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
