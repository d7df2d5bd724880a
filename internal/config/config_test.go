package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.BaseURL != "http://127.0.0.1:8000" {
		t.Errorf("expected default base url, got %s", cfg.Server.BaseURL)
	}
	if cfg.Server.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.Server.Timeout)
	}
	if cfg.Loader.MaxInFlight != 0 {
		t.Errorf("expected uncapped loader, got %d", cfg.Loader.MaxInFlight)
	}
	if cfg.Scene.MaxPlacementStride != 75 {
		t.Errorf("expected stride 75, got %d", cfg.Scene.MaxPlacementStride)
	}
	if cfg.Scene.DefaultView != "realism" {
		t.Errorf("expected realism view, got %s", cfg.Scene.DefaultView)
	}
	if len(cfg.Scene.TerrainTextures) != 5 {
		t.Errorf("expected 5 terrain textures, got %d", len(cfg.Scene.TerrainTextures))
	}
	if cfg.Graphics.Width != 1280 || cfg.Graphics.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", cfg.Graphics.Width, cfg.Graphics.Height)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
server:
  base_url: "https://landsim.example.org"
  timeout: 5s

loader:
  max_in_flight: 8

scene:
  disp_scale: 0.5
  max_placement_stride: 40
  seed: 1234
  default_view: data
  terrain_textures: [grass, rock]

graphics:
  width: 1920
  height: 1080
  vsync: false

logging:
  level: "debug"
  log_file: "viewer.log"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.BaseURL != "https://landsim.example.org" {
		t.Errorf("unexpected base url %s", cfg.Server.BaseURL)
	}
	if cfg.Server.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.Server.Timeout)
	}
	if cfg.Loader.MaxInFlight != 8 {
		t.Errorf("expected max in flight 8, got %d", cfg.Loader.MaxInFlight)
	}
	if cfg.Scene.DispScale != 0.5 {
		t.Errorf("expected disp scale 0.5, got %f", cfg.Scene.DispScale)
	}
	if cfg.Scene.MaxPlacementStride != 40 {
		t.Errorf("expected stride 40, got %d", cfg.Scene.MaxPlacementStride)
	}
	if cfg.Scene.Seed != 1234 {
		t.Errorf("expected seed 1234, got %d", cfg.Scene.Seed)
	}
	if cfg.Scene.DefaultView != "data" {
		t.Errorf("expected data view, got %s", cfg.Scene.DefaultView)
	}
	if len(cfg.Scene.TerrainTextures) != 2 || cfg.Scene.TerrainTextures[1] != "rock" {
		t.Errorf("unexpected terrain textures %v", cfg.Scene.TerrainTextures)
	}
	if cfg.Graphics.Width != 1920 || cfg.Graphics.VSync {
		t.Errorf("unexpected graphics %+v", cfg.Graphics)
	}
	if cfg.Logging.LogFile != "viewer.log" {
		t.Errorf("expected log file 'viewer.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")

	invalidYAML := `
scene:
  disp_scale: not a number
  invalid syntax here
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if err := loadFromFile(Default(), configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if err := loadFromFile(Default(), "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero disp scale", func(c *Config) { c.Scene.DispScale = 0 }, ErrInvalidDispScale},
		{"stride too small", func(c *Config) { c.Scene.MaxPlacementStride = 1 }, ErrInvalidStride},
		{"unknown view", func(c *Config) { c.Scene.DefaultView = "wireframe" }, ErrInvalidView},
		{"six textures", func(c *Config) {
			c.Scene.TerrainTextures = []string{"a", "b", "c", "d", "e", "f"}
		}, ErrTooManyTextures},
		{"no source", func(c *Config) {
			c.Server.BaseURL = ""
			c.Server.AssetDir = ""
		}, ErrNoAssetSource},
		{"asset dir only", func(c *Config) {
			c.Server.BaseURL = ""
			c.Server.AssetDir = "/srv/landsim"
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected valid config, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "server flag",
			setup: func() { *flagServer = "http://10.0.0.5:9000" },
			verify: func(cfg *Config) {
				if cfg.Server.BaseURL != "http://10.0.0.5:9000" {
					t.Errorf("expected overridden base url, got %s", cfg.Server.BaseURL)
				}
			},
			teardown: func() { *flagServer = "" },
		},
		{
			name:  "assets flag",
			setup: func() { *flagAssets = "/data/landsim" },
			verify: func(cfg *Config) {
				if cfg.Server.AssetDir != "/data/landsim" {
					t.Errorf("expected asset dir, got %s", cfg.Server.AssetDir)
				}
			},
			teardown: func() { *flagAssets = "" },
		},
		{
			name:  "seed and view flags",
			setup: func() { *flagSeed = 42; *flagView = "data" },
			verify: func(cfg *Config) {
				if cfg.Scene.Seed != 42 {
					t.Errorf("expected seed 42, got %d", cfg.Scene.Seed)
				}
				if cfg.Scene.DefaultView != "data" {
					t.Errorf("expected data view, got %s", cfg.Scene.DefaultView)
				}
			},
			teardown: func() { *flagSeed = 0; *flagView = "" },
		},
		{
			name:  "width and height flags",
			setup: func() { *flagWidth = 2560; *flagHeight = 1440 },
			verify: func(cfg *Config) {
				if cfg.Graphics.Width != 2560 || cfg.Graphics.Height != 1440 {
					t.Errorf("expected 2560x1440, got %dx%d", cfg.Graphics.Width, cfg.Graphics.Height)
				}
			},
			teardown: func() { *flagWidth = 0; *flagHeight = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
graphics:
  width: 1600
  height: 900
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Graphics.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Graphics.Height)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Scene.Seed = 99
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.Scene.Seed != 99 {
		t.Errorf("expected seed 99 after reload, got %d", loaded.Scene.Seed)
	}
}

func TestPersistUsesConfigFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.yaml")
	*flagConfig = path
	defer func() { *flagConfig = "" }()

	cfg := Default()
	cfg.Loader.MaxInFlight = 6
	written, err := cfg.Persist()
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if written != path {
		t.Errorf("expected %s, got %s", path, written)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.Loader.MaxInFlight != 6 {
		t.Errorf("expected max_in_flight 6, got %d", loaded.Loader.MaxInFlight)
	}
}

func TestLoadForSaveAllowsMissingFile(t *testing.T) {
	*flagConfig = filepath.Join(t.TempDir(), "new.yaml")
	*flagSave = true
	defer func() {
		*flagConfig = ""
		*flagSave = false
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scene.DispScale != Default().Scene.DispScale {
		t.Errorf("expected defaults, got %+v", cfg.Scene)
	}
}
