// Package config handles viewer configuration loading and management.
package config

import "time"

// Config holds all viewer settings.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Loader   LoaderConfig   `yaml:"loader"`
	Scene    SceneConfig    `yaml:"scene"`
	Graphics GraphicsConfig `yaml:"graphics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig describes where study-area assets come from.
type ServerConfig struct {
	BaseURL  string        `yaml:"base_url"`
	AssetDir string        `yaml:"asset_dir"` // Serve assets from disk instead of BaseURL
	Timeout  time.Duration `yaml:"timeout"`
}

// LoaderConfig tunes the asset loader.
type LoaderConfig struct {
	MaxInFlight int `yaml:"max_in_flight"` // 0 = no cap
}

// SceneConfig holds scene-building parameters.
type SceneConfig struct {
	DispScale          float32  `yaml:"disp_scale"`
	MaxPlacementStride int      `yaml:"max_placement_stride"`
	Seed               uint64   `yaml:"seed"` // 0 = seed from the clock
	DefaultView        string   `yaml:"default_view"`
	TerrainTextures    []string `yaml:"terrain_textures"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://127.0.0.1:8000",
			Timeout: 30 * time.Second,
		},
		Loader: LoaderConfig{
			MaxInFlight: 0,
		},
		Scene: SceneConfig{
			DispScale:          0.25,
			MaxPlacementStride: 75,
			DefaultView:        "realism",
			TerrainTextures:    []string{"dirt", "grass", "rock", "snow", "sand"},
		},
		Graphics: GraphicsConfig{
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
