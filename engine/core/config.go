package core

import (
	"bytes"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"start_pos_y"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"start_width"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"start_height"`
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

type RendererConfig struct {
	// Size in bytes of the host-visible upload buffer.
	StagingCapacity uint64 `toml:"staging_capacity"`
	// Size in bytes of the device-local geometry buffer.
	GeometryCapacity uint64 `toml:"geometry_capacity"`
	// Byte alignment of every sub-allocation. Must be a power of two.
	Alignment uint64 `toml:"alignment"`
	// Upper bound in milliseconds for a single blocking fence wait.
	FenceTimeoutMS   uint32 `toml:"fence_timeout_ms"`
	EnableValidation bool   `toml:"enable_validation"`
}

func (r RendererConfig) FenceTimeout() time.Duration {
	return time.Duration(r.FenceTimeoutMS) * time.Millisecond
}

type AssetsConfig struct {
	Root      string   `toml:"root"`
	Watch     bool     `toml:"watch"`
	Meshes    []string `toml:"meshes"`
	Texture   string   `toml:"texture"`
	InvertUVs bool     `toml:"invert_uvs"`
	Workers   int      `toml:"workers"`
}

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Logging     LoggingConfig     `toml:"logging"`
	Renderer    RendererConfig    `toml:"renderer"`
	Assets      AssetsConfig      `toml:"assets"`
}

// DefaultConfig mirrors anima.toml.
func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationConfig{
			StartPosX:   100,
			StartPosY:   100,
			StartWidth:  1280,
			StartHeight: 720,
			Name:        "Anima",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Renderer: RendererConfig{
			StagingCapacity:  16 << 20,
			GeometryCapacity: 64 << 20,
			Alignment:        256,
			FenceTimeoutMS:   5000,
			EnableValidation: false,
		},
		Assets: AssetsConfig{
			Root:      "assets",
			Watch:     true,
			InvertUVs: true,
			Workers:   2,
		},
	}
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			LogWarn("config file %s not found, using defaults", path)
			return cfg, cfg.Validate()
		}
		return nil, Wrap(err, ErrIO, "reading config %s", path)
	}
	return ParseConfig(data, cfg)
}

// ParseConfig decodes data on top of base. Unknown keys are rejected.
func ParseConfig(data []byte, base *Config) (*Config, error) {
	if base == nil {
		base = DefaultConfig()
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(base); err != nil {
		return nil, Wrap(err, ErrParse, "decoding config")
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}
	return base, nil
}

func (c *Config) Validate() error {
	r := c.Renderer
	if r.Alignment == 0 || r.Alignment&(r.Alignment-1) != 0 {
		return errors.Mark(errors.Newf("renderer.alignment must be a power of two, got %d", r.Alignment), ErrInvalidArgument)
	}
	if r.StagingCapacity == 0 || r.GeometryCapacity == 0 {
		return errors.Mark(errors.New("renderer capacities must be greater than zero"), ErrInvalidArgument)
	}
	if c.Application.StartWidth == 0 || c.Application.StartHeight == 0 {
		return errors.Mark(errors.New("application window size must be greater than zero"), ErrInvalidArgument)
	}
	if c.Assets.Workers < 1 {
		return errors.Mark(errors.Newf("assets.workers must be at least 1, got %d", c.Assets.Workers), ErrInvalidArgument)
	}
	return nil
}

// Encode renders the configuration back to TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
