package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigOverridesDefaults(t *testing.T) {
	data := []byte(`
[application]
name = "viewer"
start_width = 640

[renderer]
alignment = 512
fence_timeout_ms = 250

[assets]
meshes = ["a.obj", "b.obj"]
invert_uvs = false
`)
	cfg, err := ParseConfig(data, nil)
	require.NoError(t, err)

	assert.Equal(t, "viewer", cfg.Application.Name)
	assert.Equal(t, uint32(640), cfg.Application.StartWidth)
	assert.Equal(t, uint32(720), cfg.Application.StartHeight)
	assert.Equal(t, uint64(512), cfg.Renderer.Alignment)
	assert.Equal(t, uint64(16<<20), cfg.Renderer.StagingCapacity)
	assert.Equal(t, int64(250), cfg.Renderer.FenceTimeout().Milliseconds())
	assert.Equal(t, []string{"a.obj", "b.obj"}, cfg.Assets.Meshes)
	assert.False(t, cfg.Assets.InvertUVs)
}

func TestParseConfigRejects(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		sentinel error
	}{
		{"unknown key", "[renderer]\nbogus = 1\n", ErrParse},
		{"malformed", "[renderer\n", ErrParse},
		{"alignment not power of two", "[renderer]\nalignment = 100\n", ErrInvalidArgument},
		{"zero alignment", "[renderer]\nalignment = 0\n", ErrInvalidArgument},
		{"zero staging", "[renderer]\nstaging_capacity = 0\n", ErrInvalidArgument},
		{"zero workers", "[assets]\nworkers = 0\n", ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data), nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigRoundTripsThroughFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Assets.Meshes = []string{"models/cube.obj"}
	data, err := cfg.Encode()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "anima.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
