package systems

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu/gputest"
	"github.com/spaghettifunk/anima-core/engine/renderer/metadata"
)

func checker(w, h uint32) *metadata.ImageResourceData {
	px := make([]uint8, w*h*4)
	for i := range px {
		px[i] = uint8(i)
	}
	return &metadata.ImageResourceData{ChannelCount: 4, Width: w, Height: h, Pixels: px}
}

func TestTextureUploadPadsRows(t *testing.T) {
	f := newFixture(t, 4096)
	ts, err := NewTextureSystem(f.dev, f.ring, f.uploader, f.assets)
	require.NoError(t, err)
	img := checker(3, 2)
	f.assets.images["checker"] = img

	tex, err := ts.Load("checker")
	require.NoError(t, err)

	assert.Equal(t, uint32(3), tex.Width)
	assert.True(t, tex.HasAlpha)
	assert.Equal(t, uint32(1), tex.Generation)

	handle := tex.Handle.(*gputest.Texture)
	assert.Equal(t, img.Pixels, handle.Bytes())
	assert.Equal(t, gpu.ResourceStateShaderResource, handle.State())
	// two rows at a 256 byte pitch
	assert.Equal(t, uint64(512), f.uploader.Staging().Offset())
	assert.Empty(t, f.dev.Violations())
}

func TestTextureReloadReplacesHandle(t *testing.T) {
	f := newFixture(t, 4096)
	ts, err := NewTextureSystem(f.dev, f.ring, f.uploader, f.assets)
	require.NoError(t, err)
	f.assets.images["checker"] = checker(2, 2)

	first, err := ts.Load("checker")
	require.NoError(t, err)
	oldHandle := first.Handle.(*gputest.Texture)
	id := first.ID

	assert.True(t, ts.OnAssetChanged("checker"))
	assert.Equal(t, id, first.ID)
	assert.Equal(t, uint32(2), first.Generation)
	assert.True(t, oldHandle.Released())
	assert.Equal(t, 1, f.dev.Live(gputest.KindTexture))

	require.NoError(t, ts.Shutdown())
	assert.Equal(t, 0, f.dev.Live(gputest.KindTexture))
	assert.Empty(t, f.dev.Violations())
}

func TestTextureRejectsShortPixels(t *testing.T) {
	f := newFixture(t, 4096)
	ts, err := NewTextureSystem(f.dev, f.ring, f.uploader, f.assets)
	require.NoError(t, err)

	img := checker(4, 4)
	img.Pixels = img.Pixels[:10]
	_, err = ts.Upload("short", img)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	assert.Equal(t, 0, f.dev.Live(gputest.KindTexture))

	_, err = ts.Load("triangle")
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestTextureCreateFailure(t *testing.T) {
	f := newFixture(t, 4096)
	ts, err := NewTextureSystem(f.dev, f.ring, f.uploader, f.assets)
	require.NoError(t, err)

	f.dev.FailNext(gputest.KindTexture, 1)
	_, err = ts.Upload("checker", checker(2, 2))
	assert.True(t, errors.Is(err, core.ErrDeviceResourceExhausted))
}
