package systems

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/math"
	"github.com/spaghettifunk/anima-core/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-core/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-core/engine/renderer/submission"
)

type TextureSystem struct {
	device   gpu.Device
	ring     *submission.Ring
	uploader *Uploader
	assets   AssetSource

	textures map[string]*metadata.Texture
}

func NewTextureSystem(device gpu.Device, ring *submission.Ring, uploader *Uploader, assets AssetSource) (*TextureSystem, error) {
	return &TextureSystem{
		device:   device,
		ring:     ring,
		uploader: uploader,
		assets:   assets,
		textures: make(map[string]*metadata.Texture),
	}, nil
}

/**
 * @brief Decodes the named image asset and uploads it into a new device texture.
 * Loading an already resident name replaces its texture and bumps the generation.
 */
func (ts *TextureSystem) Load(name string) (*metadata.Texture, error) {
	res, err := ts.assets.LoadAsset(name, &metadata.ImageResourceParams{Linearize: true})
	if err != nil {
		return nil, err
	}
	defer ts.assets.UnloadAsset(res)

	img, ok := res.Data.(*metadata.ImageResourceData)
	if !ok {
		return nil, errors.Mark(errors.Newf("asset %q is a %s, not an image", name, res.Type), core.ErrInvalidArgument)
	}
	return ts.Upload(name, img)
}

// Upload copies RGBA8 pixels into a new sampled texture. Rows are re-laid out at
// the device's pitch alignment in the staging buffer.
func (ts *TextureSystem) Upload(name string, img *metadata.ImageResourceData) (*metadata.Texture, error) {
	if img.Width == 0 || img.Height == 0 {
		return nil, errors.Mark(errors.Newf("texture %q has no pixels", name), core.ErrInvalidArgument)
	}
	row := uint64(img.Width) * 4
	if uint64(len(img.Pixels)) < row*uint64(img.Height) {
		return nil, errors.Mark(errors.Newf("texture %q: %d bytes for %dx%d pixels", name, len(img.Pixels), img.Width, img.Height), core.ErrInvalidArgument)
	}
	pitch := math.AlignUp(row, ts.device.TexturePitchAlignment())
	data := make([]byte, pitch*uint64(img.Height))
	for y := uint64(0); y < uint64(img.Height); y++ {
		copy(data[y*pitch:y*pitch+row], img.Pixels[y*row:(y+1)*row])
	}

	handle, err := ts.device.CreateTexture(gpu.TextureDesc{
		Name:         name,
		Width:        img.Width,
		Height:       img.Height,
		Format:       gpu.FormatR8G8B8A8Unorm,
		Usage:        gpu.TextureUsageSampled,
		InitialState: gpu.ResourceStateCommon,
	})
	if err != nil {
		return nil, core.Wrap(err, core.ErrDeviceResourceExhausted, "creating texture %q", name)
	}

	staged, err := ts.uploader.Stage(data)
	if err != nil {
		handle.Release()
		return nil, err
	}
	s, err := ts.ring.Acquire()
	if err != nil {
		handle.Release()
		return nil, err
	}
	cl := s.List
	cl.TransitionBarrier(handle, gpu.ResourceStateCommon, gpu.ResourceStateCopyDest)
	cl.CopyBufferToTexture(handle, staged[0].Buffer, staged[0].Offset, pitch)
	cl.TransitionBarrier(handle, gpu.ResourceStateCopyDest, gpu.ResourceStateShaderResource)
	if err := cl.Close(); err != nil {
		ts.ring.Discard(s)
		handle.Release()
		return nil, errors.Wrapf(err, "recording upload of texture %q", name)
	}
	if err := ts.ring.Submit(s); err != nil {
		handle.Release()
		return nil, errors.Wrapf(err, "submitting upload of texture %q", name)
	}

	t, ok := ts.textures[name]
	if !ok {
		t = &metadata.Texture{ID: uuid.New(), Name: name}
		ts.textures[name] = t
	} else if t.Handle != nil {
		// the old texture may still be sampled by submitted work
		if err := ts.ring.WaitIdle(); err != nil {
			return nil, err
		}
		t.Handle.Release()
	}
	t.Width = img.Width
	t.Height = img.Height
	t.ChannelCount = img.ChannelCount
	t.HasAlpha = img.ChannelCount == 4
	t.Handle = handle
	t.Generation++

	core.LogDebug("texture %q (generation %d): %dx%d, pitch %d", name, t.Generation, t.Width, t.Height, pitch)
	return t, nil
}

// OnAssetChanged reloads the texture if it is resident.
func (ts *TextureSystem) OnAssetChanged(name string) bool {
	if _, ok := ts.textures[name]; !ok {
		return false
	}
	if _, err := ts.Load(name); err != nil {
		core.LogError("failed to reload texture %q: %s", name, err)
		return false
	}
	return true
}

func (ts *TextureSystem) Get(name string) (*metadata.Texture, bool) {
	t, ok := ts.textures[name]
	return t, ok
}

func (ts *TextureSystem) Count() int {
	return len(ts.textures)
}

func (ts *TextureSystem) Shutdown() error {
	if err := ts.ring.WaitIdle(); err != nil {
		return err
	}
	for name, t := range ts.textures {
		if t.Handle != nil {
			t.Handle.Release()
		}
		delete(ts.textures, name)
	}
	return nil
}
