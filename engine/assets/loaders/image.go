package loaders

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	m "math"
	"os"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/metadata"
)

// Gamma of the sRGB-ish source images.
const DisplayGamma = 2.2

// linearTable maps an 8-bit gamma encoded value to its 8-bit linear value.
var linearTable = func() (t [256]uint8) {
	for i := range t {
		t[i] = uint8(m.Pow(float64(i)/255.0, DisplayGamma) * 255.0)
	}
	return t
}()

// ImageLoader decodes PNG, JPEG, BMP and TIFF files into RGBA8 pixels.
type ImageLoader struct{}

func (il *ImageLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	p := &metadata.ImageResourceParams{Linearize: true}
	if typed, ok := params.(*metadata.ImageResourceParams); ok && typed != nil {
		p = typed
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, core.Wrap(err, core.ErrIO, "opening image %s", path)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, core.Wrap(err, core.ErrParse, "decoding image %s", path)
	}

	data := ToRGBA(src, p)
	core.LogDebug("decoded %s image %s: %dx%d, %d channels", format, path, data.Width, data.Height, data.ChannelCount)

	return &metadata.Resource{
		Name:     path,
		FullPath: path,
		Type:     metadata.ResourceTypeImage,
		DataSize: uint64(len(data.Pixels)),
		Data:     data,
	}, nil
}

func (il *ImageLoader) Unload(r *metadata.Resource) error {
	r.Data = nil
	return nil
}

// ToRGBA converts any image to tightly packed non-premultiplied RGBA8. Images
// without alpha get an opaque alpha channel and report three channels.
func ToRGBA(src image.Image, p *metadata.ImageResourceParams) *metadata.ImageResourceData {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	channels := uint8(4)
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		channels = 3
	}

	w, h := b.Dx(), b.Dy()
	pixels := make([]uint8, w*h*4)
	for y := 0; y < h; y++ {
		sy := y
		if p.FlipY {
			sy = h - 1 - y
		}
		copy(pixels[y*w*4:(y+1)*w*4], dst.Pix[sy*dst.Stride:sy*dst.Stride+w*4])
	}

	if p.Linearize {
		for i := 0; i < len(pixels); i += 4 {
			pixels[i] = linearTable[pixels[i]]
			pixels[i+1] = linearTable[pixels[i+1]]
			pixels[i+2] = linearTable[pixels[i+2]]
		}
	}

	return &metadata.ImageResourceData{
		ChannelCount: channels,
		Width:        uint32(w),
		Height:       uint32(h),
		Pixels:       pixels,
	}
}
