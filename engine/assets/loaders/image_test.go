package loaders

import (
	"image"
	"image/color"
	m "math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/anima-core/engine/renderer/metadata"
)

func TestToRGBALinearizes(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 1))
	src.Set(0, 0, color.RGBA{R: 0, G: 128, B: 255, A: 255})
	src.Set(1, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	src.Set(2, 0, color.RGBA{R: 64, G: 64, B: 64, A: 255})

	out := ToRGBA(src, &metadata.ImageResourceParams{Linearize: true})

	want128 := uint8(m.Pow(128.0/255.0, DisplayGamma) * 255.0)
	assert.Equal(t, []uint8{0, want128, 255, 255}, out.Pixels[0:4])
	assert.Equal(t, []uint8{255, 255, 255, 255}, out.Pixels[4:8])
	assert.Equal(t, uint8(3), out.ChannelCount, "opaque image reports RGB")
}

func TestToRGBAKeepsAlphaAndFlips(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 4})
	src.SetNRGBA(0, 1, color.NRGBA{R: 5, G: 6, B: 7, A: 8})

	out := ToRGBA(src, &metadata.ImageResourceParams{FlipY: true})
	assert.Equal(t, uint8(4), out.ChannelCount)
	assert.Equal(t, []uint8{5, 6, 7, 8, 1, 2, 3, 4}, out.Pixels)
}

func TestToRGBAGrayIsOpaque(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 1, 1))
	src.SetGray(0, 0, color.Gray{Y: 200})

	out := ToRGBA(src, &metadata.ImageResourceParams{})
	assert.Equal(t, []uint8{200, 200, 200, 255}, out.Pixels)
	assert.Equal(t, uint8(3), out.ChannelCount)
}
