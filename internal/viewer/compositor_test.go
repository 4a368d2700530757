package viewer

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCompositor_ToggleTwiceIsNoOp(t *testing.T) {
	c := NewCompositor(DefaultLayers(), 60, 0)
	before := c.Layers()

	assert.True(t, c.ToggleLayer("rpe"))
	mid := c.Layers()
	assert.False(t, mid[1].Active)
	assert.True(t, mid[0].Active, "other layers unaffected")
	assert.True(t, mid[2].Active, "other layers unaffected")

	assert.True(t, c.ToggleLayer("rpe"))
	assert.Equal(t, before, c.Layers())
}

func TestCompositor_ToggleUnknownLayer(t *testing.T) {
	c := NewCompositor(DefaultLayers(), 60, 0)
	before := c.Layers()
	assert.False(t, c.ToggleLayer("choroid"))
	assert.Equal(t, before, c.Layers())
}

func TestCompositor_AddLayerKeepsOrder(t *testing.T) {
	c := NewCompositor(DefaultLayers(), 60, 0)
	c.AddLayer(Layer{ID: "fluid", Name: "dup", Active: false})
	c.AddLayer(Layer{ID: "drusen", Name: "Drusen", Active: true})
	ls := c.Layers()
	assert.Len(t, ls, 4)
	assert.Equal(t, "Fluid", ls[0].Name)
	assert.Equal(t, "drusen", ls[3].ID)
}

func TestCompositor_OpacityClamped(t *testing.T) {
	c := NewCompositor(nil, 150, 0)
	assert.Equal(t, 100, c.Opacity())
	c.SetOpacity(-3)
	assert.Equal(t, 0, c.Opacity())
}

func TestCompositor_FitSize(t *testing.T) {
	c := NewCompositor(nil, 60, 100)
	assert.Equal(t, image.Rect(0, 0, 50, 100), c.FitSize(image.Rect(0, 0, 100, 200)))
	assert.Equal(t, image.Rect(0, 0, 80, 40), c.FitSize(image.Rect(0, 0, 80, 40)))
}

func TestCompositor_RenderScreenBlend(t *testing.T) {
	base := solid(4, 4, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	mask := solid(4, 4, color.RGBA{R: 255, G: 0, B: 0, A: 255})

	c := NewCompositor([]Layer{{ID: "lesion", Name: "Lesion", Active: true}}, 100, 0)
	out := c.Render(base, map[string]image.Image{"lesion": mask})
	px := out.RGBAAt(1, 1)
	// screen(100, 255) = 255; screen(100, 0) = 100
	assert.Equal(t, uint8(255), px.R)
	assert.Equal(t, uint8(100), px.G)

	c.SetOpacity(50)
	px = c.Render(base, map[string]image.Image{"lesion": mask}).RGBAAt(1, 1)
	assert.InDelta(t, 178, int(px.R), 1)
	assert.Equal(t, uint8(100), px.G)

	c.ToggleLayer("lesion")
	px = c.Render(base, map[string]image.Image{"lesion": mask}).RGBAAt(1, 1)
	assert.Equal(t, uint8(100), px.R, "inactive layer not drawn")
}

func TestCompositor_RenderZeroOpacityAndMissingMask(t *testing.T) {
	base := solid(2, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	mask := solid(2, 2, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	c := NewCompositor(DefaultLayers(), 0, 0)
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, c.Render(base, map[string]image.Image{"fluid": mask}).RGBAAt(0, 0))

	c.SetOpacity(100)
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, c.Render(base, nil).RGBAAt(0, 0))
}

func TestCompositor_RenderBoundsHeight(t *testing.T) {
	base := solid(40, 200, color.RGBA{A: 255})
	c := NewCompositor(nil, 60, 100)
	out := c.Render(base, nil)
	assert.Equal(t, image.Rect(0, 0, 20, 100), out.Bounds())
}
