package viewer

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

const DefaultMaxViewportHeight = 900

// Layer is one toggleable mask overlay.
type Layer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// DefaultLayers are the overlays produced by the segmentation model.
func DefaultLayers() []Layer {
	return []Layer{
		{ID: "fluid", Name: "Fluid", Active: true},
		{ID: "rpe", Name: "RPE layer", Active: true},
		{ID: "lesion", Name: "Lesion region", Active: true},
	}
}

// Compositor keeps the layer set and the shared overlay opacity and renders
// the base scan with every active mask screen-blended on top.
type Compositor struct {
	layers    []Layer
	index     map[string]int
	opacity   int
	maxHeight int
}

func NewCompositor(layers []Layer, opacity, maxHeight int) *Compositor {
	if maxHeight <= 0 {
		maxHeight = DefaultMaxViewportHeight
	}
	c := &Compositor{index: make(map[string]int), maxHeight: maxHeight}
	for _, l := range layers {
		c.AddLayer(l)
	}
	c.SetOpacity(opacity)
	return c
}

// AddLayer registers a layer. A layer already present keeps its position and state.
func (c *Compositor) AddLayer(l Layer) {
	if _, ok := c.index[l.ID]; ok {
		return
	}
	c.index[l.ID] = len(c.layers)
	c.layers = append(c.layers, l)
}

// Layers returns a copy in display order.
func (c *Compositor) Layers() []Layer {
	out := make([]Layer, len(c.layers))
	copy(out, c.layers)
	return out
}

// ToggleLayer flips the active flag of exactly one layer. It reports false
// when the id is unknown, in which case nothing changes.
func (c *Compositor) ToggleLayer(id string) bool {
	i, ok := c.index[id]
	if !ok {
		return false
	}
	c.layers[i].Active = !c.layers[i].Active
	return true
}

func (c *Compositor) Opacity() int { return c.opacity }

// SetOpacity clamps v to [0,100].
func (c *Compositor) SetOpacity(v int) {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	c.opacity = v
}

func (c *Compositor) MaxHeight() int { return c.maxHeight }

// FitSize returns the rendered size of a base image: natural aspect ratio,
// height bounded by the maximum viewport height.
func (c *Compositor) FitSize(b image.Rectangle) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	if h <= c.maxHeight || h == 0 {
		return image.Rect(0, 0, w, h)
	}
	nw := w * c.maxHeight / h
	if nw < 1 {
		nw = 1
	}
	return image.Rect(0, 0, nw, c.maxHeight)
}

// Render draws base and, for every active layer with an entry in masks,
// the mask blended at the shared opacity.
func (c *Compositor) Render(base image.Image, masks map[string]image.Image) *image.RGBA {
	bounds := c.FitSize(base.Bounds())
	dst := image.NewRGBA(bounds)
	if bounds.Eq(base.Bounds().Sub(base.Bounds().Min)) {
		draw.Draw(dst, bounds, base, base.Bounds().Min, draw.Src)
	} else {
		xdraw.CatmullRom.Scale(dst, bounds, base, base.Bounds(), xdraw.Src, nil)
	}
	if c.opacity == 0 {
		return dst
	}
	alpha := float64(c.opacity) / 100
	for _, l := range c.layers {
		if !l.Active {
			continue
		}
		m, ok := masks[l.ID]
		if !ok || m == nil {
			continue
		}
		screenBlend(dst, fitMask(m, bounds), alpha)
	}
	return dst
}

// fitMask scales m to fit inside bounds (object-contain), centred, as non-premultiplied RGBA.
func fitMask(m image.Image, bounds image.Rectangle) *image.NRGBA {
	out := image.NewNRGBA(bounds)
	mb := m.Bounds()
	if mb.Dx() == 0 || mb.Dy() == 0 {
		return out
	}
	w, h := bounds.Dx(), bounds.Dy()
	if mb.Dx()*h > mb.Dy()*w {
		h = mb.Dy() * w / mb.Dx()
	} else {
		w = mb.Dx() * h / mb.Dy()
	}
	off := image.Pt((bounds.Dx()-w)/2, (bounds.Dy()-h)/2)
	target := image.Rect(0, 0, w, h).Add(off).Add(bounds.Min)
	xdraw.BiLinear.Scale(out, target, m, mb, xdraw.Src, nil)
	return out
}

// screenBlend mixes dst toward screen(dst, mask) by alpha times the mask's own alpha.
func screenBlend(dst *image.RGBA, mask *image.NRGBA, alpha float64) {
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		di := dst.PixOffset(b.Min.X, y)
		mi := mask.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x, di, mi = x+1, di+4, mi+4 {
			ma := float64(mask.Pix[mi+3]) / 255 * alpha
			if ma == 0 {
				continue
			}
			for ch := 0; ch < 3; ch++ {
				base := float64(dst.Pix[di+ch])
				top := float64(mask.Pix[mi+ch])
				screen := 255 - (255-base)*(255-top)/255
				dst.Pix[di+ch] = uint8(base + (screen-base)*ma + 0.5)
			}
		}
	}
}
