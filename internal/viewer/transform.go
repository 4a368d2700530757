// Package viewer models the OCT image viewer: a pan/zoom viewport, a stack of
// toggleable mask layers over a base scan, the active tool, and a
// session-scoped annotation layer.
package viewer

import "math"

const (
	DefaultMinScale   = 0.5
	DefaultMaxScale   = 8.0
	DefaultZoomFactor = 1.25
	DefaultWheelStep  = 0.1
)

// TransformOptions bounds and steps for a Transform. Zero values fall back to defaults.
type TransformOptions struct {
	MinScale   float64
	MaxScale   float64
	ZoomFactor float64 // multiplier applied by ZoomIn/ZoomOut
	WheelStep  float64 // per wheel tick, scale is multiplied by 1+WheelStep
}

func (o TransformOptions) withDefaults() TransformOptions {
	if o.MinScale <= 0 {
		o.MinScale = DefaultMinScale
	}
	if o.MaxScale <= 0 {
		o.MaxScale = DefaultMaxScale
	}
	if o.MaxScale < o.MinScale {
		o.MinScale, o.MaxScale = o.MaxScale, o.MinScale
	}
	if o.ZoomFactor <= 1 {
		o.ZoomFactor = DefaultZoomFactor
	}
	if o.WheelStep <= 0 {
		o.WheelStep = DefaultWheelStep
	}
	return o
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TransformState is the observable part of a Transform.
type TransformState struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translateX"`
	TranslateY float64 `json:"translateY"`
}

// Transform maps content (image) coordinates to viewport coordinates:
// viewport = content*Scale + Translate.
// Scale always stays inside [MinScale, MaxScale].
type Transform struct {
	opts     TransformOptions
	viewport Size
	content  Size

	scale      float64
	translateX float64
	translateY float64
}

// NewTransform creates a transform at scale 1 with the content centred in the viewport.
func NewTransform(opts TransformOptions, viewport, content Size) *Transform {
	t := &Transform{opts: opts.withDefaults(), viewport: viewport, content: content}
	t.Reset()
	return t
}

func (t *Transform) State() TransformState {
	return TransformState{Scale: t.scale, TranslateX: t.translateX, TranslateY: t.translateY}
}

func (t *Transform) Options() TransformOptions { return t.opts }

// Reset restores scale 1 and centres the content.
func (t *Transform) Reset() {
	t.scale = t.clamp(1)
	t.center()
}

// Resize updates viewport and content sizes and re-centres at the current scale.
func (t *Transform) Resize(viewport, content Size) {
	t.viewport = viewport
	t.content = content
	t.center()
}

func (t *Transform) center() {
	t.translateX = (t.viewport.Width - t.content.Width*t.scale) / 2
	t.translateY = (t.viewport.Height - t.content.Height*t.scale) / 2
}

// ZoomIn multiplies the scale by the zoom factor around the viewport centre.
func (t *Transform) ZoomIn() {
	t.ZoomAt(t.opts.ZoomFactor, t.viewport.Width/2, t.viewport.Height/2)
}

// ZoomOut divides the scale by the zoom factor around the viewport centre.
func (t *Transform) ZoomOut() {
	t.ZoomAt(1/t.opts.ZoomFactor, t.viewport.Width/2, t.viewport.Height/2)
}

// Wheel applies one zoom step per tick in the direction of deltaY around
// the pointer at (x, y). Negative deltaY zooms in.
func (t *Transform) Wheel(deltaY, x, y float64) {
	if deltaY == 0 {
		return
	}
	factor := 1 + t.opts.WheelStep
	if deltaY > 0 {
		factor = 1 / factor
	}
	t.ZoomAt(factor, x, y)
}

// ZoomAt multiplies the scale by factor keeping the content point under the
// viewport point (x, y) fixed. The resulting scale is clamped.
func (t *Transform) ZoomAt(factor, x, y float64) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return
	}
	t.SetScaleAt(t.scale*factor, x, y)
}

// SetScaleAt sets an absolute scale (clamped) anchored at viewport point (x, y).
// A move whose translation would not be finite is dropped.
func (t *Transform) SetScaleAt(scale, x, y float64) {
	if !finite(x) || !finite(y) {
		return
	}
	next := t.clamp(scale)
	if next == t.scale {
		return
	}
	cx := (x - t.translateX) / t.scale
	cy := (y - t.translateY) / t.scale
	tx, ty := x-cx*next, y-cy*next
	if !finite(tx) || !finite(ty) {
		return
	}
	t.scale = next
	t.translateX = tx
	t.translateY = ty
}

// Pan shifts the translation by (dx, dy) viewport pixels. Non-finite deltas,
// or deltas that would overflow the translation, leave it unchanged.
func (t *Transform) Pan(dx, dy float64) {
	if !finite(dx) || !finite(dy) {
		return
	}
	tx, ty := t.translateX+dx, t.translateY+dy
	if !finite(tx) || !finite(ty) {
		return
	}
	t.translateX = tx
	t.translateY = ty
}

// ToContent converts a viewport point to content coordinates.
func (t *Transform) ToContent(x, y float64) (float64, float64) {
	return (x - t.translateX) / t.scale, (y - t.translateY) / t.scale
}

func (t *Transform) clamp(s float64) float64 {
	if math.IsNaN(s) {
		return t.opts.MinScale
	}
	return math.Min(t.opts.MaxScale, math.Max(t.opts.MinScale, s))
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
