package viewer

import "errors"

var (
	// ErrNavigationLocked is returned when pan or wheel input arrives while a drawing tool is active.
	ErrNavigationLocked = errors.New("viewer: navigation is disabled while a drawing tool is active")
	// ErrToolModeMismatch is returned when a drawing operation does not match the active tool.
	ErrToolModeMismatch = errors.New("viewer: operation not allowed in current tool mode")
)

// Options configures a Viewer.
type Options struct {
	Transform TransformOptions
	Viewport  Size
	Layers    []Layer
	Opacity   int
	MaxHeight int
}

// Viewer dispatches pointer input to the viewport transform or the annotation
// layer depending on the active tool. It is not safe for concurrent use.
type Viewer struct {
	transform   *Transform
	compositor  *Compositor
	tool        ToolState
	annotations AnnotationLayer
}

// State is a snapshot of everything a client needs to draw the viewer chrome.
type State struct {
	Transform TransformState `json:"transform"`
	Tool      ToolMode       `json:"tool"`
	Cursor    string         `json:"cursor"`
	Indicator string         `json:"indicator,omitempty"`
	Opacity   int            `json:"opacity"`
	Layers    []Layer        `json:"layers"`
	Strokes   []Stroke       `json:"strokes"`
	CanUndo   bool           `json:"canUndo"`
	Content   Size           `json:"content"`
	Viewport  Size           `json:"viewport"`
}

// New creates a viewer for a base image of the given natural size.
func New(opts Options, natural Size) *Viewer {
	c := NewCompositor(opts.Layers, opts.Opacity, opts.MaxHeight)
	content := natural
	if natural.Height > float64(c.MaxHeight()) && natural.Height > 0 {
		content = Size{Width: natural.Width * float64(c.MaxHeight()) / natural.Height, Height: float64(c.MaxHeight())}
	}
	viewport := opts.Viewport
	if viewport.Width <= 0 || viewport.Height <= 0 {
		viewport = content
	}
	return &Viewer{
		transform:  NewTransform(opts.Transform, viewport, content),
		compositor: c,
	}
}

func (v *Viewer) Compositor() *Compositor { return v.compositor }

func (v *Viewer) Tool() ToolMode { return v.tool.Mode() }

// SelectTool switches the active tool. The viewport transform is left untouched.
func (v *Viewer) SelectTool(m ToolMode) { v.tool.Select(m) }

func (v *Viewer) ZoomIn()  { v.transform.ZoomIn() }
func (v *Viewer) ZoomOut() { v.transform.ZoomOut() }
func (v *Viewer) Reset()   { v.transform.Reset() }

// Pan moves the viewport; refused with no effect unless the navigate tool is active.
func (v *Viewer) Pan(dx, dy float64) error {
	if !v.tool.NavigationEnabled() {
		return ErrNavigationLocked
	}
	v.transform.Pan(dx, dy)
	return nil
}

// Wheel zooms around the pointer; refused with no effect unless the navigate tool is active.
func (v *Viewer) Wheel(deltaY, x, y float64) error {
	if !v.tool.NavigationEnabled() {
		return ErrNavigationLocked
	}
	v.transform.Wheel(deltaY, x, y)
	return nil
}

func (v *Viewer) ToggleLayer(id string) bool { return v.compositor.ToggleLayer(id) }

func (v *Viewer) SetOpacity(value int) { v.compositor.SetOpacity(value) }

// Draw adds a stroke given in viewport coordinates. Requires the annotate tool.
func (v *Viewer) Draw(points []Point, width float64) (*Stroke, error) {
	if v.tool.Mode() != ToolAnnotate {
		return nil, ErrToolModeMismatch
	}
	scale := v.transform.State().Scale
	content := make([]Point, len(points))
	for i, p := range points {
		x, y := v.transform.ToContent(p.X, p.Y)
		content[i] = Point{X: x, Y: y}
	}
	return v.annotations.Add(content, width/scale), nil
}

// Erase removes strokes under the pointer (viewport coordinates). Requires the erase tool.
func (v *Viewer) Erase(p Point, radius float64) ([]string, error) {
	if v.tool.Mode() != ToolErase {
		return nil, ErrToolModeMismatch
	}
	scale := v.transform.State().Scale
	x, y := v.transform.ToContent(p.X, p.Y)
	return v.annotations.EraseAt(Point{X: x, Y: y}, radius/scale), nil
}

// Undo reverts the last annotation change in any tool mode.
func (v *Viewer) Undo() bool { return v.annotations.Undo() }

func (v *Viewer) Annotations() *AnnotationLayer { return &v.annotations }

func (v *Viewer) State() State {
	return State{
		Transform: v.transform.State(),
		Tool:      v.tool.Mode(),
		Cursor:    v.tool.Cursor(),
		Indicator: v.tool.Indicator(),
		Opacity:   v.compositor.Opacity(),
		Layers:    v.compositor.Layers(),
		Strokes:   v.annotations.Strokes(),
		CanUndo:   v.annotations.UndoDepth() > 0,
		Content:   v.transform.content,
		Viewport:  v.transform.viewport,
	}
}
