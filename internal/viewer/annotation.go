package viewer

import (
	"math"
	"strconv"
)

// Point is a position in content (image) coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one freehand path drawn with the annotate tool.
type Stroke struct {
	ID     string  `json:"id"`
	Points []Point `json:"points"`
	Width  float64 `json:"width"`
}

type annotationOp struct {
	added   *Stroke
	removed []indexedStroke
}

type indexedStroke struct {
	pos    int
	stroke Stroke
}

// AnnotationLayer is a vector overlay with an undo history.
// It lives only as long as its viewer session.
type AnnotationLayer struct {
	strokes []Stroke
	history []annotationOp
	nextID  int
}

const defaultStrokeWidth = 4

// Add appends a stroke. Strokes with no points are ignored and reported as nil.
func (a *AnnotationLayer) Add(points []Point, width float64) *Stroke {
	if len(points) == 0 {
		return nil
	}
	if width <= 0 {
		width = defaultStrokeWidth
	}
	a.nextID++
	s := Stroke{ID: "s" + strconv.Itoa(a.nextID), Points: append([]Point(nil), points...), Width: width}
	a.strokes = append(a.strokes, s)
	a.history = append(a.history, annotationOp{added: &s})
	return &s
}

// EraseAt removes every stroke passing within radius (plus half its width)
// of p and returns the removed ids.
func (a *AnnotationLayer) EraseAt(p Point, radius float64) []string {
	if radius < 0 {
		radius = 0
	}
	var (
		kept    []Stroke
		removed []indexedStroke
		ids     []string
	)
	for i, s := range a.strokes {
		if s.distanceTo(p) <= radius+s.Width/2 {
			removed = append(removed, indexedStroke{pos: i, stroke: s})
			ids = append(ids, s.ID)
			continue
		}
		kept = append(kept, s)
	}
	if len(removed) == 0 {
		return nil
	}
	a.strokes = kept
	a.history = append(a.history, annotationOp{removed: removed})
	return ids
}

// Undo reverts the most recent add or erase. It reports false when there is nothing to undo.
func (a *AnnotationLayer) Undo() bool {
	if len(a.history) == 0 {
		return false
	}
	op := a.history[len(a.history)-1]
	a.history = a.history[:len(a.history)-1]
	if op.added != nil {
		for i := len(a.strokes) - 1; i >= 0; i-- {
			if a.strokes[i].ID == op.added.ID {
				a.strokes = append(a.strokes[:i], a.strokes[i+1:]...)
				break
			}
		}
		return true
	}
	// removed entries are in ascending original position
	for _, r := range op.removed {
		pos := r.pos
		if pos > len(a.strokes) {
			pos = len(a.strokes)
		}
		a.strokes = append(a.strokes, Stroke{})
		copy(a.strokes[pos+1:], a.strokes[pos:])
		a.strokes[pos] = r.stroke
	}
	return true
}

func (a *AnnotationLayer) Strokes() []Stroke {
	out := make([]Stroke, len(a.strokes))
	copy(out, a.strokes)
	return out
}

func (a *AnnotationLayer) UndoDepth() int { return len(a.history) }

// Rasterize returns a row-major w*h coverage grid (1 covered, 0 not).
func (a *AnnotationLayer) Rasterize(w, h int) []float64 {
	if w <= 0 || h <= 0 {
		return nil
	}
	grid := make([]float64, w*h)
	for _, s := range a.strokes {
		half := s.Width / 2
		minX, minY, maxX, maxY := s.bounds()
		x0 := clampInt(int(math.Floor(minX-half)), 0, w-1)
		x1 := clampInt(int(math.Ceil(maxX+half)), 0, w-1)
		y0 := clampInt(int(math.Floor(minY-half)), 0, h-1)
		y1 := clampInt(int(math.Ceil(maxY+half)), 0, h-1)
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				if grid[y*w+x] == 1 {
					continue
				}
				if s.distanceTo(Point{X: float64(x) + 0.5, Y: float64(y) + 0.5}) <= half {
					grid[y*w+x] = 1
				}
			}
		}
	}
	return grid
}

func (s Stroke) bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range s.Points {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return
}

func (s Stroke) distanceTo(p Point) float64 {
	if len(s.Points) == 1 {
		return math.Hypot(p.X-s.Points[0].X, p.Y-s.Points[0].Y)
	}
	best := math.Inf(1)
	for i := 1; i < len(s.Points); i++ {
		best = math.Min(best, segmentDistance(p, s.Points[i-1], s.Points[i]))
	}
	return best
}

func segmentDistance(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
