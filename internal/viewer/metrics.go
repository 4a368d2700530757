package viewer

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"
)

const (
	maskThreshold = 0.5
	metricSmooth  = 1e-6
)

// MaskAgreement compares the AI mask with the clinician's annotations.
type MaskAgreement struct {
	IoU           float64 `json:"iou"`
	Dice          float64 `json:"dice"`
	MaskPixels    int     `json:"maskPixels"`
	AnnotatedArea int     `json:"annotatedPixels"`
}

// BinarizeMask scales m to w*h and returns a row-major grid with 1 where the
// mask is brighter than half intensity.
func BinarizeMask(m image.Image, w, h int) []float64 {
	if w <= 0 || h <= 0 {
		return nil
	}
	gray := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.NearestNeighbor.Scale(gray, gray.Bounds(), m, m.Bounds(), xdraw.Src, nil)
	out := make([]float64, w*h)
	for i, v := range gray.Pix {
		if float64(v)/255 > maskThreshold {
			out[i] = 1
		}
	}
	return out
}

// Agreement computes IoU and Dice of two binary grids of equal length, with the
// same smoothing term the segmentation model is evaluated with.
func Agreement(pred, truth []float64) MaskAgreement {
	if len(pred) != len(truth) || len(pred) == 0 {
		return MaskAgreement{}
	}
	inter := make([]float64, len(pred))
	floats.MulTo(inter, pred, truth)
	i := floats.Sum(inter)
	ps, ts := floats.Sum(pred), floats.Sum(truth)
	return MaskAgreement{
		IoU:           (i + metricSmooth) / (ps + ts - i + metricSmooth),
		Dice:          (2*i + metricSmooth) / (ps + ts + metricSmooth),
		MaskPixels:    int(ps),
		AnnotatedArea: int(ts),
	}
}

// LesionArea counts mask pixels above the threshold.
func LesionArea(m image.Image) int {
	b := m.Bounds()
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(m.At(x, y)).(color.Gray)
			if float64(g.Y)/255 > maskThreshold {
				n++
			}
		}
	}
	return n
}
