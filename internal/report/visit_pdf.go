// Package report renders visit reports and patient roster exports.
package report

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"oct-review-service/internal/domain/entities"
)

const (
	reportTitle  = "RetinaNet.AI - MEDICAL REPORT"
	reportFooter = "Generated automatically by RetinaNet.AI System"
	pageWidth    = 210.0
	marginLeft   = 20.0
	contentWidth = 170.0
)

// VisitReport is everything printed for one visit. Scan and Mask are optional;
// when present they are placed on a second page.
type VisitReport struct {
	Patient     *entities.Patient
	Visit       entities.Visit
	Scan        image.Image
	Mask        image.Image
	GeneratedAt time.Time
}

// RenderVisitPDF lays out an A4 report for one visit.
func RenderVisitPDF(r VisitReport) ([]byte, error) {
	if r.Patient == nil {
		return nil, fmt.Errorf("report: patient is required")
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(reportTitle, false)
	pdf.SetCreator("oct-review-service", false)
	if !r.GeneratedAt.IsZero() {
		pdf.SetCreationDate(r.GeneratedAt)
	}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-17)
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, 6, reportFooter, "", 0, "C", false, 0, "")
	})
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return pdfText(tr, s) }
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(0, 50, 150)
	pdf.SetXY(0, 13)
	pdf.CellFormat(pageWidth, 10, reportTitle, "", 0, "C", false, 0, "")

	pdf.SetLineWidth(0.5)
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(marginLeft, 30, marginLeft+contentWidth, 30)

	p := r.Patient
	v := r.Visit
	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.Text(20, 45, text("Patient Name: "+p.Name))
	pdf.Text(120, 45, text("Patient ID: "+p.ID))
	pdf.Text(20, 55, text(fmt.Sprintf("Age/Gender: %d / %s", p.Age, p.Gender)))
	pdf.Text(120, 55, text("Scan Date: "+v.Date))

	pdf.SetFillColor(240, 248, 255)
	pdf.Rect(marginLeft, 65, contentWidth, 30, "F")
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Text(25, 75, "AI DIAGNOSIS RESULT:")
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(200, 0, 0)
	pdf.Text(25, 88, text(strings.ToUpper(v.Diagnosis)))

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(50, 50, 50)
	pdf.Text(20, 110, fmt.Sprintf("Confidence Score: %.1f%%", v.Confidence*100))
	pdf.Text(80, 110, text("Severity Level: "+string(v.Severity)))
	pdf.Text(140, 110, fmt.Sprintf("Lesion Area: %d px", v.LesionAreaPx))

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.Text(20, 130, "Doctor's Clinical Note:")
	pdf.SetFont("Helvetica", "I", 12)
	pdf.SetXY(marginLeft, 135)
	note := v.Note
	if note == "" {
		note = "-"
	}
	pdf.MultiCell(contentWidth, 6, text(note), "", "L", false)

	if r.Scan != nil || r.Mask != nil {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetTextColor(0, 50, 150)
		pdf.Text(20, 25, "Imaging")
		y := 35.0
		for _, item := range []struct {
			name  string
			label string
			img   image.Image
		}{
			{"scan", "OCT scan", r.Scan},
			{"mask", "Segmentation mask", r.Mask},
		} {
			if item.img == nil {
				continue
			}
			h, err := placeImage(pdf, item.name, item.img, y)
			if err != nil {
				return nil, err
			}
			pdf.SetFont("Helvetica", "", 10)
			pdf.SetTextColor(80, 80, 80)
			pdf.Text(20, y+h+6, item.label)
			y += h + 14
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render visit report: %w", err)
	}
	return buf.Bytes(), nil
}

// placeImage draws img at the left margin, at most contentWidth wide and
// 110mm tall, and returns the height used.
func placeImage(pdf *fpdf.Fpdf, name string, img image.Image, y float64) (float64, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return 0, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return 0, fmt.Errorf("encode %s image: %w", name, err)
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, &buf)

	w := contentWidth
	h := w * float64(b.Dy()) / float64(b.Dx())
	if h > 110 {
		h = 110
		w = h * float64(b.Dx()) / float64(b.Dy())
	}
	pdf.ImageOptions(name, marginLeft, y, w, h, false, opts, 0, "")
	return h, pdf.Error()
}

// pdfText maps text onto the core font code page through tr. Letters outside
// it lose their diacritics ("Nguyễn" prints as "Nguyen").
func pdfText(tr func(string) string, s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r < 0x100 {
			sb.WriteRune(r)
			continue
		}
		sb.WriteString(foldRune(r))
	}
	return tr(sb.String())
}

func foldRune(r rune) string {
	switch r {
	case 'đ':
		return "d"
	case 'Đ':
		return "D"
	}
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(stripMarks, string(r))
	if err != nil || out == "" {
		return "?"
	}
	for _, c := range out {
		if c >= 0x100 {
			return "?"
		}
	}
	return out
}
