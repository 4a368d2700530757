package entities

import (
	"fmt"
	"strings"
)

// Severity is the coarse risk bucket attached to an analysis result.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// ParseSeverity accepts any casing of Low/Medium/High.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Visit is one clinical encounter's stored outcome. Immutable once appended.
// PatientID and Seq are storage details of the relational backend.
type Visit struct {
	ID           string   `json:"id" gorm:"primaryKey;size:64"`
	PatientID    string   `json:"-" gorm:"index;size:64;not null"`
	Seq          int64    `json:"-" gorm:"not null"`
	Date         string   `json:"date" gorm:"size:10;not null"`
	Diagnosis    string   `json:"diagnosis"`
	Severity     Severity `json:"severity" gorm:"size:16"`
	Note         string   `json:"note"`
	ImageURL     string   `json:"imageUrl" gorm:"column:image_url"`
	MaskURL      string   `json:"maskUrl" gorm:"column:mask_url"`
	Confidence   float64  `json:"confidence,omitempty"`
	LesionAreaPx int      `json:"lesionAreaPx,omitempty" gorm:"column:lesion_area_px"`
}

// AnalysisResult is what the analysis service returns for one scan.
type AnalysisResult struct {
	Diagnosis      string   `json:"diagnosis"`
	Confidence     float64  `json:"confidence"`
	LesionAreaPx   int      `json:"lesion_area_px"`
	Severity       Severity `json:"severity"`
	MaskURL        string   `json:"mask_url"`
	ProcessingTime string   `json:"processing_time"`
}

// Validate checks the value ranges callers rely on.
func (r *AnalysisResult) Validate() error {
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", r.Confidence)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("invalid severity %q", r.Severity)
	}
	if r.LesionAreaPx < 0 {
		return fmt.Errorf("negative lesion area %d", r.LesionAreaPx)
	}
	return nil
}
