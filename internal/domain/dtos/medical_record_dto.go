package dtos

import "oct-review-service/internal/domain/entities"

// AppendVisitRequest defines the payload for recording a visit by hand.
// Date defaults to today and ID is always generated.
type AppendVisitRequest struct {
	Date         string  `json:"date"`
	Diagnosis    string  `json:"diagnosis"`
	Severity     string  `json:"severity"`
	Note         string  `json:"note"`
	ImageURL     string  `json:"imageUrl"`
	MaskURL      string  `json:"maskUrl"`
	Confidence   float64 `json:"confidence"`
	LesionAreaPx int     `json:"lesionAreaPx"`
}

// ExaminationResponse is returned after a scan was analysed.
// Visit is nil in guest mode, when no patient was given.
type ExaminationResponse struct {
	Result entities.AnalysisResult `json:"result"`
	Visit  *entities.Visit         `json:"visit,omitempty"`
	Saved  bool                    `json:"saved"`
}
