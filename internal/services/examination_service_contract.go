package services

import (
	"context"

	"oct-review-service/internal/domain/dtos"
)

// ScanUpload is an uploaded scan file as received from the client.
type ScanUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExaminationServiceContract runs one scan through the analysis pipeline.
type ExaminationServiceContract interface {
	// Examine validates and stores the scan, analyses it and, when patientID is
	// set, appends exactly one visit to that patient. An empty patientID runs
	// the analysis without saving anything to a record.
	Examine(ctx context.Context, patientID string, upload ScanUpload) (*dtos.ExaminationResponse, error)
}
