package services

import (
	"context"
	"encoding/json"

	"oct-review-service/internal/domain/dtos"
)

// ReportServiceContract renders reports and exports of stored records.
type ReportServiceContract interface {
	// Start begins consuming export jobs.
	Start(ctx context.Context) error
	// Stop stops the export consumer.
	Stop(ctx context.Context) error

	// RenderVisitReport returns the PDF report of one visit.
	RenderVisitReport(ctx context.Context, patientID, visitID string) ([]byte, error)
	// RenderRoster returns the XLSX roster of all patients.
	RenderRoster(ctx context.Context) ([]byte, error)
	// PatientBundle returns the patient and its visits as a FHIR collection Bundle.
	PatientBundle(ctx context.Context, patientID string) (json.RawMessage, error)

	// RequestExport queues the PDF export of one visit and returns its export id.
	RequestExport(ctx context.Context, request dtos.InitiateExportRequest) (exportID string, err error)
	// ExportStatus reports the progress of an export started by RequestExport.
	ExportStatus(ctx context.Context, exportID string) (*dtos.ExportStatusResponse, error)
}
