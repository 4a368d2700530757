package dtos

// InitiateExportRequest starts an asynchronous PDF export of one visit report.
type InitiateExportRequest struct {
	PatientID string `json:"patientId"`
	VisitID   string `json:"visitId"`
}

// Export job states.
const (
	ExportPending    = "PENDING"
	ExportInProgress = "IN_PROGRESS"
	ExportCompleted  = "COMPLETED"
	ExportFailed     = "FAILED"
)

// ExportProgress holds the fields common to every export status response.
type ExportProgress struct {
	ExportID string `json:"exportId"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

// ExportStatusResponse is the response for an export operation.
type ExportStatusResponse struct {
	ExportProgress
	PatientID string `json:"patientId"`
	VisitID   string `json:"visitId"`
	ReportURL string `json:"reportUrl,omitempty"`
}
