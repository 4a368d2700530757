package dtos

import "oct-review-service/internal/domain/entities"

// Severity filter values accepted besides the entity severities.
const (
	SeverityFilterAll  = "All"
	SeverityFilterNone = "None"
)

// PatientListQuery narrows the patient list. Severity is matched against the
// newest visit: All (or empty) keeps everyone, None keeps patients with no
// visits, Low/Medium/High keep that bucket.
type PatientListQuery struct {
	Query    string `query:"q"`
	Severity string `query:"severity"`
}

// PatientSummaryDTO is one row of the patient list.
type PatientSummaryDTO struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Age            int               `json:"age"`
	Gender         string            `json:"gender"`
	Phone          string            `json:"phone"`
	LastVisit      string            `json:"lastVisit"`
	VisitCount     int               `json:"visitCount"`
	LatestSeverity entities.Severity `json:"latestSeverity,omitempty"`
}

func NewPatientSummary(p *entities.Patient) PatientSummaryDTO {
	return PatientSummaryDTO{
		ID:             p.ID,
		Name:           p.Name,
		Age:            p.Age,
		Gender:         p.Gender,
		Phone:          p.Phone,
		LastVisit:      p.LastVisit,
		VisitCount:     len(p.History),
		LatestSeverity: p.LatestSeverity(),
	}
}

// PatientListResponse wraps the list endpoint result. HighRisk counts the
// listed patients whose newest visit is High severity.
type PatientListResponse struct {
	Total    int                 `json:"total"`
	HighRisk int                 `json:"highRisk"`
	Patients []PatientSummaryDTO `json:"patients"`
}

func NewPatientListResponse(patients []*entities.Patient) PatientListResponse {
	resp := PatientListResponse{
		Total:    len(patients),
		Patients: make([]PatientSummaryDTO, 0, len(patients)),
	}
	for _, p := range patients {
		row := NewPatientSummary(p)
		if row.LatestSeverity == entities.SeverityHigh {
			resp.HighRisk++
		}
		resp.Patients = append(resp.Patients, row)
	}
	return resp
}
