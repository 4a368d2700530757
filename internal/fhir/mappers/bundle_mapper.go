package mappers

import (
	"encoding/json"
	"fmt"
	"time"

	"oct-review-service/internal/domain/entities"
)

type FHIRBundleEntry struct {
	FullURL  string          `json:"fullUrl"`
	Resource json.RawMessage `json:"resource"`
}

// FHIRBundle is a FHIR R4 Bundle of type collection.
type FHIRBundle struct {
	ResourceType string            `json:"resourceType"`
	Type         string            `json:"type"`
	Timestamp    string            `json:"timestamp,omitempty"`
	Entry        []FHIRBundleEntry `json:"entry"`
}

// MapPatientBundle wraps the patient and one DiagnosticReport per visit, in
// history order, into a collection Bundle.
func MapPatientBundle(patient entities.Patient, now time.Time) (json.RawMessage, error) {
	pr, err := buildPatientResource(patient)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(pr)
	if err != nil {
		return nil, fmt.Errorf("error marshalling FHIR patient resource to JSON: %w", err)
	}
	bundle := FHIRBundle{
		ResourceType: "Bundle",
		Type:         "collection",
		Timestamp:    now.UTC().Format(time.RFC3339),
		Entry:        []FHIRBundleEntry{{FullURL: "urn:oct-review:Patient/" + pr.ID, Resource: raw}},
	}
	for _, v := range patient.History {
		dr := buildDiagnosticReport(patient.ID, v)
		raw, err := json.Marshal(dr)
		if err != nil {
			return nil, fmt.Errorf("error marshalling FHIR diagnostic report to JSON: %w", err)
		}
		bundle.Entry = append(bundle.Entry, FHIRBundleEntry{FullURL: "urn:oct-review:DiagnosticReport/" + dr.ID, Resource: raw})
	}

	rawJSON, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error marshalling FHIR bundle to JSON: %w", err)
	}
	return rawJSON, nil
}
