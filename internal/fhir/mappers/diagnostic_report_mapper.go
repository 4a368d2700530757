package mappers

import (
	"encoding/json"
	"fmt"
	"strings"

	"oct-review-service/internal/domain/entities"
)

type FHIRCoding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type FHIRCodeableConcept struct {
	Coding []FHIRCoding `json:"coding,omitempty"`
	Text   string       `json:"text,omitempty"`
}

type FHIRReference struct {
	Reference string `json:"reference"`
}

type FHIRAttachment struct {
	ContentType string `json:"contentType,omitempty"`
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
}

// FHIRDiagnosticReportResource is a simplified FHIR R4 DiagnosticReport.
type FHIRDiagnosticReportResource struct {
	ResourceType      string                `json:"resourceType"` // Should be "DiagnosticReport"
	ID                string                `json:"id,omitempty"`
	Status            string                `json:"status"`
	Category          []FHIRCodeableConcept `json:"category,omitempty"`
	Code              FHIRCodeableConcept   `json:"code"`
	Subject           FHIRReference         `json:"subject"`
	EffectiveDateTime string                `json:"effectiveDateTime,omitempty"`
	Conclusion        string                `json:"conclusion,omitempty"`
	PresentedForm     []FHIRAttachment      `json:"presentedForm,omitempty"`
}

// LOINC 57119-7 "OCT study", imaging category from v2-0074.
var (
	octStudyCode = FHIRCodeableConcept{
		Coding: []FHIRCoding{{System: "http://loinc.org", Code: "57119-7", Display: "Optical coherence tomography study"}},
		Text:   "OCT retinal analysis",
	}
	imagingCategory = FHIRCodeableConcept{
		Coding: []FHIRCoding{{System: "http://terminology.hl7.org/CodeSystem/v2-0074", Code: "IMG", Display: "Diagnostic Imaging"}},
	}
)

func buildDiagnosticReport(patientID string, visit entities.Visit) *FHIRDiagnosticReportResource {
	conclusion := visit.Diagnosis
	var details []string
	if visit.Severity != "" {
		details = append(details, "severity "+string(visit.Severity))
	}
	if visit.Confidence > 0 {
		details = append(details, fmt.Sprintf("confidence %.1f%%", visit.Confidence*100))
	}
	if len(details) > 0 {
		conclusion += " (" + strings.Join(details, ", ") + ")"
	}

	res := &FHIRDiagnosticReportResource{
		ResourceType:      "DiagnosticReport",
		ID:                fhirID(visit.ID),
		Status:            "final",
		Category:          []FHIRCodeableConcept{imagingCategory},
		Code:              octStudyCode,
		Subject:           FHIRReference{Reference: "Patient/" + fhirID(patientID)},
		EffectiveDateTime: visit.Date,
		Conclusion:        conclusion,
	}
	if visit.ImageURL != "" {
		res.PresentedForm = append(res.PresentedForm, FHIRAttachment{URL: visit.ImageURL, Title: "OCT scan"})
	}
	if visit.MaskURL != "" {
		res.PresentedForm = append(res.PresentedForm, FHIRAttachment{URL: visit.MaskURL, Title: "Segmentation mask"})
	}
	return res
}

// MapVisitToFHIR converts one visit to a DiagnosticReport about patientID.
func MapVisitToFHIR(patientID string, visit entities.Visit) (json.RawMessage, error) {
	rawJSON, err := json.MarshalIndent(buildDiagnosticReport(patientID, visit), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error marshalling FHIR diagnostic report to JSON: %w", err)
	}
	return rawJSON, nil
}
