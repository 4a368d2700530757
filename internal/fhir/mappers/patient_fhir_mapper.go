package mappers

import (
	"encoding/json"
	"fmt"
	"strings"

	"oct-review-service/internal/domain/entities"
)

// FHIRHumanName represents a FHIR HumanName data type.
type FHIRHumanName struct {
	Use    string   `json:"use,omitempty"` // usual | official | temp | nickname | anonymous | old | maiden
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

// FHIRPatientGender represents the administrative gender of a patient.
// FHIR values: male | female | other | unknown
type FHIRPatientGender string

const (
	GenderMale    FHIRPatientGender = "male"
	GenderFemale  FHIRPatientGender = "female"
	GenderOther   FHIRPatientGender = "other"
	GenderUnknown FHIRPatientGender = "unknown"
)

type FHIRIdentifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value"`
}

type FHIRContactPoint struct {
	System string `json:"system"` // phone | email | ...
	Value  string `json:"value"`
	Use    string `json:"use,omitempty"`
}

// FHIRPatientResource represents a simplified FHIR R4 Patient resource.
type FHIRPatientResource struct {
	ResourceType string             `json:"resourceType"` // Should be "Patient"
	ID           string             `json:"id,omitempty"`
	Identifier   []FHIRIdentifier   `json:"identifier,omitempty"`
	Name         []FHIRHumanName    `json:"name,omitempty"`
	Telecom      []FHIRContactPoint `json:"telecom,omitempty"`
	Gender       FHIRPatientGender  `json:"gender,omitempty"`
}

// PatientIdentifierSystem namespaces the clinic's BN... patient numbers.
const PatientIdentifierSystem = "urn:oct-review:patient-id"

// MapGender maps the free-text gender captured at registration.
func MapGender(g string) FHIRPatientGender {
	switch strings.ToLower(strings.TrimSpace(g)) {
	case "nam", "male", "m":
		return GenderMale
	case "nữ", "nu", "female", "f":
		return GenderFemale
	case "":
		return GenderUnknown
	}
	return GenderOther
}

// splitName treats the first word as the family name, as in Vietnamese
// naming order. A single word is given only.
func splitName(full string) FHIRHumanName {
	parts := strings.Fields(full)
	name := FHIRHumanName{Use: "official", Text: strings.Join(parts, " ")}
	switch len(parts) {
	case 0:
	case 1:
		name.Given = parts
	default:
		name.Family = parts[0]
		name.Given = parts[1:]
	}
	return name
}

func buildPatientResource(patient entities.Patient) (*FHIRPatientResource, error) {
	if strings.TrimSpace(patient.Name) == "" {
		return nil, fmt.Errorf("patient name is required for FHIR mapping")
	}
	res := &FHIRPatientResource{
		ResourceType: "Patient",
		ID:           fhirID(patient.ID),
		Identifier:   []FHIRIdentifier{{System: PatientIdentifierSystem, Value: patient.ID}},
		Name:         []FHIRHumanName{splitName(patient.Name)},
		Gender:       MapGender(patient.Gender),
	}
	if patient.Phone != "" {
		res.Telecom = []FHIRContactPoint{{System: "phone", Value: patient.Phone, Use: "mobile"}}
	}
	return res, nil
}

// MapPatientToFHIR converts a Patient entity to a FHIR Patient resource.
func MapPatientToFHIR(patient entities.Patient) (json.RawMessage, error) {
	res, err := buildPatientResource(patient)
	if err != nil {
		return nil, err
	}
	rawJSON, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error marshalling FHIR patient resource to JSON: %w", err)
	}
	return rawJSON, nil
}

// fhirID maps a record id onto the FHIR id alphabet [A-Za-z0-9-.].
func fhirID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '-'
	}, id)
}
