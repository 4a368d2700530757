package dtos

// CreatePatientRequest defines the payload for creating a new patient.
// Name and Age are required; an Age of zero counts as absent.
type CreatePatientRequest struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
	Phone  string `json:"phone"`
}
