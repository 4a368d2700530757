package services

import (
	"context"

	"oct-review-service/internal/domain/dtos"
	"oct-review-service/internal/domain/entities"
)

// PatientServiceContract defines the operations of the patient/record store.
type PatientServiceContract interface {
	// CreatePatient registers a patient with a generated BN id and an empty history.
	CreatePatient(ctx context.Context, req dtos.CreatePatientRequest) (*entities.Patient, error)
	GetPatient(ctx context.Context, id string) (*entities.Patient, error)
	// ListPatients returns all patients, newest first. A non-empty q.Query keeps
	// patients whose name or id contains it, ignoring case and diacritics.
	// q.Severity filters on the newest visit; an unknown value is ErrInvalidField.
	ListPatients(ctx context.Context, q dtos.PatientListQuery) ([]*entities.Patient, error)
	// AppendVisit records visit for patientID. An unknown patient is ignored.
	AppendVisit(ctx context.Context, patientID string, visit entities.Visit) error
	// RecordVisit builds a visit from a manual entry and appends it.
	// Unlike AppendVisit it reports ErrPatientNotFound.
	RecordVisit(ctx context.Context, patientID string, req dtos.AppendVisitRequest) (*entities.Visit, error)
}
