package repositories

import (
	"context"
	"errors"

	"oct-review-service/internal/domain/entities"
)

// ErrNotFound is returned by GetByID, Update and Delete for an unknown id.
var ErrNotFound = errors.New("repositories: record not found")

// PatientRepositoryContract is the durable home of the patient list.
// Implementations do not validate field contents.
type PatientRepositoryContract interface {
	// Create adds a patient ahead of all existing ones.
	Create(ctx context.Context, patient *entities.Patient) error
	GetByID(ctx context.Context, id string) (*entities.Patient, error)
	// Update replaces the demographic fields of an existing patient. History is left as stored.
	Update(ctx context.Context, patient *entities.Patient) error
	Delete(ctx context.Context, id string) error
	// ListAll returns every patient, most recently created first.
	ListAll(ctx context.Context) ([]*entities.Patient, error)
	// AppendVisit prepends visit to the patient's history and sets LastVisit to visit.Date.
	// It reports false, with no error and no change, when the patient does not exist.
	AppendVisit(ctx context.Context, patientID string, visit entities.Visit) (bool, error)
}
