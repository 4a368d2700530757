package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"oct-review-service/internal/domain/entities"
	"oct-review-service/internal/domain/repositories"
)

var _ repositories.PatientRepositoryContract = (*DocumentPatientRepository)(nil)

// DocumentPatientRepository keeps the patient list in memory and mirrors the
// whole list to a single KV key after every mutation. A mutation is visible
// only once its write succeeded. Concurrent writers of the same key are
// last-write-wins.
type DocumentPatientRepository struct {
	kv       KV
	key      string
	logger   *zap.Logger
	mu       sync.RWMutex
	patients []*entities.Patient
}

// NewDocumentPatientRepository hydrates from key. When the key is absent the
// seed records are installed and written back.
func NewDocumentPatientRepository(ctx context.Context, kv KV, key string, seeds []*entities.Patient, logger *zap.Logger) (*DocumentPatientRepository, error) {
	r := &DocumentPatientRepository{kv: kv, key: key, logger: logger}

	raw, err := kv.Get(ctx, key)
	switch {
	case errors.Is(err, ErrMiss):
		r.patients = clonePatients(seeds)
		if err := r.persist(ctx, r.patients); err != nil {
			return nil, fmt.Errorf("persist seed patients: %w", err)
		}
		logger.Info("patient store seeded", zap.String("key", key), zap.Int("patients", len(r.patients)))
	case err != nil:
		return nil, fmt.Errorf("load patient document %s: %w", key, err)
	default:
		var loaded []*entities.Patient
		if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
			return nil, fmt.Errorf("parse patient document %s: %w", key, err)
		}
		for _, p := range loaded {
			if p.History == nil {
				p.History = []entities.Visit{}
			}
		}
		r.patients = loaded
		logger.Info("patient store hydrated", zap.String("key", key), zap.Int("patients", len(loaded)))
	}
	return r, nil
}

func (r *DocumentPatientRepository) persist(ctx context.Context, patients []*entities.Patient) error {
	b, err := json.Marshal(patients)
	if err != nil {
		return fmt.Errorf("encode patient document: %w", err)
	}
	return r.kv.Set(ctx, r.key, string(b))
}

// commit writes next and, on success, makes it the current list. Callers hold mu.
func (r *DocumentPatientRepository) commit(ctx context.Context, next []*entities.Patient) error {
	if err := r.persist(ctx, next); err != nil {
		r.logger.Error("patient document write failed", zap.String("key", r.key), zap.Error(err))
		return err
	}
	r.patients = next
	return nil
}

func (r *DocumentPatientRepository) indexOf(id string) int {
	for i, p := range r.patients {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (r *DocumentPatientRepository) Create(ctx context.Context, patient *entities.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(patient.ID) >= 0 {
		return fmt.Errorf("patient %s already exists", patient.ID)
	}
	c := patient.Clone()
	if c.History == nil {
		c.History = []entities.Visit{}
	}
	next := make([]*entities.Patient, 0, len(r.patients)+1)
	next = append(next, c)
	next = append(next, r.patients...)
	return r.commit(ctx, next)
}

func (r *DocumentPatientRepository) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(id)
	if i < 0 {
		return nil, repositories.ErrNotFound
	}
	return r.patients[i].Clone(), nil
}

func (r *DocumentPatientRepository) Update(ctx context.Context, patient *entities.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(patient.ID)
	if i < 0 {
		return repositories.ErrNotFound
	}
	updated := r.patients[i].Clone()
	updated.Name = patient.Name
	updated.Age = patient.Age
	updated.Gender = patient.Gender
	updated.Phone = patient.Phone

	next := make([]*entities.Patient, len(r.patients))
	copy(next, r.patients)
	next[i] = updated
	return r.commit(ctx, next)
}

func (r *DocumentPatientRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return repositories.ErrNotFound
	}
	next := make([]*entities.Patient, 0, len(r.patients)-1)
	next = append(next, r.patients[:i]...)
	next = append(next, r.patients[i+1:]...)
	return r.commit(ctx, next)
}

func (r *DocumentPatientRepository) ListAll(ctx context.Context) ([]*entities.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clonePatients(r.patients), nil
}

func (r *DocumentPatientRepository) AppendVisit(ctx context.Context, patientID string, visit entities.Visit) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(patientID)
	if i < 0 {
		return false, nil
	}
	updated := r.patients[i].Clone()
	history := make([]entities.Visit, 0, len(updated.History)+1)
	history = append(history, visit)
	history = append(history, updated.History...)
	updated.History = history
	updated.LastVisit = visit.Date

	next := make([]*entities.Patient, len(r.patients))
	copy(next, r.patients)
	next[i] = updated
	if err := r.commit(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func clonePatients(in []*entities.Patient) []*entities.Patient {
	out := make([]*entities.Patient, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}
