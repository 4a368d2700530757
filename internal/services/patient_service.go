package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"oct-review-service/internal/domain/dtos"
	"oct-review-service/internal/domain/entities"
	"oct-review-service/internal/domain/repositories"
)

const (
	minPatientAge   = 1
	maxPatientAge   = 120
	patientIDTries  = 20
	visitDateLayout = "2006-01-02"
)

// PatientServiceImpl implements PatientServiceContract on top of a patient repository.
type PatientServiceImpl struct {
	patientRepo repositories.PatientRepositoryContract
	logger      *zap.Logger
	now         func() time.Time
	randID      func() int
}

func NewPatientService(repo repositories.PatientRepositoryContract, logger *zap.Logger) *PatientServiceImpl {
	return &PatientServiceImpl{
		patientRepo: repo,
		logger:      logger,
		now:         time.Now,
		randID:      func() int { return rand.Intn(10000) },
	}
}

func (s *PatientServiceImpl) CreatePatient(ctx context.Context, req dtos.CreatePatientRequest) (*entities.Patient, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingRequiredField)
	}
	if req.Age == 0 {
		return nil, fmt.Errorf("%w: age", ErrMissingRequiredField)
	}
	if req.Age < minPatientAge || req.Age > maxPatientAge {
		return nil, fmt.Errorf("%w: age must be between %d and %d", ErrInvalidField, minPatientAge, maxPatientAge)
	}

	id, err := s.newPatientID(ctx)
	if err != nil {
		return nil, err
	}
	patient := &entities.Patient{
		ID:        id,
		Name:      name,
		Age:       req.Age,
		Gender:    strings.TrimSpace(req.Gender),
		Phone:     strings.TrimSpace(req.Phone),
		LastVisit: entities.LastVisitNever,
		History:   []entities.Visit{},
	}
	if err := s.patientRepo.Create(ctx, patient); err != nil {
		s.logger.Error("create patient failed", zap.String("patient_id", id), zap.Error(err))
		return nil, fmt.Errorf("create patient: %w", err)
	}
	s.logger.Info("patient created", zap.String("patient_id", id))
	return patient, nil
}

// newPatientID draws BN0000..BN9999 until it finds an unused id and falls
// back to a UUID-based id when the draws keep colliding.
func (s *PatientServiceImpl) newPatientID(ctx context.Context) (string, error) {
	existing, err := s.patientRepo.ListAll(ctx)
	if err != nil {
		return "", fmt.Errorf("list patients: %w", err)
	}
	taken := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		taken[p.ID] = struct{}{}
	}
	for i := 0; i < patientIDTries; i++ {
		id := fmt.Sprintf("BN%04d", s.randID())
		if _, ok := taken[id]; !ok {
			return id, nil
		}
	}
	s.logger.Warn("patient id space crowded, using uuid id", zap.Int("patients", len(existing)))
	return "BN-" + uuid.NewString(), nil
}

func (s *PatientServiceImpl) GetPatient(ctx context.Context, id string) (*entities.Patient, error) {
	p, err := s.patientRepo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}
	return p, nil
}

func (s *PatientServiceImpl) ListPatients(ctx context.Context, lq dtos.PatientListQuery) ([]*entities.Patient, error) {
	keep, err := severityFilter(lq.Severity)
	if err != nil {
		return nil, err
	}
	all, err := s.patientRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	q := foldForSearch(lq.Query)
	if q == "" && keep == nil {
		return all, nil
	}
	out := make([]*entities.Patient, 0, len(all))
	for _, p := range all {
		if keep != nil && !keep(p) {
			continue
		}
		if q == "" || strings.Contains(foldForSearch(p.Name), q) || strings.Contains(foldForSearch(p.ID), q) {
			out = append(out, p)
		}
	}
	return out, nil
}

// severityFilter returns nil when every patient passes.
func severityFilter(value string) (func(*entities.Patient) bool, error) {
	v := strings.TrimSpace(value)
	switch {
	case v == "", strings.EqualFold(v, dtos.SeverityFilterAll):
		return nil, nil
	case strings.EqualFold(v, dtos.SeverityFilterNone):
		return func(p *entities.Patient) bool { return len(p.History) == 0 }, nil
	}
	sev, err := entities.ParseSeverity(v)
	if err != nil {
		return nil, fmt.Errorf("%w: severity %q", ErrInvalidField, value)
	}
	return func(p *entities.Patient) bool { return p.LatestSeverity() == sev }, nil
}

func (s *PatientServiceImpl) AppendVisit(ctx context.Context, patientID string, visit entities.Visit) error {
	ok, err := s.patientRepo.AppendVisit(ctx, patientID, visit)
	if err != nil {
		return fmt.Errorf("append visit: %w", err)
	}
	if !ok {
		s.logger.Warn("visit for unknown patient ignored",
			zap.String("patient_id", patientID),
			zap.String("visit_id", visit.ID),
		)
		return nil
	}
	s.logger.Info("visit appended", zap.String("patient_id", patientID), zap.String("visit_id", visit.ID))
	return nil
}

func (s *PatientServiceImpl) RecordVisit(ctx context.Context, patientID string, req dtos.AppendVisitRequest) (*entities.Visit, error) {
	if strings.TrimSpace(req.Diagnosis) == "" {
		return nil, fmt.Errorf("%w: diagnosis", ErrMissingRequiredField)
	}
	visit := entities.Visit{
		ID:           newVisitID(),
		Date:         strings.TrimSpace(req.Date),
		Diagnosis:    strings.TrimSpace(req.Diagnosis),
		Note:         req.Note,
		ImageURL:     req.ImageURL,
		MaskURL:      req.MaskURL,
		Confidence:   req.Confidence,
		LesionAreaPx: req.LesionAreaPx,
	}
	if visit.Date == "" {
		visit.Date = s.now().Format(visitDateLayout)
	} else if _, err := time.Parse(visitDateLayout, visit.Date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidField)
	}
	if req.Severity != "" {
		sev, err := entities.ParseSeverity(req.Severity)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidField, err)
		}
		visit.Severity = sev
	}
	if visit.Confidence < 0 || visit.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence must be within [0,1]", ErrInvalidField)
	}

	ok, err := s.patientRepo.AppendVisit(ctx, patientID, visit)
	if err != nil {
		return nil, fmt.Errorf("append visit: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, patientID)
	}
	s.logger.Info("visit recorded", zap.String("patient_id", patientID), zap.String("visit_id", visit.ID))
	return &visit, nil
}

func newVisitID() string {
	return "vis_" + uuid.NewString()
}

// foldForSearch lower-cases s and strips diacritics, so "Lê Văn C" and
// "le van c" compare equal.
func foldForSearch(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.NewReplacer("đ", "d", "Đ", "d").Replace(folded)
	return strings.ToLower(folded)
}
