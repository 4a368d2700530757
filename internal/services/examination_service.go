package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"oct-review-service/internal/analysis"
	"oct-review-service/internal/domain/dtos"
	"oct-review-service/internal/domain/entities"
	"oct-review-service/internal/scan"
	"oct-review-service/internal/storage"
	"oct-review-service/internal/viewer"
)

// ExaminationServiceImpl implements ExaminationServiceContract.
type ExaminationServiceImpl struct {
	patients PatientServiceContract
	analyzer analysis.Analyzer
	media    storage.Store
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewExaminationService(patients PatientServiceContract, analyzer analysis.Analyzer, media storage.Store, logger *zap.Logger) *ExaminationServiceImpl {
	return &ExaminationServiceImpl{
		patients: patients,
		analyzer: analyzer,
		media:    media,
		logger:   logger,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
}

func (s *ExaminationServiceImpl) acquire(patientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[patientID]; busy {
		return false
	}
	s.inFlight[patientID] = struct{}{}
	return true
}

func (s *ExaminationServiceImpl) release(patientID string) {
	s.mu.Lock()
	delete(s.inFlight, patientID)
	s.mu.Unlock()
}

func (s *ExaminationServiceImpl) Examine(ctx context.Context, patientID string, upload ScanUpload) (*dtos.ExaminationResponse, error) {
	contentType, err := scan.Validate(upload.Filename, upload.ContentType)
	if err != nil {
		return nil, err
	}
	if len(upload.Data) == 0 {
		return nil, fmt.Errorf("%w: file", ErrMissingRequiredField)
	}

	log := s.logger.With(zap.String("patient_id", patientID), zap.String("filename", upload.Filename))
	if patientID != "" {
		if _, err := s.patients.GetPatient(ctx, patientID); err != nil {
			return nil, err
		}
		if !s.acquire(patientID) {
			return nil, ErrAnalysisInProgress
		}
		defer s.release(patientID)
	}

	key := "scans/" + uuid.NewString() + scan.Extension(contentType)
	if err := s.media.Put(ctx, key, upload.Data, contentType); err != nil {
		log.Error("store scan failed", zap.Error(err))
		return nil, fmt.Errorf("store scan: %w", err)
	}
	imageURL := storage.URLForKey(key)

	started := time.Now()
	result, err := s.analyzer.Analyze(ctx, analysis.Scan{
		Filename:    upload.Filename,
		ContentType: contentType,
		Data:        upload.Data,
		URL:         imageURL,
	})
	if err != nil {
		log.Error("analysis failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		s.discardScan(ctx, log, key)
		return nil, fmt.Errorf("analyze scan: %w", err)
	}
	if result.LesionAreaPx == 0 && result.MaskURL != "" {
		result.LesionAreaPx = s.measureLesion(ctx, log, result.MaskURL)
	}
	log.Info("analysis finished",
		zap.String("diagnosis", result.Diagnosis),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("elapsed", time.Since(started)),
	)

	resp := &dtos.ExaminationResponse{Result: *result}
	if patientID == "" {
		return resp, nil
	}

	visit := entities.Visit{
		ID:           newVisitID(),
		Date:         s.now().Format(visitDateLayout),
		Diagnosis:    result.Diagnosis,
		Severity:     result.Severity,
		Note:         fmt.Sprintf("AI analysis. Confidence: %.1f%%", result.Confidence*100),
		ImageURL:     imageURL,
		MaskURL:      result.MaskURL,
		Confidence:   result.Confidence,
		LesionAreaPx: result.LesionAreaPx,
	}
	if err := s.patients.AppendVisit(ctx, patientID, visit); err != nil {
		s.discardScan(ctx, log, key)
		return nil, err
	}
	resp.Visit = &visit
	resp.Saved = true
	return resp, nil
}

// discardScan removes a scan stored for an examination that did not complete.
// It runs even when ctx is already cancelled.
func (s *ExaminationServiceImpl) discardScan(ctx context.Context, log *zap.Logger, key string) {
	if err := s.media.Delete(context.WithoutCancel(ctx), key); err != nil {
		log.Warn("discard scan failed", zap.String("key", key), zap.Error(err))
	}
}

// measureLesion counts lesion pixels in a stored mask. Masks held outside the
// media store, or that fail to decode, report zero.
func (s *ExaminationServiceImpl) measureLesion(ctx context.Context, log *zap.Logger, maskURL string) int {
	mask, err := loadImage(ctx, s.media, maskURL)
	if err != nil {
		log.Debug("lesion area unavailable", zap.String("mask_url", maskURL), zap.Error(err))
		return 0
	}
	return viewer.LesionArea(mask)
}
