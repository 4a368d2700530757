package services

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"oct-review-service/internal/adapters"
	"oct-review-service/internal/domain/dtos"
	"oct-review-service/internal/domain/entities"
	"oct-review-service/internal/fhir/mappers"
	"oct-review-service/internal/report"
	"oct-review-service/internal/storage"
)

const ReportExportQueue = "report_export_jobs"

// DefaultStatusTTL is how long a completed or failed export stays queryable.
const DefaultStatusTTL = time.Hour

// ExportJobData is the queued payload of one report export.
type ExportJobData struct {
	ExportID  string `json:"exportId"`
	PatientID string `json:"patientId"`
	VisitID   string `json:"visitId"`
}

// ReportServiceImpl implements ReportServiceContract.
type ReportServiceImpl struct {
	patients     PatientServiceContract
	media        storage.Store
	queueAdapter adapters.QueueAdapter
	logger       *zap.Logger
	now          func() time.Time
	statusTTL    time.Duration

	mu      sync.RWMutex
	exports map[string]*exportRecord
}

type exportRecord struct {
	status     dtos.ExportStatusResponse
	finishedAt time.Time // zero while pending or in progress
}

func NewReportService(
	patients PatientServiceContract,
	media storage.Store,
	queueAdapter adapters.QueueAdapter,
	logger *zap.Logger,
) *ReportServiceImpl {
	return &ReportServiceImpl{
		patients:     patients,
		media:        media,
		queueAdapter: queueAdapter,
		logger:       logger,
		now:          time.Now,
		statusTTL:    DefaultStatusTTL,
		exports:      make(map[string]*exportRecord),
	}
}

// SetStatusTTL changes how long finished exports are kept. Non-positive
// values keep the current one.
func (s *ReportServiceImpl) SetStatusTTL(ttl time.Duration) {
	if ttl > 0 {
		s.statusTTL = ttl
	}
}

// PruneFinished forgets completed and failed exports older than the status
// TTL. Stored report files are kept.
func (s *ReportServiceImpl) PruneFinished() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.exports {
		if !rec.finishedAt.IsZero() && now.Sub(rec.finishedAt) > s.statusTTL {
			delete(s.exports, id)
			n++
		}
	}
	return n
}

// RunJanitor prunes finished exports until ctx is done.
func (s *ReportServiceImpl) RunJanitor(ctx context.Context) {
	runJanitor(ctx, s.logger, sweepInterval, s.PruneFinished)
}

func (s *ReportServiceImpl) Start(ctx context.Context) error {
	if err := s.queueAdapter.StartConsuming(ctx, ReportExportQueue, s.handleExportJob); err != nil {
		s.logger.Error("failed to start export consumer", zap.String("queue", ReportExportQueue), zap.Error(err))
		return fmt.Errorf("start consumer for %s: %w", ReportExportQueue, err)
	}
	s.logger.Info("report service started", zap.String("queue", ReportExportQueue))
	return nil
}

func (s *ReportServiceImpl) Stop(ctx context.Context) error {
	s.logger.Info("report service stopping")
	return s.queueAdapter.StopConsuming(ctx, ReportExportQueue)
}

func (s *ReportServiceImpl) lookupVisit(ctx context.Context, patientID, visitID string) (*entities.Patient, entities.Visit, error) {
	patient, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, entities.Visit{}, err
	}
	visit, ok := patient.FindVisit(visitID)
	if !ok {
		return nil, entities.Visit{}, fmt.Errorf("%w: %s", ErrVisitNotFound, visitID)
	}
	return patient, visit, nil
}

// optionalImage loads a report image. Reports are still produced without it.
func (s *ReportServiceImpl) optionalImage(ctx context.Context, url string) image.Image {
	if url == "" {
		return nil
	}
	img, err := loadImage(ctx, s.media, url)
	if err != nil {
		s.logger.Debug("report image skipped", zap.String("url", url), zap.Error(err))
		return nil
	}
	return img
}

func (s *ReportServiceImpl) RenderVisitReport(ctx context.Context, patientID, visitID string) ([]byte, error) {
	patient, visit, err := s.lookupVisit(ctx, patientID, visitID)
	if err != nil {
		return nil, err
	}
	var mask image.Image
	if visit.MaskURL != visit.ImageURL {
		mask = s.optionalImage(ctx, visit.MaskURL)
	}
	return report.RenderVisitPDF(report.VisitReport{
		Patient:     patient,
		Visit:       visit,
		Scan:        s.optionalImage(ctx, visit.ImageURL),
		Mask:        mask,
		GeneratedAt: s.now(),
	})
}

func (s *ReportServiceImpl) RenderRoster(ctx context.Context) ([]byte, error) {
	patients, err := s.patients.ListPatients(ctx, dtos.PatientListQuery{})
	if err != nil {
		return nil, err
	}
	return report.RenderRosterXLSX(patients)
}

func (s *ReportServiceImpl) PatientBundle(ctx context.Context, patientID string) (json.RawMessage, error) {
	patient, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	bundle, err := mappers.MapPatientBundle(*patient, s.now())
	if err != nil {
		return nil, fmt.Errorf("map patient %s to FHIR: %w", patientID, err)
	}
	return bundle, nil
}

func (s *ReportServiceImpl) RequestExport(ctx context.Context, request dtos.InitiateExportRequest) (string, error) {
	if request.PatientID == "" || request.VisitID == "" {
		return "", fmt.Errorf("%w: patientId and visitId", ErrMissingRequiredField)
	}
	if _, _, err := s.lookupVisit(ctx, request.PatientID, request.VisitID); err != nil {
		return "", err
	}

	exportID := uuid.NewString()
	jobBytes, err := json.Marshal(ExportJobData{ExportID: exportID, PatientID: request.PatientID, VisitID: request.VisitID})
	if err != nil {
		return "", fmt.Errorf("encode export job: %w", err)
	}

	s.PruneFinished()
	s.setStatus(dtos.ExportStatusResponse{
		ExportProgress: dtos.ExportProgress{ExportID: exportID, Status: dtos.ExportPending},
		PatientID:      request.PatientID,
		VisitID:        request.VisitID,
	})
	if err := s.queueAdapter.Publish(ctx, ReportExportQueue, jobBytes); err != nil {
		s.logger.Error("failed to enqueue export", zap.String("export_id", exportID), zap.Error(err))
		s.updateStatus(exportID, dtos.ExportFailed, "could not enqueue export", "")
		return "", fmt.Errorf("enqueue export job: %w", err)
	}
	s.logger.Info("export queued",
		zap.String("export_id", exportID),
		zap.String("patient_id", request.PatientID),
		zap.String("visit_id", request.VisitID),
	)
	return exportID, nil
}

func (s *ReportServiceImpl) ExportStatus(ctx context.Context, exportID string) (*dtos.ExportStatusResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.exports[exportID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExportNotFound, exportID)
	}
	cp := rec.status
	return &cp, nil
}

func (s *ReportServiceImpl) setStatus(st dtos.ExportStatusResponse) {
	s.mu.Lock()
	s.exports[st.ExportID] = &exportRecord{status: st}
	s.mu.Unlock()
}

func (s *ReportServiceImpl) updateStatus(exportID, status, message, reportURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.exports[exportID]
	if !ok {
		return
	}
	rec.status.Status = status
	rec.status.Message = message
	rec.status.ReportURL = reportURL
	if status == dtos.ExportCompleted || status == dtos.ExportFailed {
		rec.finishedAt = s.now()
	}
}

func (s *ReportServiceImpl) handleExportJob(ctx context.Context, jobData []byte) error {
	var job ExportJobData
	if err := json.Unmarshal(jobData, &job); err != nil {
		return fmt.Errorf("decode export job: %w", err)
	}
	log := s.logger.With(zap.String("export_id", job.ExportID))
	s.updateStatus(job.ExportID, dtos.ExportInProgress, "", "")

	pdf, err := s.RenderVisitReport(ctx, job.PatientID, job.VisitID)
	if err != nil {
		log.Error("export render failed", zap.Error(err))
		s.updateStatus(job.ExportID, dtos.ExportFailed, err.Error(), "")
		return err
	}
	key := "reports/" + job.ExportID + ".pdf"
	if err := s.media.Put(ctx, key, pdf, "application/pdf"); err != nil {
		log.Error("export store failed", zap.Error(err))
		s.updateStatus(job.ExportID, dtos.ExportFailed, "could not store report", "")
		return err
	}
	s.updateStatus(job.ExportID, dtos.ExportCompleted, "", storage.URLForKey(key))
	log.Info("export completed", zap.Int("bytes", len(pdf)))
	return nil
}
