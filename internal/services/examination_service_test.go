package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"oct-review-service/internal/analysis"
	"oct-review-service/internal/domain/dtos"
	"oct-review-service/internal/domain/entities"
	"oct-review-service/internal/storage"
)

// pngBytes encodes a w*h image, black except for a white square in the
// top-left quarter.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{A: 255}
			if x < w/2 && y < h/2 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newExaminationFixture(t *testing.T, analyzer analysis.Analyzer) (*ExaminationServiceImpl, *PatientServiceImpl, *storage.MemoryStore) {
	t.Helper()
	patients := newSeededPatientService(t)
	media := storage.NewMemoryStore()
	svc := NewExaminationService(patients, analyzer, media, zap.NewNop())
	svc.now = fixedClock
	return svc, patients, media
}

func TestExamine_AppendsVisitForPatient(t *testing.T) {
	analyzer := &MockAnalyzer{}
	svc, patients, media := newExaminationFixture(t, analyzer)
	ctx := context.Background()

	resp, err := svc.Examine(ctx, "BN001", ScanUpload{Filename: "scan.png", ContentType: "image/png", Data: pngBytes(t, 8, 8)})
	require.NoError(t, err)
	assert.True(t, resp.Saved)
	assert.Equal(t, analysis.MockDiagnosis, resp.Result.Diagnosis)
	assert.Equal(t, int32(1), atomic.LoadInt32(&analyzer.AnalyzeCallCount))

	p, err := patients.GetPatient(ctx, "BN001")
	require.NoError(t, err)
	require.Len(t, p.History, 1)
	v := p.History[0]
	assert.Equal(t, resp.Visit.ID, v.ID)
	assert.Equal(t, "2025-03-01", v.Date)
	assert.Equal(t, "2025-03-01", p.LastVisit)
	assert.Equal(t, entities.SeverityHigh, v.Severity)
	assert.InDelta(t, 0.94, v.Confidence, 1e-9)
	assert.Equal(t, 12540, v.LesionAreaPx)
	assert.Equal(t, "AI analysis. Confidence: 94.0%", v.Note)
	assert.Equal(t, v.ImageURL, v.MaskURL, "mock mask is the scan itself")

	key, ok := storage.KeyFromURL(v.ImageURL)
	require.True(t, ok)
	_, ct, err := media.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
}

func TestExamine_GuestModeDoesNotPersist(t *testing.T) {
	svc, patients, media := newExaminationFixture(t, &MockAnalyzer{})
	ctx := context.Background()
	before, _ := patients.ListPatients(ctx, dtos.PatientListQuery{})

	resp, err := svc.Examine(ctx, "", ScanUpload{Filename: "scan.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}})
	require.NoError(t, err)
	assert.False(t, resp.Saved)
	assert.Nil(t, resp.Visit)
	assert.Equal(t, analysis.MockDiagnosis, resp.Result.Diagnosis)
	assert.Equal(t, 1, media.Len(), "the scan is still stored for viewing")

	after, _ := patients.ListPatients(ctx, dtos.PatientListQuery{})
	assert.Equal(t, before, after)
}

func TestExamine_UnsupportedTypeNeverReachesAnalyzer(t *testing.T) {
	analyzer := &MockAnalyzer{}
	svc, _, media := newExaminationFixture(t, analyzer)

	_, err := svc.Examine(context.Background(), "BN001", ScanUpload{Filename: "notes.pdf", ContentType: "application/pdf", Data: []byte("%PDF")})
	assert.ErrorIs(t, err, ErrUnsupportedScanType)
	assert.Equal(t, int32(0), analyzer.AnalyzeCallCount)
	assert.Equal(t, 0, media.Len())
}

func TestExamine_DICOMAccepted(t *testing.T) {
	svc, _, _ := newExaminationFixture(t, &MockAnalyzer{})
	resp, err := svc.Examine(context.Background(), "BN002", ScanUpload{Filename: "OCT_0001.dcm", ContentType: "application/octet-stream", Data: []byte("DICM")})
	require.NoError(t, err)
	assert.True(t, resp.Saved)
}

func TestExamine_EmptyFile(t *testing.T) {
	svc, _, _ := newExaminationFixture(t, &MockAnalyzer{})
	_, err := svc.Examine(context.Background(), "BN001", ScanUpload{Filename: "scan.png", ContentType: "image/png"})
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestExamine_UnknownPatient(t *testing.T) {
	analyzer := &MockAnalyzer{}
	svc, _, _ := newExaminationFixture(t, analyzer)
	_, err := svc.Examine(context.Background(), "BN404", ScanUpload{Filename: "scan.png", ContentType: "image/png", Data: pngBytes(t, 4, 4)})
	assert.ErrorIs(t, err, ErrPatientNotFound)
	assert.Equal(t, int32(0), analyzer.AnalyzeCallCount)
}

func TestExamine_AnalysisFailureAppendsNothing(t *testing.T) {
	analyzer := &MockAnalyzer{
		AnalyzeFunc: func(ctx context.Context, scan analysis.Scan) (*entities.AnalysisResult, error) {
			return nil, fmt.Errorf("%w: upstream returned 503", analysis.ErrAnalysisFailed)
		},
	}
	svc, patients, media := newExaminationFixture(t, analyzer)
	ctx := context.Background()

	_, err := svc.Examine(ctx, "BN001", ScanUpload{Filename: "scan.png", ContentType: "image/png", Data: pngBytes(t, 4, 4)})
	assert.ErrorIs(t, err, ErrAnalysisFailed)

	p, _ := patients.GetPatient(ctx, "BN001")
	assert.Empty(t, p.History)
	assert.Equal(t, "2025-02-15", p.LastVisit)
	assert.Equal(t, 0, media.Len(), "the uploaded scan is removed with the failed analysis")

	// the guard is released after a failure
	analyzer.AnalyzeFunc = nil
	_, err = svc.Examine(ctx, "BN001", ScanUpload{Filename: "scan.png", ContentType: "image/png", Data: pngBytes(t, 4, 4)})
	assert.NoError(t, err)
}

func TestExamine_SecondAnalysisForSamePatientRejected(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	analyzer := &MockAnalyzer{
		AnalyzeFunc: func(ctx context.Context, scan analysis.Scan) (*entities.AnalysisResult, error) {
			close(started)
			<-unblock
			return analysis.NewMockAnalyzer(0).Analyze(ctx, scan)
		},
	}
	svc, patients, _ := newExaminationFixture(t, analyzer)
	ctx := context.Background()
	upload := ScanUpload{Filename: "scan.png", ContentType: "image/png", Data: pngBytes(t, 4, 4)}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Examine(ctx, "BN001", upload)
		done <- err
	}()
	<-started

	_, err := svc.Examine(ctx, "BN001", upload)
	assert.ErrorIs(t, err, ErrAnalysisInProgress)

	close(unblock)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("first analysis did not finish")
	}

	p, _ := patients.GetPatient(ctx, "BN001")
	assert.Len(t, p.History, 1, "exactly one visit per completed analysis")
}

func TestExamine_CancelledAnalysis(t *testing.T) {
	svc, patients, media := newExaminationFixture(t, analysis.NewMockAnalyzer(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Examine(ctx, "BN002", ScanUpload{Filename: "scan.png", ContentType: "image/png", Data: pngBytes(t, 4, 4)})
	assert.True(t, errors.Is(err, context.Canceled))

	p, _ := patients.GetPatient(context.Background(), "BN002")
	assert.Empty(t, p.History)
	assert.Equal(t, 0, media.Len())
}

func TestExamine_SaveFailureDiscardsScan(t *testing.T) {
	repo := &MockPatientRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*entities.Patient, error) {
			return &entities.Patient{ID: id, Name: "A", Age: 30}, nil
		},
		AppendVisitFunc: func(ctx context.Context, patientID string, visit entities.Visit) (bool, error) {
			return false, errors.New("connection reset")
		},
	}
	media := storage.NewMemoryStore()
	svc := NewExaminationService(NewPatientService(repo, zap.NewNop()), &MockAnalyzer{}, media, zap.NewNop())

	_, err := svc.Examine(context.Background(), "BN001", ScanUpload{Filename: "scan.png", ContentType: "image/png", Data: pngBytes(t, 4, 4)})
	assert.Error(t, err)
	assert.Equal(t, 0, media.Len())
}

func TestExamine_MeasuresLesionAreaFromMask(t *testing.T) {
	analyzer := &MockAnalyzer{
		AnalyzeFunc: func(ctx context.Context, scan analysis.Scan) (*entities.AnalysisResult, error) {
			return &entities.AnalysisResult{
				Diagnosis:  "Drusen",
				Severity:   entities.SeverityMedium,
				Confidence: 0.8,
				MaskURL:    scan.URL,
			}, nil
		},
	}
	svc, patients, _ := newExaminationFixture(t, analyzer)
	ctx := context.Background()

	resp, err := svc.Examine(ctx, "BN002", ScanUpload{Filename: "scan.png", ContentType: "image/png", Data: pngBytes(t, 8, 8)})
	require.NoError(t, err)
	assert.Equal(t, 16, resp.Result.LesionAreaPx, "white top-left quarter of an 8x8 mask")

	p, _ := patients.GetPatient(ctx, "BN002")
	require.Len(t, p.History, 1)
	assert.Equal(t, 16, p.History[0].LesionAreaPx)

	// masks the store cannot resolve leave the area at zero
	analyzer.AnalyzeFunc = func(ctx context.Context, scan analysis.Scan) (*entities.AnalysisResult, error) {
		return &entities.AnalysisResult{Diagnosis: "Drusen", Severity: entities.SeverityMedium, MaskURL: "https://cdn.example.org/m.png"}, nil
	}
	resp, err = svc.Examine(ctx, "BN002", ScanUpload{Filename: "scan.png", ContentType: "image/png", Data: pngBytes(t, 8, 8)})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Result.LesionAreaPx)
}

func TestExamine_NewPatientScenario(t *testing.T) {
	svc, patients, _ := newExaminationFixture(t, analysis.NewMockAnalyzer(0))
	ctx := context.Background()

	created, err := patients.CreatePatient(ctx, dtos.CreatePatientRequest{Name: "Lê Văn C", Age: 40})
	require.NoError(t, err)
	fresh, err := patients.GetPatient(ctx, created.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.ID)
	assert.Empty(t, fresh.History)

	_, err = svc.Examine(ctx, created.ID, ScanUpload{Filename: "oct.png", ContentType: "image/png", Data: pngBytes(t, 8, 8)})
	require.NoError(t, err)

	p, err := patients.GetPatient(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, p.History, 1)
	assert.Equal(t, "Choroidal Neovascularization (CNV)", p.History[0].Diagnosis)
	assert.Equal(t, entities.SeverityHigh, p.History[0].Severity)
	assert.Equal(t, 0.94, p.History[0].Confidence)
}
