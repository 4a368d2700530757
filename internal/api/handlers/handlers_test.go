package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"oct-review-service/internal/adapters"
	"oct-review-service/internal/analysis"
	"oct-review-service/internal/domain/dtos"
	"oct-review-service/internal/domain/entities"
	"oct-review-service/internal/persistence"
	"oct-review-service/internal/services"
	"oct-review-service/internal/storage"
	"oct-review-service/internal/viewer"
)

const (
	exportWait = 5 * time.Second
	exportPoll = 20 * time.Millisecond
)

type testServer struct {
	app   *fiber.App
	media *storage.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	repo, err := persistence.NewDocumentPatientRepository(ctx, persistence.NewMemoryKV(), "patients_data", persistence.SeedPatients(), logger)
	require.NoError(t, err)
	media := storage.NewMemoryStore()
	queue := adapters.NewInMemoryQueueAdapter(logger)
	t.Cleanup(func() { _ = queue.StopAll(context.Background()) })

	patients := services.NewPatientService(repo, logger)
	exams := services.NewExaminationService(patients, analysis.NewMockAnalyzer(0), media, logger)
	reports := services.NewReportService(patients, media, queue, logger)
	require.NoError(t, reports.Start(ctx))
	viewers := services.NewViewerService(patients, media, viewer.Options{}, logger)

	app := fiber.New()
	RegisterRoutes(app,
		NewPatientHandler(patients, logger),
		NewExaminationHandler(exams, logger),
		NewReportHandler(reports, logger),
		NewViewerHandler(viewers, logger),
		NewMediaHandler(media, logger),
	)
	return &testServer{app: app, media: media}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, data
}

func (s *testServer) upload(t *testing.T, patientID, filename, contentType string, data []byte) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if patientID != "" {
		require.NoError(t, w.WriteField("patient_id", patientID))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/examinations", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return s.send(t, req)
}

func scanPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 12, 12))
	for i := range img.Pix {
		img.Pix[i] = 40
	}
	img.SetGray(3, 3, color.Gray{Y: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func errorOf(t *testing.T, body []byte) string {
	t.Helper()
	var e struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &e))
	return e.Error
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestPatientRoutes(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/api/patients", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list dtos.PatientListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 2, list.Total)

	resp, body = s.do(t, http.MethodPost, "/api/patients", dtos.CreatePatientRequest{Name: "Lê Văn C", Age: 40, Gender: "Nam"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created entities.Patient
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, entities.LastVisitNever, created.LastVisit)

	resp, body = s.do(t, http.MethodGet, "/api/patients?q=le%20van%20c", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, created.ID, list.Patients[0].ID)

	resp, _ = s.do(t, http.MethodGet, "/api/patients/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/api/patients/BN404", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, errorOf(t, body), "patient not found")

	resp, _ = s.do(t, http.MethodPost, "/api/patients", dtos.CreatePatientRequest{Name: "No Age"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/patients/BN001/visits", dtos.AppendVisitRequest{Diagnosis: "Normal", Severity: "Low"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = s.do(t, http.MethodPost, "/api/patients/BN404/visits", dtos.AppendVisitRequest{Diagnosis: "Normal"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPatientRoutes_SeverityFilter(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, http.MethodPost, "/api/patients/BN002/visits", dtos.AppendVisitRequest{Diagnosis: "CNV", Severity: "High"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := s.do(t, http.MethodGet, "/api/patients", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list dtos.PatientListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, 1, list.HighRisk)

	resp, body = s.do(t, http.MethodGet, "/api/patients?severity=High", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list = dtos.PatientListResponse{}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "BN002", list.Patients[0].ID)
	assert.Equal(t, entities.SeverityHigh, list.Patients[0].LatestSeverity)

	resp, body = s.do(t, http.MethodGet, "/api/patients?severity=None", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list = dtos.PatientListResponse{}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "BN001", list.Patients[0].ID)
	assert.Empty(t, list.Patients[0].LatestSeverity)

	resp, _ = s.do(t, http.MethodGet, "/api/patients?severity=urgent", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExaminationAndReports(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.upload(t, "BN001", "scan.png", "image/png", scanPNG(t))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var exam dtos.ExaminationResponse
	require.NoError(t, json.Unmarshal(body, &exam))
	require.True(t, exam.Saved)
	require.NotNil(t, exam.Visit)
	assert.Equal(t, analysis.MockDiagnosis, exam.Result.Diagnosis)

	// the stored scan is served back
	resp, body = s.do(t, http.MethodGet, exam.Visit.ImageURL, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, scanPNG(t), body)

	resp, body = s.do(t, http.MethodGet, "/api/patients/BN001/visits/"+exam.Visit.ID+"/report.pdf", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, contentTypePDF, resp.Header.Get(fiber.HeaderContentType))
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	resp, _ = s.do(t, http.MethodGet, "/api/patients/export.xlsx", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, contentTypeXLSX, resp.Header.Get(fiber.HeaderContentType))

	resp, body = s.do(t, http.MethodGet, "/api/patients/BN001/fhir", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"resourceType": "Bundle"`)

	resp, body = s.do(t, http.MethodPost, "/api/reports/exports", dtos.InitiateExportRequest{PatientID: "BN001", VisitID: exam.Visit.ID})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var st dtos.ExportStatusResponse
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, dtos.ExportPending, st.Status)

	require.Eventually(t, func() bool {
		resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/api/reports/exports/"+st.ExportID, nil), -1)
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		defer resp.Body.Close()
		var cur dtos.ExportStatusResponse
		return json.NewDecoder(resp.Body).Decode(&cur) == nil && cur.Status == dtos.ExportCompleted
	}, exportWait, exportPoll)

	resp, _ = s.do(t, http.MethodGet, "/api/reports/exports/unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExaminationErrors(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.upload(t, "BN001", "notes.txt", "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp, _ = s.upload(t, "BN404", "scan.png", "image/png", scanPNG(t))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPost, "/api/examinations", nil)
	resp, _ = s.send(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// guest mode: analysed, not saved
	resp, body := s.upload(t, "", "scan.png", "image/png", scanPNG(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var exam dtos.ExaminationResponse
	require.NoError(t, json.Unmarshal(body, &exam))
	assert.False(t, exam.Saved)
}

func TestViewerRoutes(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.media.Put(context.Background(), "scans/v.png", scanPNG(t), "image/png"))

	resp, body := s.do(t, http.MethodPost, "/api/viewer/sessions", dtos.CreateViewerSessionRequest{ImageURL: "/media/scans/v.png", MaskURL: "/media/scans/v.png"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var sess dtos.ViewerSessionResponse
	require.NoError(t, json.Unmarshal(body, &sess))
	base := "/api/viewer/sessions/" + sess.SessionID

	resp, body = s.do(t, http.MethodPost, base+"/zoom", dtos.ZoomRequest{Direction: "in"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &sess))
	assert.InDelta(t, 1.25, sess.State.Transform.Scale, 1e-9)

	resp, _ = s.do(t, http.MethodPut, base+"/tool", dtos.ToolRequest{Mode: "annotate"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, base+"/pan", dtos.PanRequest{DX: 3})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, errorOf(t, body), "navigation is disabled")

	resp, _ = s.do(t, http.MethodPost, base+"/strokes", dtos.StrokeRequest{Points: []viewer.Point{{X: 6, Y: 6}, {X: 9, Y: 9}}, Width: 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, http.MethodPost, base+"/erase", dtos.EraseRequest{X: 6, Y: 6, Radius: 1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "erase needs the erase tool")

	resp, _ = s.do(t, http.MethodPut, base+"/opacity", dtos.OpacityRequest{Value: 30})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, http.MethodPost, base+"/layers/lesion/toggle", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, http.MethodPost, base+"/undo", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, http.MethodPost, base+"/reset", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, base+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m viewer.MaskAgreement
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, 1, m.MaskPixels)

	resp, body = s.do(t, http.MethodGet, base+"/render.png", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, err := png.Decode(bytes.NewReader(body))
	assert.NoError(t, err)

	resp, _ = s.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = s.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMediaNotFound(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, http.MethodGet, "/media/scans/none.png", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMediaDoesNotServeSidecars(t *testing.T) {
	local, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, local.Put(context.Background(), "scans/a1.png", scanPNG(t), "image/png"))
	app := fiber.New()
	RegisterMediaRoutes(app, NewMediaHandler(local, zap.NewNop()))
	s := &testServer{app: app}

	resp, _ := s.do(t, http.MethodGet, "/media/scans/a1.png", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))

	resp, _ = s.do(t, http.MethodGet, "/media/scans/a1.png.meta", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, fiber.StatusBadGateway, statusFor(services.ErrAnalysisFailed))
	assert.Equal(t, fiber.StatusConflict, statusFor(services.ErrAnalysisInProgress))
	assert.Equal(t, fiber.StatusUnsupportedMediaType, statusFor(services.ErrNotRenderable))
	assert.Equal(t, fiber.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, fiber.StatusInternalServerError, statusFor(assert.AnError))
}
