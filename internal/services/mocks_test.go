package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"oct-review-service/internal/adapters"
	"oct-review-service/internal/analysis"
	"oct-review-service/internal/domain/entities"
	"oct-review-service/internal/domain/repositories"
	"oct-review-service/internal/persistence"
)

// --- MockPatientRepository ---
var _ repositories.PatientRepositoryContract = (*MockPatientRepository)(nil)

type MockPatientRepository struct {
	CreateFunc      func(ctx context.Context, patient *entities.Patient) error
	GetByIDFunc     func(ctx context.Context, id string) (*entities.Patient, error)
	UpdateFunc      func(ctx context.Context, patient *entities.Patient) error
	DeleteFunc      func(ctx context.Context, id string) error
	ListAllFunc     func(ctx context.Context) ([]*entities.Patient, error)
	AppendVisitFunc func(ctx context.Context, patientID string, visit entities.Visit) (bool, error)

	CreateFuncCallCount      int32
	ListAllFuncCallCount     int32
	AppendVisitFuncCallCount int32
}

func (m *MockPatientRepository) Create(ctx context.Context, patient *entities.Patient) error {
	atomic.AddInt32(&m.CreateFuncCallCount, 1)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, patient)
	}
	return nil
}

func (m *MockPatientRepository) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, repositories.ErrNotFound
}

func (m *MockPatientRepository) Update(ctx context.Context, patient *entities.Patient) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, patient)
	}
	return nil
}

func (m *MockPatientRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockPatientRepository) ListAll(ctx context.Context) ([]*entities.Patient, error) {
	atomic.AddInt32(&m.ListAllFuncCallCount, 1)
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx)
	}
	return nil, nil
}

func (m *MockPatientRepository) AppendVisit(ctx context.Context, patientID string, visit entities.Visit) (bool, error) {
	atomic.AddInt32(&m.AppendVisitFuncCallCount, 1)
	if m.AppendVisitFunc != nil {
		return m.AppendVisitFunc(ctx, patientID, visit)
	}
	return true, nil
}

// --- MockAnalyzer ---
var _ analysis.Analyzer = (*MockAnalyzer)(nil)

type MockAnalyzer struct {
	AnalyzeFunc      func(ctx context.Context, scan analysis.Scan) (*entities.AnalysisResult, error)
	AnalyzeCallCount int32
}

func (m *MockAnalyzer) Analyze(ctx context.Context, scan analysis.Scan) (*entities.AnalysisResult, error) {
	atomic.AddInt32(&m.AnalyzeCallCount, 1)
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, scan)
	}
	return analysis.NewMockAnalyzer(0).Analyze(ctx, scan)
}

// --- MockQueueAdapter ---
var _ adapters.QueueAdapter = (*MockQueueAdapter)(nil)

// MockQueueAdapter records published messages. With Deliver set, Publish
// hands each message straight to the registered handler.
type MockQueueAdapter struct {
	PublishFunc       func(ctx context.Context, queueName string, jobData []byte) error
	Deliver           bool
	PublishedMessages map[string][][]byte
	Handlers          map[string]adapters.JobHandler
	mu                sync.Mutex
}

func NewMockQueueAdapter() *MockQueueAdapter {
	return &MockQueueAdapter{
		PublishedMessages: make(map[string][][]byte),
		Handlers:          make(map[string]adapters.JobHandler),
	}
}

func (m *MockQueueAdapter) Publish(ctx context.Context, queueName string, jobData []byte) error {
	m.mu.Lock()
	if m.PublishFunc != nil {
		m.mu.Unlock()
		return m.PublishFunc(ctx, queueName, jobData)
	}
	m.PublishedMessages[queueName] = append(m.PublishedMessages[queueName], jobData)
	handler := m.Handlers[queueName]
	m.mu.Unlock()
	if m.Deliver && handler != nil {
		_ = handler(ctx, jobData)
	}
	return nil
}

func (m *MockQueueAdapter) StartConsuming(ctx context.Context, queueName string, handler adapters.JobHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers[queueName] = handler
	return nil
}

func (m *MockQueueAdapter) StopConsuming(ctx context.Context, queueName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Handlers, queueName)
	return nil
}

func (m *MockQueueAdapter) StopAll(ctx context.Context) error { return nil }

// newSeededPatientService returns a patient service over an in-memory
// document store holding the two seed patients.
func newSeededPatientService(t *testing.T) *PatientServiceImpl {
	t.Helper()
	repo, err := persistence.NewDocumentPatientRepository(context.Background(), persistence.NewMemoryKV(), "patients_data", persistence.SeedPatients(), zap.NewNop())
	require.NoError(t, err)
	svc := NewPatientService(repo, zap.NewNop())
	svc.now = fixedClock
	return svc
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
}
