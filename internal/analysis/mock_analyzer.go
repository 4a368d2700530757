package analysis

import (
	"context"
	"time"

	"oct-review-service/internal/domain/entities"
)

const (
	MockDiagnosis      = "Choroidal Neovascularization (CNV)"
	MockConfidence     = 0.94
	MockLesionAreaPx   = 12540
	MockProcessingTime = "0.45s"
)

// MockAnalyzer returns a fixed CNV finding after a delay. The mask it reports
// is the scan itself.
type MockAnalyzer struct {
	delay time.Duration
}

func NewMockAnalyzer(delay time.Duration) *MockAnalyzer {
	return &MockAnalyzer{delay: delay}
}

func (m *MockAnalyzer) Analyze(ctx context.Context, scan Scan) (*entities.AnalysisResult, error) {
	if m.delay > 0 {
		t := time.NewTimer(m.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return &entities.AnalysisResult{
		Diagnosis:      MockDiagnosis,
		Confidence:     MockConfidence,
		LesionAreaPx:   MockLesionAreaPx,
		Severity:       entities.SeverityHigh,
		MaskURL:        scan.URL,
		ProcessingTime: MockProcessingTime,
	}, nil
}
