// Package analysis talks to the segmentation/classification backend.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"oct-review-service/internal/config"
	"oct-review-service/internal/domain/entities"
)

// ErrAnalysisFailed wraps every transport or payload failure of an analyzer.
var ErrAnalysisFailed = errors.New("analysis failed")

// Scan is one uploaded OCT image as handed to an analyzer.
type Scan struct {
	Filename    string
	ContentType string
	Data        []byte
	// URL is where the stored copy of the scan can be fetched from.
	URL string
}

// Analyzer turns a scan into an AnalysisResult. Each call resolves at most once.
type Analyzer interface {
	Analyze(ctx context.Context, scan Scan) (*entities.AnalysisResult, error)
}

// New returns the analyzer selected by cfg.Mode.
func New(cfg config.AnalysisConfig, logger *zap.Logger) (Analyzer, error) {
	switch cfg.Mode {
	case "", "mock":
		logger.Info("using mock analyzer", zap.Duration("delay", cfg.MockDelay))
		return NewMockAnalyzer(cfg.MockDelay), nil
	case "http":
		logger.Info("using http analyzer", zap.String("base_url", cfg.BaseURL))
		return NewHTTPAnalyzer(cfg.BaseURL, cfg.Timeout, logger), nil
	}
	return nil, fmt.Errorf("unknown analysis mode %q", cfg.Mode)
}
