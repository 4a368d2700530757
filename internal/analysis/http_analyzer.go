package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"oct-review-service/internal/domain/entities"
)

// predictResponse is the envelope returned by POST /predict.
type predictResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// HTTPAnalyzer posts the scan as multipart form field "file" to {base}/predict.
// Failures are returned as-is; there are no retries.
type HTTPAnalyzer struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewHTTPAnalyzer(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPAnalyzer {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPAnalyzer{httpClient: client, logger: logger}
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, scan Scan) (*entities.AnalysisResult, error) {
	a.logger.Info("calling analysis backend",
		zap.String("filename", scan.Filename),
		zap.Int("bytes", len(scan.Data)),
	)

	var envelope predictResponse
	resp, err := a.httpClient.R().
		SetContext(ctx).
		SetMultipartField("file", scan.Filename, scan.ContentType, bytes.NewReader(scan.Data)).
		SetResult(&envelope).
		SetError(&envelope).
		Post("/predict")
	if err != nil {
		a.logger.Error("analysis call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	if resp.IsError() {
		a.logger.Error("analysis backend returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("msg", envelope.Error),
		)
		return nil, fmt.Errorf("%w: status %d %s", ErrAnalysisFailed, resp.StatusCode(), envelope.Error)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("%w: backend reported failure %s", ErrAnalysisFailed, envelope.Error)
	}

	var result entities.AnalysisResult
	if err := json.Unmarshal(envelope.Data, &result); err != nil {
		return nil, fmt.Errorf("%w: decode result: %v", ErrAnalysisFailed, err)
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	a.logger.Info("analysis complete",
		zap.String("diagnosis", result.Diagnosis),
		zap.Float64("confidence", result.Confidence),
		zap.String("processing_time", result.ProcessingTime),
	)
	return &result, nil
}
