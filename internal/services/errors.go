package services

import (
	"errors"

	"oct-review-service/internal/analysis"
	"oct-review-service/internal/scan"
	"oct-review-service/internal/viewer"
)

var (
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidField         = errors.New("invalid field value")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrVisitNotFound        = errors.New("visit not found")
	ErrAnalysisInProgress   = errors.New("an analysis is already running for this patient")
	ErrSessionNotFound      = errors.New("viewer session not found")
	ErrExportNotFound       = errors.New("export not found")
	ErrMediaNotFound        = errors.New("media not found")

	ErrUnsupportedScanType = scan.ErrUnsupportedScanType
	ErrNotRenderable       = scan.ErrNotRenderable
	ErrAnalysisFailed      = analysis.ErrAnalysisFailed
	ErrToolModeMismatch    = viewer.ErrToolModeMismatch
	ErrNavigationLocked    = viewer.ErrNavigationLocked
)
