package services

import (
	"context"

	"oct-review-service/internal/domain/dtos"
	"oct-review-service/internal/viewer"
)

// ViewerServiceContract hosts interactive viewer sessions. Every mutating
// call returns the session's state after the change.
type ViewerServiceContract interface {
	CreateSession(ctx context.Context, req dtos.CreateViewerSessionRequest) (*dtos.ViewerSessionResponse, error)
	GetSession(ctx context.Context, id string) (*dtos.ViewerSessionResponse, error)
	CloseSession(ctx context.Context, id string) error

	Zoom(ctx context.Context, id, direction string) (*dtos.ViewerSessionResponse, error)
	Wheel(ctx context.Context, id string, req dtos.WheelRequest) (*dtos.ViewerSessionResponse, error)
	Pan(ctx context.Context, id string, req dtos.PanRequest) (*dtos.ViewerSessionResponse, error)
	Reset(ctx context.Context, id string) (*dtos.ViewerSessionResponse, error)
	SelectTool(ctx context.Context, id, mode string) (*dtos.ViewerSessionResponse, error)
	SetOpacity(ctx context.Context, id string, value int) (*dtos.ViewerSessionResponse, error)
	ToggleLayer(ctx context.Context, id, layerID string) (*dtos.ViewerSessionResponse, error)

	AddStroke(ctx context.Context, id string, req dtos.StrokeRequest) (*dtos.ViewerSessionResponse, error)
	Erase(ctx context.Context, id string, req dtos.EraseRequest) (*dtos.ViewerSessionResponse, error)
	Undo(ctx context.Context, id string) (*dtos.ViewerSessionResponse, error)

	// Metrics compares the AI mask with the session's annotations.
	Metrics(ctx context.Context, id string) (*viewer.MaskAgreement, error)
	// Render returns the composited view as PNG.
	Render(ctx context.Context, id string) ([]byte, error)
}
