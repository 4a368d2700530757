package dtos

import "oct-review-service/internal/viewer"

// CreateViewerSessionRequest opens a viewer on a stored visit, or on explicit
// media keys when no visit is given.
type CreateViewerSessionRequest struct {
	PatientID      string  `json:"patientId"`
	VisitID        string  `json:"visitId"`
	ImageURL       string  `json:"imageUrl"`
	MaskURL        string  `json:"maskUrl"`
	ViewportWidth  float64 `json:"viewportWidth"`
	ViewportHeight float64 `json:"viewportHeight"`
}

// ViewerSessionResponse describes a session and its current state.
type ViewerSessionResponse struct {
	SessionID string       `json:"sessionId"`
	ImageURL  string       `json:"imageUrl"`
	MaskURL   string       `json:"maskUrl,omitempty"`
	State     viewer.State `json:"state"`
}

type ZoomRequest struct {
	Direction string `json:"direction"` // in | out
}

type WheelRequest struct {
	DeltaY float64 `json:"deltaY"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type PanRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type ToolRequest struct {
	Mode string `json:"mode"`
}

type OpacityRequest struct {
	Value int `json:"value"`
}

type StrokeRequest struct {
	Points []viewer.Point `json:"points"`
	Width  float64        `json:"width"`
}

type EraseRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}
