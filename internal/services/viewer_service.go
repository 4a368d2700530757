package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"oct-review-service/internal/domain/dtos"
	"oct-review-service/internal/storage"
	"oct-review-service/internal/viewer"
)

// MaskLayerID is the layer the analysis mask is drawn on.
const MaskLayerID = "lesion"

// DefaultSessionTTL closes viewer sessions left idle this long.
const DefaultSessionTTL = 30 * time.Minute

var strokeColor = color.RGBA{R: 255, G: 214, B: 0, A: 255}

type viewerSession struct {
	mu       sync.Mutex
	id       string
	imageURL string
	maskURL  string
	base     image.Image
	mask     image.Image
	view     *viewer.Viewer

	lastUsed atomic.Int64 // unix nanoseconds
}

func (s *viewerSession) touch(now time.Time) { s.lastUsed.Store(now.UnixNano()) }

func (s *viewerSession) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastUsed.Load()))
}

func (s *viewerSession) response() *dtos.ViewerSessionResponse {
	return &dtos.ViewerSessionResponse{
		SessionID: s.id,
		ImageURL:  s.imageURL,
		MaskURL:   s.maskURL,
		State:     s.view.State(),
	}
}

// ViewerServiceImpl implements ViewerServiceContract with in-memory sessions.
type ViewerServiceImpl struct {
	patients PatientServiceContract
	media    storage.Store
	options  viewer.Options
	logger   *zap.Logger
	now      func() time.Time
	idleTTL  time.Duration

	mu       sync.RWMutex
	sessions map[string]*viewerSession
}

// NewViewerService creates the service. options is the template every new
// session starts from; its Layers are copied per session.
func NewViewerService(patients PatientServiceContract, media storage.Store, options viewer.Options, logger *zap.Logger) *ViewerServiceImpl {
	if len(options.Layers) == 0 {
		options.Layers = viewer.DefaultLayers()
	}
	return &ViewerServiceImpl{
		patients: patients,
		media:    media,
		options:  options,
		logger:   logger,
		now:      time.Now,
		idleTTL:  DefaultSessionTTL,
		sessions: make(map[string]*viewerSession),
	}
}

// SetSessionTTL changes the idle timeout. Non-positive values keep the current one.
func (s *ViewerServiceImpl) SetSessionTTL(ttl time.Duration) {
	if ttl > 0 {
		s.idleTTL = ttl
	}
}

// SweepIdle closes every session idle for longer than the session TTL and
// returns how many were closed.
func (s *ViewerServiceImpl) SweepIdle() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.idleSince(now) > s.idleTTL {
			delete(s.sessions, id)
			n++
		}
	}
	if n > 0 {
		s.logger.Info("idle viewer sessions closed", zap.Int("count", n), zap.Int("open", len(s.sessions)))
	}
	return n
}

// RunJanitor sweeps idle sessions until ctx is done.
func (s *ViewerServiceImpl) RunJanitor(ctx context.Context) {
	runJanitor(ctx, s.logger, sweepInterval, s.SweepIdle)
}

func (s *ViewerServiceImpl) CreateSession(ctx context.Context, req dtos.CreateViewerSessionRequest) (*dtos.ViewerSessionResponse, error) {
	imageURL, maskURL := req.ImageURL, req.MaskURL
	if req.VisitID != "" {
		if req.PatientID == "" {
			return nil, fmt.Errorf("%w: patientId", ErrMissingRequiredField)
		}
		patient, err := s.patients.GetPatient(ctx, req.PatientID)
		if err != nil {
			return nil, err
		}
		visit, ok := patient.FindVisit(req.VisitID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrVisitNotFound, req.VisitID)
		}
		imageURL, maskURL = visit.ImageURL, visit.MaskURL
	}
	if imageURL == "" {
		return nil, fmt.Errorf("%w: imageUrl or visitId", ErrMissingRequiredField)
	}

	base, err := loadImage(ctx, s.media, imageURL)
	if err != nil {
		return nil, err
	}
	var mask image.Image
	if maskURL != "" {
		mask, err = loadImage(ctx, s.media, maskURL)
		if err != nil {
			s.logger.Warn("mask unavailable, session opened without overlay", zap.String("mask_url", maskURL), zap.Error(err))
			mask = nil
		}
	}

	opts := s.options
	opts.Layers = append([]viewer.Layer(nil), s.options.Layers...)
	if req.ViewportWidth > 0 && req.ViewportHeight > 0 {
		opts.Viewport = viewer.Size{Width: req.ViewportWidth, Height: req.ViewportHeight}
	}
	b := base.Bounds()
	sess := &viewerSession{
		id:       uuid.NewString(),
		imageURL: imageURL,
		maskURL:  maskURL,
		base:     base,
		mask:     mask,
		view:     viewer.New(opts, viewer.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}),
	}
	sess.touch(s.now())

	s.SweepIdle()
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.logger.Info("viewer session opened", zap.String("session_id", sess.id), zap.String("image_url", imageURL))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.response(), nil
}

func (s *ViewerServiceImpl) session(id string) (*viewerSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.touch(s.now())
	return sess, nil
}

// apply runs fn under the session lock and returns the resulting state.
func (s *ViewerServiceImpl) apply(id string, fn func(v *viewer.Viewer) error) (*dtos.ViewerSessionResponse, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := fn(sess.view); err != nil {
		return nil, err
	}
	return sess.response(), nil
}

func (s *ViewerServiceImpl) GetSession(ctx context.Context, id string) (*dtos.ViewerSessionResponse, error) {
	return s.apply(id, func(*viewer.Viewer) error { return nil })
}

func (s *ViewerServiceImpl) CloseSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	s.logger.Info("viewer session closed", zap.String("session_id", id))
	return nil
}

func (s *ViewerServiceImpl) Zoom(ctx context.Context, id, direction string) (*dtos.ViewerSessionResponse, error) {
	return s.apply(id, func(v *viewer.Viewer) error {
		switch strings.ToLower(direction) {
		case "in":
			v.ZoomIn()
		case "out":
			v.ZoomOut()
		default:
			return fmt.Errorf("%w: direction must be in or out", ErrInvalidField)
		}
		return nil
	})
}

func (s *ViewerServiceImpl) Wheel(ctx context.Context, id string, req dtos.WheelRequest) (*dtos.ViewerSessionResponse, error) {
	return s.apply(id, func(v *viewer.Viewer) error { return v.Wheel(req.DeltaY, req.X, req.Y) })
}

func (s *ViewerServiceImpl) Pan(ctx context.Context, id string, req dtos.PanRequest) (*dtos.ViewerSessionResponse, error) {
	return s.apply(id, func(v *viewer.Viewer) error { return v.Pan(req.DX, req.DY) })
}

func (s *ViewerServiceImpl) Reset(ctx context.Context, id string) (*dtos.ViewerSessionResponse, error) {
	return s.apply(id, func(v *viewer.Viewer) error {
		v.Reset()
		return nil
	})
}

func (s *ViewerServiceImpl) SelectTool(ctx context.Context, id, mode string) (*dtos.ViewerSessionResponse, error) {
	m, err := viewer.ParseToolMode(mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	return s.apply(id, func(v *viewer.Viewer) error {
		v.SelectTool(m)
		return nil
	})
}

func (s *ViewerServiceImpl) SetOpacity(ctx context.Context, id string, value int) (*dtos.ViewerSessionResponse, error) {
	return s.apply(id, func(v *viewer.Viewer) error {
		v.SetOpacity(value)
		return nil
	})
}

// ToggleLayer of an unknown layer id leaves the session unchanged.
func (s *ViewerServiceImpl) ToggleLayer(ctx context.Context, id, layerID string) (*dtos.ViewerSessionResponse, error) {
	return s.apply(id, func(v *viewer.Viewer) error {
		if !v.ToggleLayer(layerID) {
			s.logger.Debug("toggle of unknown layer ignored", zap.String("session_id", id), zap.String("layer_id", layerID))
		}
		return nil
	})
}

func (s *ViewerServiceImpl) AddStroke(ctx context.Context, id string, req dtos.StrokeRequest) (*dtos.ViewerSessionResponse, error) {
	if len(req.Points) == 0 {
		return nil, fmt.Errorf("%w: points", ErrMissingRequiredField)
	}
	return s.apply(id, func(v *viewer.Viewer) error {
		_, err := v.Draw(req.Points, req.Width)
		return err
	})
}

func (s *ViewerServiceImpl) Erase(ctx context.Context, id string, req dtos.EraseRequest) (*dtos.ViewerSessionResponse, error) {
	return s.apply(id, func(v *viewer.Viewer) error {
		_, err := v.Erase(viewer.Point{X: req.X, Y: req.Y}, req.Radius)
		return err
	})
}

func (s *ViewerServiceImpl) Undo(ctx context.Context, id string) (*dtos.ViewerSessionResponse, error) {
	return s.apply(id, func(v *viewer.Viewer) error {
		v.Undo()
		return nil
	})
}

func (s *ViewerServiceImpl) Metrics(ctx context.Context, id string) (*viewer.MaskAgreement, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	content := sess.view.State().Content
	w, h := int(content.Width), int(content.Height)
	truth := sess.view.Annotations().Rasterize(w, h)
	var pred []float64
	if sess.mask != nil {
		pred = viewer.BinarizeMask(sess.mask, w, h)
	} else {
		pred = make([]float64, len(truth))
	}
	agreement := viewer.Agreement(pred, truth)
	return &agreement, nil
}

func (s *ViewerServiceImpl) Render(ctx context.Context, id string) ([]byte, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	masks := map[string]image.Image{}
	if sess.mask != nil {
		masks[MaskLayerID] = sess.mask
	}
	out := sess.view.Compositor().Render(sess.base, masks)
	b := out.Bounds()
	grid := sess.view.Annotations().Rasterize(b.Dx(), b.Dy())
	sess.mu.Unlock()

	for i, v := range grid {
		if v > 0 {
			out.SetRGBA(b.Min.X+i%b.Dx(), b.Min.Y+i/b.Dx(), strokeColor)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode render: %w", err)
	}
	return buf.Bytes(), nil
}
