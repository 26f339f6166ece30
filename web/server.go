package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/achilleasa/pathpool/log"
	"github.com/achilleasa/pathpool/renderer"
	"github.com/achilleasa/pathpool/scene"
	"github.com/google/uuid"
)

// FrameUpdate is the payload of a "frame" event on the frame stream.
type FrameUpdate struct {
	Seq       uint64 `json:"seq"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	ImageData string `json:"imageData"` // base64 encoded PNG
}

// Server exposes a renderer over HTTP. It implements renderer.Sink so that
// merged frames can be pushed to connected browsers.
type Server struct {
	logger        log.Logger
	r             renderer.Renderer
	frameInterval time.Duration

	mu          sync.Mutex
	frame       *image.RGBA
	seq         uint64
	subscribers map[string]chan struct{}
}

// Create a server that pushes at most one frame per frameInterval to each
// stream subscriber.
func NewServer(frameInterval time.Duration) *Server {
	return &Server{
		logger:        log.New("web"),
		frameInterval: frameInterval,
		subscribers:   make(map[string]chan struct{}),
	}
}

// Attach the renderer that serves camera and stats requests.
func (s *Server) Attach(r renderer.Renderer) {
	s.r = r
}

func (s *Server) Present(pix []uint8, frameW, frameH int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame == nil || s.frame.Rect.Dx() != frameW || s.frame.Rect.Dy() != frameH {
		s.frame = image.NewRGBA(image.Rect(0, 0, frameW, frameH))
	}
	copy(s.frame.Pix, pix)
	s.seq++

	for _, notify := range s.subscribers {
		select {
		case notify <- struct{}{}:
		default:
			// subscriber already has a pending notification
		}
	}
}

// Get the HTTP handler for the server endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/frames", s.handleFrames)
	mux.HandleFunc("POST /api/camera", s.handleCamera)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return mux
}

// Serve requests on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Noticef("listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPage))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.r == nil {
		writeError(w, http.StatusServiceUnavailable, renderer.ErrNotRunning)
		return
	}

	stats, err := s.r.Stats()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	camera, err := scene.ParseCameraFields(func(name string) (string, bool) {
		values, ok := r.PostForm[name]
		if !ok || len(values) == 0 {
			return "", false
		}
		return values[0], true
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if s.r == nil {
		writeError(w, http.StatusServiceUnavailable, renderer.ErrNotRunning)
		return
	}

	if err = s.r.SubmitCamera(camera); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	s.logger.Infof("queued camera update: %s", camera)
	writeJSON(w, http.StatusAccepted, camera.Fields())
}

// Stream merged frames as server-sent events.
func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, ErrStreamingUnsupported)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	id, notify := s.subscribe()
	defer s.unsubscribe(id)
	s.logger.Debugf("subscriber %s connected", id)

	ctx := r.Context()
	if err := writeEvent(w, "session", map[string]string{"subscriber": id}); err != nil {
		return
	}
	flusher.Flush()

	var lastSeq uint64
	var lastSent time.Time
	for {
		if update, ok := s.nextUpdate(lastSeq); ok {
			if wait := s.frameInterval - time.Since(lastSent); !lastSent.IsZero() && wait > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
				// a newer frame may have arrived in the meantime
				if update, ok = s.nextUpdate(lastSeq); !ok {
					continue
				}
			}

			if err := writeEvent(w, "frame", update); err != nil {
				s.logger.Debugf("subscriber %s: %s", id, err.Error())
				return
			}
			flusher.Flush()
			lastSeq, lastSent = update.Seq, time.Now()
		}

		select {
		case <-ctx.Done():
			s.logger.Debugf("subscriber %s disconnected", id)
			return
		case <-notify:
		}
	}
}

func (s *Server) subscribe() (string, chan struct{}) {
	id := uuid.NewString()
	notify := make(chan struct{}, 1)

	s.mu.Lock()
	s.subscribers[id] = notify
	s.mu.Unlock()
	return id, notify
}

func (s *Server) unsubscribe(id string) {
	s.mu.Lock()
	delete(s.subscribers, id)
	s.mu.Unlock()
}

// Encode the latest frame if it is newer than lastSeq.
func (s *Server) nextUpdate(lastSeq uint64) (*FrameUpdate, bool) {
	s.mu.Lock()
	if s.frame == nil || s.seq == lastSeq {
		s.mu.Unlock()
		return nil, false
	}
	frame := image.NewRGBA(s.frame.Rect)
	copy(frame.Pix, s.frame.Pix)
	seq := s.seq
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		s.logger.Errorf("could not encode frame %d: %s", seq, err.Error())
		return nil, false
	}

	return &FrameUpdate{
		Seq:       seq,
		Width:     frame.Rect.Dx(),
		Height:    frame.Rect.Dy(),
		ImageData: base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, true
}

func writeEvent(w http.ResponseWriter, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
