package display

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"sync"

	"github.com/achilleasa/pathpool/log"
	"github.com/achilleasa/pathpool/renderer"
)

// PNGSink keeps a copy of the latest merged frame and writes it to a PNG file
// every time the render converges.
type PNGSink struct {
	logger log.Logger
	path   string

	mu    sync.Mutex
	frame *image.RGBA
}

// Create a sink that writes converged frames to path.
func NewPNGSink(path string) *PNGSink {
	return &PNGSink{
		logger: log.New("png"),
		path:   path,
	}
}

func (s *PNGSink) Present(pix []uint8, frameW, frameH int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame == nil || s.frame.Rect.Dx() != frameW || s.frame.Rect.Dy() != frameH {
		s.frame = image.NewRGBA(image.Rect(0, 0, frameW, frameH))
	}
	copy(s.frame.Pix, pix)
}

func (s *PNGSink) Converged(stats renderer.FrameStats) {
	if err := s.WriteFile(); err != nil {
		s.logger.Errorf("%s", err.Error())
	} else {
		s.logger.Noticef("wrote %d-frame render to %s", stats.Frames, s.path)
	}
}

// Encode the latest frame to the configured path.
func (s *PNGSink) WriteFile() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame == nil {
		return ErrNoFrame
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("display: could not create %s: %w", s.path, err)
	}
	defer f.Close()

	if err = png.Encode(f, s.frame); err != nil {
		return fmt.Errorf("display: could not encode %s: %w", s.path, err)
	}

	return f.Close()
}
