package renderer

import (
	"context"
	"image"

	"github.com/achilleasa/pathpool/scene"
)

// The Renderer interface is implemented by Coordinator and consumed by the
// front-ends that drive it.
type Renderer interface {
	// Render until ctx is cancelled.
	Run(ctx context.Context) error

	// Queue a camera update.
	SubmitCamera(camera scene.CameraParameters) error

	// Get render statistics.
	Stats() (FrameStats, error)

	// Get a copy of the merged frame.
	Image() (*image.RGBA, error)
}

var _ Renderer = (*Coordinator)(nil)
