package renderer

import (
	"fmt"
	"runtime"
	"time"

	"github.com/achilleasa/pathpool/scene"
)

type Options struct {
	// Frame dims.
	FrameW uint32 `yaml:"width"`
	FrameH uint32 `yaml:"height"`

	// Number of workers in the pool. Zero selects one worker per CPU.
	PoolSize int `yaml:"pool_size"`

	// Samples per pixel for the first request a worker receives.
	PreviewSamples uint32 `yaml:"preview_samples"`

	// Samples per pixel for every following request.
	SamplesPerPixel uint32 `yaml:"samples"`

	// Number of indirect bounces.
	NumBounces uint32 `yaml:"bounces"`

	// Total number of merged frames after which workers stop receiving new
	// requests. The count is pool-wide and restarts with every camera update.
	// Zero disables the budget.
	FrameBudget int `yaml:"frame_budget"`

	// Quiet period that must elapse after the last camera edit before the
	// edit is applied.
	Debounce time.Duration `yaml:"debounce"`

	// Busy workers that do not reply within this period are replaced. Zero
	// disables the watchdog.
	WorkerTimeout time.Duration `yaml:"worker_timeout"`

	// Interval for diagnostic liveness pings. Zero disables pings.
	PingInterval time.Duration `yaml:"ping_interval"`

	// The initial camera. A zero value selects scene.DefaultCamera.
	Camera scene.CameraParameters `yaml:"-"`
}

// Get the default options.
func DefaultOptions() Options {
	return Options{
		FrameW:          400,
		FrameH:          225,
		PoolSize:        0,
		PreviewSamples:  1,
		SamplesPerPixel: 2,
		NumBounces:      50,
		FrameBudget:     200,
		Debounce:        250 * time.Millisecond,
	}
}

// Get the effective pool size.
func (o Options) Workers() int {
	if o.PoolSize <= 0 {
		return max(1, runtime.NumCPU())
	}
	return o.PoolSize
}

// Check options for consistency.
func (o Options) Validate() error {
	switch {
	case o.FrameW == 0 || o.FrameH == 0:
		return fmt.Errorf("%w: frame dimensions must be positive", ErrInvalidOptions)
	case o.PreviewSamples == 0 || o.SamplesPerPixel == 0:
		return fmt.Errorf("%w: sample counts must be positive", ErrInvalidOptions)
	case o.NumBounces == 0:
		return fmt.Errorf("%w: bounce limit must be positive", ErrInvalidOptions)
	case o.FrameBudget < 0:
		return fmt.Errorf("%w: frame budget must not be negative", ErrInvalidOptions)
	case o.Debounce < 0 || o.WorkerTimeout < 0 || o.PingInterval < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidOptions)
	}
	return nil
}
