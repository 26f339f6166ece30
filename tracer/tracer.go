package tracer

import (
	"time"

	"github.com/achilleasa/pathpool/scene"
)

// A unit of work that is processed by a worker.
type RenderRequest struct {
	// The number of emitted rays per traced pixel.
	SamplesPerPixel uint32

	// Max number of indirect bounces per path.
	NumBounces uint32
}

// The Renderer interface is implemented by the opaque rendering backends that
// are driven by a worker.
type Renderer interface {
	// Reconfigure the renderer for a new camera placement.
	Reset(scene.CameraParameters) error

	// Render one incremental contribution and return a width*height*4 RGBA
	// buffer. The returned slice is only valid until the next call.
	RenderIncrement(samplesPerPixel, numBounces, seed uint32) ([]uint8, error)
}

// A Factory allocates a renderer for a frame of the given dimensions.
type Factory func(frameW, frameH, seed uint32) (Renderer, error)

type EventType uint8

const (
	// The worker allocated its renderer.
	Ready EventType = iota

	// The worker produced a pixel buffer.
	Result

	// The worker reconfigured its renderer for a new camera.
	CameraApplied

	// Reply to a liveness ping.
	Pong

	// An operation failed; see Event.Op and Event.Err.
	Failure
)

func (t EventType) String() string {
	switch t {
	case Ready:
		return "ready"
	case Result:
		return "result"
	case CameraApplied:
		return "cameraApplied"
	case Pong:
		return "pong"
	case Failure:
		return "failure"
	}
	return "unknown"
}

// The operation that triggered a Failure event.
type Op uint8

const (
	OpInit Op = iota
	OpRender
	OpReset
)

func (op Op) String() string {
	switch op {
	case OpInit:
		return "init"
	case OpRender:
		return "render"
	case OpReset:
		return "reset"
	}
	return "unknown"
}

// An Event is sent by a worker to its coordinator.
type Event struct {
	Type EventType

	// The pool slot and the generation of the worker instance occupying it.
	WorkerId   int
	Generation uint32

	// The camera epoch of the command that produced this event.
	Epoch uint64

	// Rendered pixels (Result only). Ownership passes to the receiver.
	Pix []uint8

	// Time spent inside the renderer (Result only).
	RenderTime time.Duration

	// Time the ping was sent (Pong only).
	SentAt time.Time

	// Failure details.
	Op  Op
	Err error
}
