package renderer

// A Sink receives the merged frame after every successful merge. Present is
// invoked from the coordinator's event loop; pix is only valid for the
// duration of the call so implementations that keep it must copy it.
type Sink interface {
	Present(pix []uint8, frameW, frameH int)
}

// Sinks that also implement ConvergenceListener are notified once the frame
// budget for the current camera is exhausted and every worker is idle.
type ConvergenceListener interface {
	Converged(stats FrameStats)
}

// A SinkFunc adapts a function to the Sink interface.
type SinkFunc func(pix []uint8, frameW, frameH int)

func (f SinkFunc) Present(pix []uint8, frameW, frameH int) {
	f(pix, frameW, frameH)
}
