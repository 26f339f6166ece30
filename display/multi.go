package display

import "github.com/achilleasa/pathpool/renderer"

// Multi fans frames and convergence notifications out to a list of sinks.
type Multi []renderer.Sink

func (m Multi) Present(pix []uint8, frameW, frameH int) {
	for _, s := range m {
		s.Present(pix, frameW, frameH)
	}
}

func (m Multi) Converged(stats renderer.FrameStats) {
	for _, s := range m {
		if l, ok := s.(renderer.ConvergenceListener); ok {
			l.Converged(stats)
		}
	}
}
