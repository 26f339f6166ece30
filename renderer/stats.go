package renderer

import "time"

type WorkerState uint8

const (
	Uninitialized WorkerState = iota
	Idle
	Busy
	Restarting
)

func (s WorkerState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Idle:
		return "idle"
	case Busy:
		return "busy"
	case Restarting:
		return "restarting"
	}
	return "unknown"
}

func (s WorkerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type WorkerStat struct {
	// The pool slot and the generation of the worker occupying it.
	Id         int
	Generation uint32

	State WorkerState

	// True if the worker failed to initialize and was removed from the pool.
	Failed bool

	// The seed the worker was initialized with.
	Seed uint32

	// Frames contributed by this worker since the last camera update.
	Frames int

	// Render failures since startup.
	Failures int

	// Render time for the last contributed frame.
	RenderTime time.Duration
}

type FrameStats struct {
	// Individual worker stats.
	Workers []WorkerStat

	// The coordinator session id.
	Session string

	// Pool size, live (initialized, not failed) and idle worker counts.
	PoolSize  int
	LiveCount int
	IdleCount int

	// Frames merged since the last camera update and the budget.
	Frames      int
	FrameBudget int

	// Number of camera updates applied so far.
	Epoch uint64

	// True if a camera edit is waiting to be applied.
	PendingEdit bool

	// Time since the current camera was applied.
	Elapsed time.Duration
}
