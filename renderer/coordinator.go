package renderer

import (
	"context"
	"image"
	"time"

	"github.com/achilleasa/pathpool/log"
	"github.com/achilleasa/pathpool/scene"
	"github.com/achilleasa/pathpool/tracer"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// The Unit interface is the coordinator's view of a pool worker. It is
// implemented by tracer.Worker. All methods must return without waiting for
// the worker to act; replies arrive asynchronously as tracer events.
type Unit interface {
	Init(frameW, frameH, seed uint32, camera scene.CameraParameters)
	Render(req tracer.RenderRequest, epoch uint64)
	ApplyCamera(camera scene.CameraParameters, epoch uint64)
	Ping()
	Close()
}

type spawnFn func(id int, generation uint32, events chan<- tracer.Event) Unit

// Bookkeeping for a pool slot. Only accessed from the event loop.
type slot struct {
	id         int
	generation uint32
	seed       uint32
	unit       Unit
	state      WorkerState

	// Set when the worker could not allocate or reconfigure its renderer.
	failed bool

	// Set after a failed render has been retried once.
	retried bool

	dispatchedAt time.Time
	lastRequest  tracer.RenderRequest

	frames     int
	failures   int
	renderTime time.Duration
}

// The Coordinator owns a fixed pool of workers, merges their results into a
// running average and applies camera edits through a pool-wide barrier.
//
// All coordinator state is owned by the go-routine executing Run. Workers,
// timers and API callers communicate with it exclusively over channels.
type Coordinator struct {
	logger  log.Logger
	opts    Options
	session string
	sink    Sink
	spawn   spawnFn

	events  chan tracer.Event
	control chan func()
	done    chan struct{}
	started bool

	// Injected for tests.
	afterFunc func(time.Duration, func()) stopper
	now       func() time.Time

	// Pool state.
	slots        []*slot
	idleCount    int
	liveCount    int
	initializing int

	// Accumulated image for the current camera.
	acc        *Accumulator
	camera     scene.CameraParameters
	epoch      uint64
	epochStart time.Time

	// Barrier state; see barrier.go.
	pending         *pendingEdit
	inflight        *pendingEdit
	editSeq         uint64
	debounceTimer   stopper
	acksOutstanding int

	budgetLogged bool
	converged    bool
}

// Create a coordinator for a pool of workers backed by renderers obtained
// from factory. Workers are not started until Run is invoked.
func New(opts Options, factory tracer.Factory, sink Sink) (*Coordinator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if sink == nil {
		sink = SinkFunc(func([]uint8, int, int) {})
	}

	if opts.Camera.IsZero() {
		opts.Camera = scene.DefaultCamera()
	}

	poolSize := opts.Workers()
	c := &Coordinator{
		logger:    log.New("coordinator"),
		opts:      opts,
		session:   uuid.NewString(),
		sink:      sink,
		events:    make(chan tracer.Event, 4*poolSize),
		control:   make(chan func(), 16),
		done:      make(chan struct{}),
		afterFunc: func(d time.Duration, fn func()) stopper { return time.AfterFunc(d, fn) },
		now:       time.Now,
		slots:     make([]*slot, poolSize),
		acc:       NewAccumulator(int(opts.FrameW), int(opts.FrameH)),
		camera:    opts.Camera,
	}

	c.spawn = func(id int, generation uint32, events chan<- tracer.Event) Unit {
		return tracer.NewWorker(id, generation, factory, events)
	}

	for idx := range c.slots {
		c.slots[idx] = &slot{id: idx, seed: uint32(idx)}
	}

	return c, nil
}

// Get the unique id of this coordinator session.
func (c *Coordinator) Session() string {
	return c.session
}

// Start the worker pool and process events until ctx is cancelled. Run
// returns nil on cancellation or ErrNoLiveWorkers if every worker failed.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.started {
		return ErrAlreadyRunning
	}
	c.started = true
	defer close(c.done)

	c.start()
	defer c.shutdown()

	var watchdog, pinger <-chan time.Time
	if c.opts.WorkerTimeout > 0 {
		ticker := time.NewTicker(max(c.opts.WorkerTimeout/4, time.Millisecond))
		defer ticker.Stop()
		watchdog = ticker.C
	}
	if c.opts.PingInterval > 0 {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		pinger = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			c.handleEvent(ev)
		case fn := <-c.control:
			fn()
		case now := <-watchdog:
			c.checkWorkers(now)
		case <-pinger:
			c.pingWorkers()
		}

		if c.liveCount == 0 && c.initializing == 0 {
			c.logger.Error("all workers failed; giving up")
			return ErrNoLiveWorkers
		}
	}
}

// Get a snapshot of the coordinator statistics.
func (c *Coordinator) Stats() (FrameStats, error) {
	reply := make(chan FrameStats, 1)
	if err := c.post(func() { reply <- c.snapshot() }); err != nil {
		return FrameStats{}, err
	}

	select {
	case stats := <-reply:
		return stats, nil
	case <-c.done:
		return FrameStats{}, ErrNotRunning
	}
}

// Get a copy of the current merged frame.
func (c *Coordinator) Image() (*image.RGBA, error) {
	reply := make(chan *image.RGBA, 1)
	if err := c.post(func() { reply <- c.acc.Image() }); err != nil {
		return nil, err
	}

	select {
	case img := <-reply:
		return img, nil
	case <-c.done:
		return nil, ErrNotRunning
	}
}

// Queue fn for execution on the event loop.
func (c *Coordinator) post(fn func()) error {
	select {
	case <-c.done:
		return ErrNotRunning
	default:
	}

	select {
	case c.control <- fn:
		return nil
	case <-c.done:
		return ErrNotRunning
	}
}

// Spawn a worker for every slot.
func (c *Coordinator) start() {
	c.epochStart = c.now()
	c.logger.Noticef("session %s: starting %d workers for a %dx%d frame", c.session, len(c.slots), c.opts.FrameW, c.opts.FrameH)

	for _, s := range c.slots {
		s.unit = c.spawn(s.id, s.generation, c.events)
		c.initializing++
		s.unit.Init(c.opts.FrameW, c.opts.FrameH, s.seed, c.camera)
	}
}

// Close all workers. In-flight renders are allowed to finish.
func (c *Coordinator) shutdown() {
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}

	var g errgroup.Group
	for _, s := range c.slots {
		if s.unit == nil {
			continue
		}
		unit := s.unit
		g.Go(func() error {
			unit.Close()
			return nil
		})
	}
	_ = g.Wait()
	c.logger.Noticef("session %s: worker pool stopped", c.session)
}

func (c *Coordinator) handleEvent(ev tracer.Event) {
	if ev.WorkerId < 0 || ev.WorkerId >= len(c.slots) {
		c.logger.Errorf("protocol violation: %s event from unknown worker %d", ev.Type, ev.WorkerId)
		return
	}

	s := c.slots[ev.WorkerId]
	if ev.Generation != s.generation {
		c.logger.Debugf("ignoring %s event from retired worker %d (generation %d)", ev.Type, s.id, ev.Generation)
		return
	}

	switch ev.Type {
	case tracer.Ready:
		c.onWorkerReady(s)
	case tracer.Result:
		c.onWorkerResult(s, ev)
	case tracer.CameraApplied:
		c.onCameraApplied(s, ev)
	case tracer.Pong:
		c.logger.Debugf("worker %d pong (rtt %s)", s.id, c.now().Sub(ev.SentAt))
	case tracer.Failure:
		c.onWorkerFailure(s, ev)
	default:
		c.logger.Errorf("protocol violation: unknown event type %d from worker %d", ev.Type, s.id)
	}
}

func (c *Coordinator) onWorkerReady(s *slot) {
	if s.state != Uninitialized || s.failed {
		c.logger.Errorf("protocol violation: ready from worker %d in state %s", s.id, s.state)
		return
	}

	c.initializing--
	c.liveCount++
	c.setState(s, Idle)
	c.logger.Infof("worker %d ready (seed %d)", s.id, s.seed)

	c.continueWorker(s, c.previewRequest())
}

func (c *Coordinator) onWorkerResult(s *slot, ev tracer.Event) {
	if s.state != Busy {
		c.logger.Errorf("protocol violation: result from worker %d in state %s", s.id, s.state)
		return
	}

	if ev.Epoch != c.epoch {
		c.logger.Warningf("discarding stale result from worker %d (epoch %d, current %d)", s.id, ev.Epoch, c.epoch)
		return
	}

	c.setState(s, Idle)
	s.retried = false

	if err := c.acc.Merge(ev.Pix); err != nil {
		c.logger.Errorf("worker %d: %s", s.id, err.Error())
	} else {
		s.frames++
		s.renderTime = ev.RenderTime
		c.logger.Debugf("merged frame %d from worker %d (%s)", c.acc.FrameCount(), s.id, ev.RenderTime)
		c.sink.Present(c.acc.Current(), int(c.opts.FrameW), int(c.opts.FrameH))
	}

	c.continueWorker(s, c.steadyRequest())
}

func (c *Coordinator) onWorkerFailure(s *slot, ev tracer.Event) {
	switch ev.Op {
	case tracer.OpInit:
		if s.state != Uninitialized || s.failed {
			c.logger.Errorf("protocol violation: init failure from worker %d in state %s", s.id, s.state)
			return
		}
		s.failed = true
		c.initializing--
		c.logger.Errorf("worker %d failed to initialize: %s; continuing with a reduced pool", s.id, ev.Err)
		c.maybeBroadcast()
		c.maybeConverged()
	case tracer.OpRender:
		if s.state != Busy || ev.Epoch != c.epoch {
			c.logger.Errorf("protocol violation: render failure from worker %d in state %s (epoch %d)", s.id, s.state, ev.Epoch)
			return
		}
		c.setState(s, Idle)
		s.failures++
		if !s.retried {
			s.retried = true
			c.logger.Warningf("worker %d render failed: %s; retrying", s.id, ev.Err)
			c.continueWorker(s, s.lastRequest)
			return
		}
		c.logger.Errorf("worker %d render failed again: %s; parking worker", s.id, ev.Err)
		c.maybeBroadcast()
		c.maybeConverged()
	case tracer.OpReset:
		if s.state != Restarting || ev.Epoch != c.epoch {
			c.logger.Errorf("protocol violation: reset failure from worker %d in state %s (epoch %d)", s.id, s.state, ev.Epoch)
			return
		}
		c.logger.Errorf("worker %d could not apply camera: %s; removing it from the pool", s.id, ev.Err)
		c.setState(s, Uninitialized)
		s.failed = true
		c.liveCount--
		c.acknowledge()
	}
}

// Decide the next action for a worker that just became idle:
//  1. stop if the frame budget is exhausted
//  2. hold if a camera edit is waiting for the pool to drain
//  3. dispatch req otherwise
//
// The barrier condition is evaluated whenever the worker is left idle.
func (c *Coordinator) continueWorker(s *slot, req tracer.RenderRequest) {
	switch {
	case c.budgetReached():
		if !c.budgetLogged {
			c.budgetLogged = true
			c.logger.Noticef("frame budget of %d frames reached", c.opts.FrameBudget)
		}
	case c.pending != nil && c.pending.armed:
		c.logger.Debugf("holding worker %d for pending camera update", s.id)
	default:
		c.dispatch(s, req)
		return
	}

	c.maybeBroadcast()
	c.maybeConverged()
}

// Send a render request to an idle worker.
func (c *Coordinator) dispatch(s *slot, req tracer.RenderRequest) bool {
	if s.state != Idle || s.failed {
		c.logger.Errorf("protocol violation: dispatch to worker %d in state %s", s.id, s.state)
		return false
	}

	c.setState(s, Busy)
	s.dispatchedAt = c.now()
	s.lastRequest = req
	s.unit.Render(req, c.epoch)
	return true
}

// Transition a slot, keeping the idle counter in sync.
func (c *Coordinator) setState(s *slot, state WorkerState) {
	if s.state == Idle {
		c.idleCount--
	}
	if state == Idle {
		c.idleCount++
	}
	s.state = state
}

// Returns true if every live worker is idle and no worker is still starting.
func (c *Coordinator) poolIdle() bool {
	return c.initializing == 0 && c.liveCount > 0 && c.idleCount == c.liveCount
}

func (c *Coordinator) budgetReached() bool {
	return c.opts.FrameBudget > 0 && c.acc.FrameCount() >= c.opts.FrameBudget
}

func (c *Coordinator) maybeConverged() {
	if c.converged || !c.budgetReached() || !c.poolIdle() || c.pending != nil {
		return
	}

	c.converged = true
	stats := c.snapshot()
	c.logger.Noticef("converged after %d frames in %s", stats.Frames, stats.Elapsed)
	if listener, ok := c.sink.(ConvergenceListener); ok {
		listener.Converged(stats)
	}
}

func (c *Coordinator) previewRequest() tracer.RenderRequest {
	return tracer.RenderRequest{SamplesPerPixel: c.opts.PreviewSamples, NumBounces: c.opts.NumBounces}
}

func (c *Coordinator) steadyRequest() tracer.RenderRequest {
	return tracer.RenderRequest{SamplesPerPixel: c.opts.SamplesPerPixel, NumBounces: c.opts.NumBounces}
}

// Replace busy workers that exceeded the configured timeout.
func (c *Coordinator) checkWorkers(now time.Time) {
	for _, s := range c.slots {
		if s.state == Busy && now.Sub(s.dispatchedAt) > c.opts.WorkerTimeout {
			c.respawn(s)
		}
	}
}

// Retire the worker occupying s and start a fresh one with a new seed. Events
// from the retired worker are ignored based on their generation.
func (c *Coordinator) respawn(s *slot) {
	c.logger.Warningf("worker %d unresponsive for %s; respawning", s.id, c.now().Sub(s.dispatchedAt))

	retired := s.unit
	go retired.Close()

	c.setState(s, Uninitialized)
	c.liveCount--
	s.generation++
	s.seed = uint32(s.id + int(s.generation)*len(c.slots))
	s.retried = false

	c.initializing++
	s.unit = c.spawn(s.id, s.generation, c.events)
	s.unit.Init(c.opts.FrameW, c.opts.FrameH, s.seed, c.camera)
}

func (c *Coordinator) pingWorkers() {
	for _, s := range c.slots {
		if s.state != Uninitialized {
			s.unit.Ping()
		}
	}
}

func (c *Coordinator) snapshot() FrameStats {
	stats := FrameStats{
		Workers:     make([]WorkerStat, len(c.slots)),
		Session:     c.session,
		PoolSize:    len(c.slots),
		LiveCount:   c.liveCount,
		IdleCount:   c.idleCount,
		Frames:      c.acc.FrameCount(),
		FrameBudget: c.opts.FrameBudget,
		Epoch:       c.epoch,
		PendingEdit: c.pending != nil,
		Elapsed:     c.sinceCameraUpdate(),
	}

	for idx, s := range c.slots {
		stats.Workers[idx] = WorkerStat{
			Id:         s.id,
			Generation: s.generation,
			State:      s.state,
			Failed:     s.failed,
			Seed:       s.seed,
			Frames:     s.frames,
			Failures:   s.failures,
			RenderTime: s.renderTime,
		}
	}

	return stats
}
