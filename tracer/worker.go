package tracer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/achilleasa/pathpool/log"
	"github.com/achilleasa/pathpool/scene"
)

type commandType uint8

const (
	cmdInit commandType = iota
	cmdRender
	cmdApplyCamera
	cmdPing
)

// Depth of the per-worker command queue. The coordinator never keeps more
// than one render and one control command outstanding per worker.
const commandQueueLen = 8

type command struct {
	typ commandType

	frameW, frameH uint32
	seed           uint32

	request RenderRequest
	camera  scene.CameraParameters
	epoch   uint64
	sentAt  time.Time
}

// A Worker wraps a single renderer instance and executes commands on its own
// go-routine. All replies are delivered to the events channel supplied at
// creation time.
type Worker struct {
	logger log.Logger

	id         int
	generation uint32
	factory    Factory
	events     chan<- Event

	cmdChan   chan command
	closeChan chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// Set while a ping is queued; further pings are coalesced into it.
	pingQueued atomic.Bool

	// Suppression state. suppress is raised the moment an ApplyCamera call
	// is made and lowered once a render for restartEpoch or later begins.
	mu           sync.Mutex
	suppress     bool
	restartEpoch uint64

	// Owned by the worker go-routine.
	renderer   Renderer
	frameW     uint32
	frameH     uint32
	seed       uint32
	increments uint32
}

// Create a worker for the given pool slot and start its command processor.
func NewWorker(id int, generation uint32, factory Factory, events chan<- Event) *Worker {
	w := &Worker{
		logger:     log.New(fmt.Sprintf("worker-%02d", id)),
		id:         id,
		generation: generation,
		factory:    factory,
		events:     events,
		cmdChan:    make(chan command, commandQueueLen),
		closeChan:  make(chan struct{}),
	}

	w.startWorker()
	return w
}

// Get the pool slot occupied by this worker.
func (w *Worker) Id() int {
	return w.id
}

// Allocate the renderer. The worker replies with Ready or a Failure event.
func (w *Worker) Init(frameW, frameH, seed uint32, camera scene.CameraParameters) {
	w.enqueue(command{typ: cmdInit, frameW: frameW, frameH: frameH, seed: seed, camera: camera})
}

// Request one incremental contribution rendered under the given camera epoch.
func (w *Worker) Render(req RenderRequest, epoch uint64) {
	w.enqueue(command{typ: cmdRender, request: req, epoch: epoch})
}

// Reconfigure the renderer for a new camera. Any render result that is
// produced before a render for this epoch starts is discarded.
func (w *Worker) ApplyCamera(camera scene.CameraParameters, epoch uint64) {
	w.mu.Lock()
	w.suppress = true
	if epoch > w.restartEpoch {
		w.restartEpoch = epoch
	}
	w.mu.Unlock()

	w.enqueue(command{typ: cmdApplyCamera, camera: camera, epoch: epoch})
}

// Send a liveness probe. The worker answers with a Pong event. Pings sent
// while an earlier one is still queued are folded into it.
func (w *Worker) Ping() {
	if !w.pingQueued.CompareAndSwap(false, true) {
		return
	}
	if !w.enqueue(command{typ: cmdPing, sentAt: time.Now()}) {
		w.pingQueued.Store(false)
	}
}

// Returns true if the next result emission would be discarded.
func (w *Worker) Suppressed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.suppress
}

// Stop the command processor and wait for it to exit. A render in progress
// is allowed to complete but its result is dropped.
func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		close(w.closeChan)
	})
	w.wg.Wait()
}

func (w *Worker) enqueue(cmd command) bool {
	select {
	case <-w.closeChan:
		w.logger.Warningf("dropping command %d for closed worker", cmd.typ)
		return false
	default:
	}

	select {
	case w.cmdChan <- cmd:
		return true
	default:
		// drop the command if the worker queue is saturated
		w.logger.Errorf("command queue full; dropping command %d", cmd.typ)
		return false
	}
}

// Spawn a go-routine to process commands.
func (w *Worker) startWorker() {
	readyChan := make(chan struct{})
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		close(readyChan)
		for {
			select {
			case cmd := <-w.cmdChan:
				if !w.process(cmd) {
					return
				}
			case <-w.closeChan:
				return
			}
		}
	}()

	// Wait for go-routine to start
	<-readyChan
}

// Process a single command. Returns false if the worker was closed while
// trying to deliver the reply.
func (w *Worker) process(cmd command) bool {
	switch cmd.typ {
	case cmdInit:
		return w.init(cmd)
	case cmdRender:
		return w.render(cmd)
	case cmdApplyCamera:
		if w.renderer == nil {
			return w.fail(OpReset, cmd.epoch, ErrNotInitialized)
		}
		if err := w.renderer.Reset(cmd.camera); err != nil {
			return w.fail(OpReset, cmd.epoch, err)
		}
		w.logger.Debugf("applied camera %s (epoch %d)", cmd.camera, cmd.epoch)
		return w.emit(Event{Type: CameraApplied, Epoch: cmd.epoch})
	case cmdPing:
		w.pingQueued.Store(false)
		return w.emit(Event{Type: Pong, SentAt: cmd.sentAt})
	}

	return true
}

func (w *Worker) init(cmd command) bool {
	r, err := w.factory(cmd.frameW, cmd.frameH, cmd.seed)
	if err != nil {
		return w.fail(OpInit, 0, err)
	}

	if !cmd.camera.IsZero() {
		if err = r.Reset(cmd.camera); err != nil {
			return w.fail(OpInit, 0, err)
		}
	}

	w.renderer = r
	w.frameW, w.frameH = cmd.frameW, cmd.frameH
	w.seed = cmd.seed
	w.increments = 0
	w.logger.Debugf("renderer ready (%dx%d, seed %d)", cmd.frameW, cmd.frameH, cmd.seed)
	return w.emit(Event{Type: Ready})
}

func (w *Worker) render(cmd command) bool {
	if w.renderer == nil {
		return w.fail(OpRender, cmd.epoch, ErrNotInitialized)
	}

	w.beginRender(cmd.epoch)

	seed := incrementSeed(w.seed, w.increments)
	w.increments++

	start := time.Now()
	pix, err := w.renderer.RenderIncrement(cmd.request.SamplesPerPixel, cmd.request.NumBounces, seed)
	renderTime := time.Since(start)

	if w.Suppressed() {
		w.logger.Debugf("discarding render for stale epoch %d", cmd.epoch)
		return true
	}

	if err != nil {
		return w.fail(OpRender, cmd.epoch, err)
	}

	if expLen := int(w.frameW * w.frameH * 4); len(pix) != expLen {
		return w.fail(OpRender, cmd.epoch, fmt.Errorf("%w: expected %d bytes; got %d", ErrBufferSize, expLen, len(pix)))
	}

	// Hand a private copy over to the coordinator; the renderer may reuse pix.
	out := make([]uint8, len(pix))
	copy(out, pix)

	return w.emit(Event{Type: Result, Epoch: cmd.epoch, Pix: out, RenderTime: renderTime})
}

// Lower the suppression flag if this render belongs to the latest camera epoch.
func (w *Worker) beginRender(epoch uint64) {
	w.mu.Lock()
	if w.suppress && epoch >= w.restartEpoch {
		w.suppress = false
	}
	w.mu.Unlock()
}

func (w *Worker) fail(op Op, epoch uint64, err error) bool {
	w.logger.Warningf("%s failed: %s", op, err.Error())
	return w.emit(Event{Type: Failure, Op: op, Epoch: epoch, Err: err})
}

func (w *Worker) emit(ev Event) bool {
	ev.WorkerId = w.id
	ev.Generation = w.generation

	select {
	case w.events <- ev:
		return true
	case <-w.closeChan:
		return false
	}
}

// Derive a per-increment seed so that successive increments of the same worker
// and increments of different workers draw independent sample sequences.
func incrementSeed(seed, increment uint32) uint32 {
	z := uint64(seed)<<32 | uint64(increment)
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return uint32(z) ^ uint32(z>>32)
}
