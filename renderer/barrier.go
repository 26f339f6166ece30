package renderer

import (
	"time"

	"github.com/achilleasa/pathpool/scene"
	"github.com/achilleasa/pathpool/tracer"
)

type stopper interface {
	Stop() bool
}

// A camera edit waiting to be applied. An edit becomes armed once the
// debounce period elapses without a newer edit replacing it.
type pendingEdit struct {
	camera scene.CameraParameters
	seq    uint64
	armed  bool
}

// Submit a camera edit. Edits submitted in quick succession are coalesced
// and only the last one is applied, once Options.Debounce has elapsed and
// every worker has finished its in-flight render.
func (c *Coordinator) SubmitCamera(camera scene.CameraParameters) error {
	if camera.IsZero() {
		return scene.ErrDegenerateCamera
	}

	return c.post(func() { c.submit(camera) })
}

func (c *Coordinator) submit(camera scene.CameraParameters) {
	c.editSeq++
	seq := c.editSeq
	c.pending = &pendingEdit{camera: camera, seq: seq}
	c.logger.Debugf("camera edit %d: %s", seq, camera)

	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}

	if c.opts.Debounce == 0 {
		c.onDebounceExpired(seq)
		return
	}

	c.debounceTimer = c.afterFunc(c.opts.Debounce, func() {
		_ = c.post(func() { c.onDebounceExpired(seq) })
	})
}

// Arm the pending edit if it is still the edit that started the timer.
func (c *Coordinator) onDebounceExpired(seq uint64) {
	if c.pending == nil || c.pending.seq != seq {
		return
	}

	c.debounceTimer = nil
	c.pending.armed = true
	c.maybeBroadcast()
}

// Apply the pending edit if it is armed and the pool has drained.
func (c *Coordinator) maybeBroadcast() {
	if c.pending == nil || !c.pending.armed || c.acksOutstanding > 0 || !c.poolIdle() {
		return
	}

	c.broadcast(c.pending)
}

// Ask every live worker to apply the camera for a new epoch. Workers stop
// reporting results for older epochs as soon as the request is queued.
func (c *Coordinator) broadcast(edit *pendingEdit) {
	c.epoch++
	c.camera = edit.camera
	c.inflight = edit
	c.budgetLogged = false
	c.converged = false

	c.logger.Noticef("applying camera %s to %d workers (epoch %d)", edit.camera, c.liveCount, c.epoch)
	for _, s := range c.slots {
		if s.state != Idle || s.failed {
			continue
		}
		c.setState(s, Restarting)
		c.acksOutstanding++
		s.unit.ApplyCamera(edit.camera, c.epoch)
	}
}

func (c *Coordinator) onCameraApplied(s *slot, ev tracer.Event) {
	if s.state != Restarting || ev.Epoch != c.epoch {
		c.logger.Errorf("protocol violation: camera ack from worker %d in state %s (epoch %d, current %d)", s.id, s.state, ev.Epoch, c.epoch)
		return
	}

	c.setState(s, Idle)
	c.acknowledge()
}

// Record a camera acknowledgement and release the barrier after the last one.
func (c *Coordinator) acknowledge() {
	c.acksOutstanding--
	if c.acksOutstanding > 0 {
		return
	}

	c.acc.Reset()
	for _, s := range c.slots {
		s.frames = 0
	}
	if c.pending == c.inflight {
		c.pending = nil
	}
	c.inflight = nil
	c.epochStart = c.now()

	if c.liveCount == 0 {
		return
	}

	c.logger.Infof("camera applied (epoch %d); resuming %d workers", c.epoch, c.liveCount)
	req := c.steadyRequest()
	for _, s := range c.slots {
		if s.state == Idle && !s.failed {
			s.retried = false
			c.dispatch(s, req)
		}
	}
}

// Time since the last camera update was applied.
func (c *Coordinator) sinceCameraUpdate() time.Duration {
	return c.now().Sub(c.epochStart)
}
