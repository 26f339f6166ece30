package tracer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/achilleasa/pathpool/scene"
	"github.com/achilleasa/pathpool/types"
)

type mockRenderer struct {
	sync.Mutex

	frameW, frameH uint32
	cameras        []scene.CameraParameters
	seeds          []uint32
	resetErr       error
	renderErr      error
	bufLen         int

	// If set, RenderIncrement blocks until a value is received.
	gate chan struct{}
	// Signalled when RenderIncrement is entered.
	entered chan struct{}
}

func (r *mockRenderer) Reset(camera scene.CameraParameters) error {
	r.Lock()
	defer r.Unlock()
	if r.resetErr != nil {
		return r.resetErr
	}
	r.cameras = append(r.cameras, camera)
	return nil
}

func (r *mockRenderer) RenderIncrement(samplesPerPixel, numBounces, seed uint32) ([]uint8, error) {
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.gate != nil {
		<-r.gate
	}

	r.Lock()
	defer r.Unlock()
	r.seeds = append(r.seeds, seed)
	if r.renderErr != nil {
		return nil, r.renderErr
	}

	bufLen := int(r.frameW * r.frameH * 4)
	if r.bufLen != 0 {
		bufLen = r.bufLen
	}
	pix := make([]uint8, bufLen)
	for i := range pix {
		pix[i] = uint8(samplesPerPixel)
	}
	return pix, nil
}

func mockFactory(r *mockRenderer, err error) Factory {
	return func(frameW, frameH, seed uint32) (Renderer, error) {
		if err != nil {
			return nil, err
		}
		r.frameW, r.frameH = frameW, frameH
		return r, nil
	}
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for worker event")
	}
	return Event{}
}

func expectNoEvent(t *testing.T, events <-chan Event) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("expected no event; got %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func testCamera(t *testing.T, x float32) scene.CameraParameters {
	cam, err := scene.NewCameraParameters(types.XYZ(x, 1, 1), types.XYZ(0, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	return cam
}

func TestWorkerLifecycle(t *testing.T) {
	events := make(chan Event, 4)
	r := &mockRenderer{}
	w := NewWorker(3, 2, mockFactory(r, nil), events)
	defer w.Close()

	cam := testCamera(t, 5)
	w.Init(4, 2, 7, cam)
	ev := nextEvent(t, events)
	if ev.Type != Ready || ev.WorkerId != 3 || ev.Generation != 2 {
		t.Fatalf("expected ready event from worker 3 generation 2; got %+v", ev)
	}
	if len(r.cameras) != 1 || r.cameras[0] != cam {
		t.Fatal("expected renderer to be reset with the init camera")
	}

	w.Render(RenderRequest{SamplesPerPixel: 3, NumBounces: 2}, 0)
	ev = nextEvent(t, events)
	if ev.Type != Result {
		t.Fatalf("expected result event; got %s", ev.Type)
	}
	if len(ev.Pix) != 4*2*4 || ev.Pix[0] != 3 {
		t.Fatalf("expected a 32 byte buffer filled with the sample count; got %d bytes", len(ev.Pix))
	}

	next := testCamera(t, 9)
	w.ApplyCamera(next, 1)
	ev = nextEvent(t, events)
	if ev.Type != CameraApplied || ev.Epoch != 1 {
		t.Fatalf("expected camera ack for epoch 1; got %+v", ev)
	}

	w.Ping()
	ev = nextEvent(t, events)
	if ev.Type != Pong || ev.SentAt.IsZero() {
		t.Fatalf("expected pong with a send timestamp; got %+v", ev)
	}
}

func TestWorkerSeedsDiffer(t *testing.T) {
	events := make(chan Event, 4)
	r := &mockRenderer{}
	w := NewWorker(0, 0, mockFactory(r, nil), events)
	defer w.Close()

	w.Init(1, 1, 1, scene.CameraParameters{})
	nextEvent(t, events)
	for i := 0; i < 3; i++ {
		w.Render(RenderRequest{SamplesPerPixel: 1, NumBounces: 1}, 0)
		nextEvent(t, events)
	}

	seen := make(map[uint32]bool)
	for _, seed := range r.seeds {
		if seen[seed] {
			t.Fatalf("expected increment seeds to differ; got %v", r.seeds)
		}
		seen[seed] = true
	}

	if incrementSeed(1, 0) == incrementSeed(2, 0) {
		t.Fatal("expected workers with different seeds to draw different increment seeds")
	}
}

func TestWorkerFailures(t *testing.T) {
	type spec struct {
		factoryErr error
		resetErr   error
		renderErr  error
		bufLen     int
		cmd        func(w *Worker)
		expOp      Op
		expErr     error
	}

	errBoom := errors.New("boom")
	render := func(w *Worker) { w.Render(RenderRequest{SamplesPerPixel: 1, NumBounces: 1}, 0) }
	specs := []spec{
		{factoryErr: errBoom, expOp: OpInit, expErr: errBoom},
		{renderErr: errBoom, cmd: render, expOp: OpRender, expErr: errBoom},
		{bufLen: 3, cmd: render, expOp: OpRender, expErr: ErrBufferSize},
		{resetErr: errBoom, cmd: func(w *Worker) { w.ApplyCamera(scene.DefaultCamera(), 1) }, expOp: OpReset, expErr: errBoom},
	}

	for index, s := range specs {
		events := make(chan Event, 4)
		r := &mockRenderer{renderErr: s.renderErr, bufLen: s.bufLen}
		w := NewWorker(0, 0, mockFactory(r, s.factoryErr), events)

		w.Init(2, 2, 0, scene.CameraParameters{})
		ev := nextEvent(t, events)
		if s.cmd != nil {
			if ev.Type != Ready {
				t.Fatalf("[spec %d] expected ready event; got %s", index, ev.Type)
			}
			r.resetErr = s.resetErr
			s.cmd(w)
			ev = nextEvent(t, events)
		}

		if ev.Type != Failure || ev.Op != s.expOp {
			t.Fatalf("[spec %d] expected %s failure; got %s (%s)", index, s.expOp, ev.Type, ev.Op)
		}
		if !errors.Is(ev.Err, s.expErr) {
			t.Fatalf("[spec %d] expected error %v; got %v", index, s.expErr, ev.Err)
		}
		w.Close()
	}
}

func TestWorkerRenderBeforeInit(t *testing.T) {
	events := make(chan Event, 4)
	w := NewWorker(0, 0, mockFactory(&mockRenderer{}, nil), events)
	defer w.Close()

	w.Render(RenderRequest{SamplesPerPixel: 1, NumBounces: 1}, 0)
	ev := nextEvent(t, events)
	if ev.Type != Failure || !errors.Is(ev.Err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized failure; got %+v", ev)
	}
}

func TestWorkerSuppressesResultsAfterCameraChange(t *testing.T) {
	events := make(chan Event, 4)
	r := &mockRenderer{
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	w := NewWorker(0, 0, mockFactory(r, nil), events)
	defer w.Close()

	w.Init(1, 1, 0, scene.CameraParameters{})
	nextEvent(t, events)

	// Start a render and apply a camera while it is in progress.
	w.Render(RenderRequest{SamplesPerPixel: 1, NumBounces: 1}, 0)
	<-r.entered
	w.ApplyCamera(testCamera(t, 3), 1)
	if !w.Suppressed() {
		t.Fatal("expected worker to suppress results as soon as the camera is applied")
	}
	r.gate <- struct{}{}

	// The in-flight result is dropped; only the camera ack arrives.
	ev := nextEvent(t, events)
	if ev.Type != CameraApplied || ev.Epoch != 1 {
		t.Fatalf("expected camera ack; got %s", ev.Type)
	}
	expectNoEvent(t, events)

	// A render for the new epoch lifts suppression.
	w.Render(RenderRequest{SamplesPerPixel: 2, NumBounces: 1}, 1)
	<-r.entered
	r.gate <- struct{}{}
	ev = nextEvent(t, events)
	if ev.Type != Result || ev.Epoch != 1 {
		t.Fatalf("expected result for epoch 1; got %+v", ev)
	}
	if w.Suppressed() {
		t.Fatal("expected suppression to be lifted")
	}
}

func TestWorkerCloseUnblocksEmit(t *testing.T) {
	// Unbuffered and never read.
	events := make(chan Event)
	w := NewWorker(0, 0, mockFactory(&mockRenderer{}, nil), events)
	w.Init(1, 1, 0, scene.CameraParameters{})

	done := make(chan struct{})
	go func() {
		w.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("expected Close to return while an event is pending")
	}

	// Commands for a closed worker are dropped.
	w.Ping()
}

func TestWorkerCoalescesPings(t *testing.T) {
	events := make(chan Event, 4)
	r := &mockRenderer{
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	w := NewWorker(0, 0, mockFactory(r, nil), events)
	defer w.Close()

	w.Init(1, 1, 0, scene.CameraParameters{})
	nextEvent(t, events)

	// Flood the queue with pings while a render is in progress and then
	// queue the next render behind them.
	w.Render(RenderRequest{SamplesPerPixel: 1, NumBounces: 1}, 0)
	<-r.entered
	for i := 0; i < 4*commandQueueLen; i++ {
		w.Ping()
	}
	w.Render(RenderRequest{SamplesPerPixel: 1, NumBounces: 1}, 0)
	r.gate <- struct{}{}

	if ev := nextEvent(t, events); ev.Type != Result {
		t.Fatalf("expected result event; got %s", ev.Type)
	}
	if ev := nextEvent(t, events); ev.Type != Pong {
		t.Fatalf("expected a single pong event; got %s", ev.Type)
	}

	select {
	case <-r.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("expected the render queued behind the pings to run")
	}
	r.gate <- struct{}{}
	if ev := nextEvent(t, events); ev.Type != Result {
		t.Fatalf("expected result event; got %s", ev.Type)
	}
	expectNoEvent(t, events)

	// Pings are accepted again once the queued one was answered.
	w.Ping()
	if ev := nextEvent(t, events); ev.Type != Pong {
		t.Fatalf("expected pong event; got %s", ev.Type)
	}
}
