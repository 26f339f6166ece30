package window

import (
	"fmt"
	"strings"
	"sync"

	"github.com/achilleasa/pathpool/log"
	"github.com/achilleasa/pathpool/renderer"
	"github.com/achilleasa/pathpool/scene"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const (
	// Camera movement speed in world units per tick.
	cameraMoveSpeed float32 = 0.05

	// Ticks between stats refreshes while the overlay is visible.
	statsRefreshTicks = 30
)

// An interactive window that displays the merged frame and turns key presses
// into camera edits. Window implements renderer.Sink.
type Window struct {
	logger log.Logger
	r      renderer.Renderer
	camera scene.CameraParameters

	frameW, frameH int

	mu  sync.Mutex
	pix []uint8

	showUI bool
	ticks  int
	stats  string
}

// Create a window for frames of the given dimensions. The camera argument
// must match the initial camera of r.
func New(frameW, frameH int, camera scene.CameraParameters) *Window {
	return &Window{
		logger: log.New("window"),
		camera: camera,
		frameW: frameW,
		frameH: frameH,
		pix:    make([]uint8, frameW*frameH*4),
	}
}

// Attach the renderer that receives camera edits.
func (w *Window) Attach(r renderer.Renderer) {
	w.r = r
}

func (w *Window) Present(pix []uint8, frameW, frameH int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	copy(w.pix, pix)
}

// Open the window and block until it is closed.
func (w *Window) Run(title string) error {
	ebiten.SetWindowSize(w.frameW*2, w.frameH*2)
	ebiten.SetWindowTitle(title)
	return ebiten.RunGame(w)
}

func (w *Window) Update() error {
	if ebiten.IsKeyPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		w.showUI = !w.showUI
		w.ticks = 0
	}

	if dir, ok := pressedDirection(); ok {
		// Double speed if shift is pressed
		speedScaler := float32(1.0)
		if ebiten.IsKeyPressed(ebiten.KeyShift) {
			speedScaler = 2.0
		}
		w.updateCamera(w.camera.Move(dir, speedScaler*cameraMoveSpeed))
	}

	if w.showUI {
		if w.ticks%statsRefreshTicks == 0 {
			w.refreshStats()
		}
		w.ticks++
	}

	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	w.mu.Lock()
	screen.WritePixels(w.pix)
	w.mu.Unlock()

	if w.showUI {
		ebitenutil.DebugPrint(screen, w.stats)
	}
}

func (w *Window) Layout(_, _ int) (int, int) {
	return w.frameW, w.frameH
}

func (w *Window) updateCamera(camera scene.CameraParameters) {
	w.camera = camera
	if w.r == nil {
		return
	}

	if err := w.r.SubmitCamera(camera); err != nil {
		w.logger.Warningf("could not submit camera update: %s", err.Error())
	}
}

func (w *Window) refreshStats() {
	if w.r == nil {
		return
	}

	stats, err := w.r.Stats()
	if err != nil {
		w.stats = err.Error()
		return
	}
	w.stats = formatStats(stats, ebiten.ActualTPS())
}

func pressedDirection() (scene.CameraDirection, bool) {
	switch {
	case ebiten.IsKeyPressed(ebiten.KeyArrowUp):
		return scene.Forward, true
	case ebiten.IsKeyPressed(ebiten.KeyArrowDown):
		return scene.Backward, true
	case ebiten.IsKeyPressed(ebiten.KeyArrowLeft):
		return scene.Left, true
	case ebiten.IsKeyPressed(ebiten.KeyArrowRight):
		return scene.Right, true
	}
	return 0, false
}

func formatStats(stats renderer.FrameStats, tps float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TPS %0.1f  epoch %d  frames %d/%d\n", tps, stats.Epoch, stats.Frames, stats.FrameBudget)
	fmt.Fprintf(&b, "workers %d live, %d idle\n", stats.LiveCount, stats.IdleCount)
	for _, ws := range stats.Workers {
		fmt.Fprintf(&b, "  #%02d %-13s %3d frames %s\n", ws.Id, ws.State, ws.Frames, ws.RenderTime)
	}
	return b.String()
}
