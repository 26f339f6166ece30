package renderer

import (
	"fmt"
	"image"
	"math"
)

// The Accumulator maintains the running average of all frames merged since
// the last reset.
type Accumulator struct {
	frameW, frameH int
	merged         []uint8
	frameCount     int
}

// Create an accumulator for RGBA frames of the given dimensions.
func NewAccumulator(frameW, frameH int) *Accumulator {
	return &Accumulator{
		frameW: frameW,
		frameH: frameH,
		merged: make([]uint8, frameW*frameH*4),
	}
}

// Merge a frame into the running average. The first frame after a reset is
// copied verbatim; later frames update each channel as
// (k*merged + pix) / (k+1) where k is the number of frames merged so far.
func (a *Accumulator) Merge(pix []uint8) error {
	if len(pix) != len(a.merged) {
		return fmt.Errorf("%w: expected %d bytes; got %d", ErrBufferSizeMismatch, len(a.merged), len(pix))
	}

	if a.frameCount == 0 {
		copy(a.merged, pix)
		a.frameCount = 1
		return nil
	}

	k := float64(a.frameCount)
	scaler := 1.0 / (k + 1)
	for i, v := range pix {
		avg := math.RoundToEven((k*float64(a.merged[i]) + float64(v)) * scaler)
		a.merged[i] = uint8(math.Max(0, math.Min(avg, 255)))
	}
	a.frameCount++
	return nil
}

// Clear the merged frame and the frame counter.
func (a *Accumulator) Reset() {
	clear(a.merged)
	a.frameCount = 0
}

// Get the merged frame. The returned slice is owned by the accumulator and
// only valid until the next call to Merge or Reset.
func (a *Accumulator) Current() []uint8 {
	return a.merged
}

// Get the number of frames merged since the last reset.
func (a *Accumulator) FrameCount() int {
	return a.frameCount
}

// Get a copy of the merged frame as an image.
func (a *Accumulator) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, a.frameW, a.frameH))
	copy(img.Pix, a.merged)
	return img
}
