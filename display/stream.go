package display

import (
	"errors"
	"io"
	"sync"

	"github.com/achilleasa/pathpool/log"
	"github.com/vmihailenco/msgpack/v5"
)

// A Frame is the unit written by StreamSink.
type Frame struct {
	Seq    uint64 `msgpack:"seq"`
	Width  int    `msgpack:"w"`
	Height int    `msgpack:"h"`
	Pix    []byte `msgpack:"pix"`
}

// StreamSink writes every merged frame to an io.Writer as a sequence of
// msgpack encoded Frame values.
type StreamSink struct {
	logger log.Logger

	mu     sync.Mutex
	enc    *msgpack.Encoder
	seq    uint64
	failed bool
}

// Create a stream sink writing to w.
func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{
		logger: log.New("stream"),
		enc:    msgpack.NewEncoder(w),
	}
}

func (s *StreamSink) Present(pix []uint8, frameW, frameH int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed {
		return
	}

	s.seq++
	err := s.enc.Encode(&Frame{Seq: s.seq, Width: frameW, Height: frameH, Pix: pix})
	if err != nil {
		// stop writing after the first failure; the reader is most likely gone
		s.failed = true
		s.logger.Errorf("could not write frame %d: %s", s.seq, err.Error())
	}
}

// Get the number of frames written so far.
func (s *StreamSink) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Decode frames from r and invoke fn for each one until r is exhausted.
func ReadFrames(r io.Reader, fn func(*Frame) error) error {
	dec := msgpack.NewDecoder(r)
	for {
		var frame Frame
		if err := dec.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if err := fn(&frame); err != nil {
			return err
		}
	}
}
