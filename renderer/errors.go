package renderer

import "errors"

var (
	ErrNoLiveWorkers      = errors.New("renderer: no live workers")
	ErrInvalidOptions     = errors.New("renderer: invalid options")
	ErrBufferSizeMismatch = errors.New("renderer: pixel buffer size mismatch")
	ErrNotRunning         = errors.New("renderer: coordinator is not running")
	ErrAlreadyRunning     = errors.New("renderer: coordinator already running")
)
