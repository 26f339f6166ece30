package tracer

import "errors"

var (
	ErrNotInitialized = errors.New("tracer: worker renderer not initialized")
	ErrBufferSize     = errors.New("tracer: renderer returned a buffer of unexpected size")
)
