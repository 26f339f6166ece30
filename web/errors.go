package web

import "errors"

var (
	ErrStreamingUnsupported = errors.New("web: response writer does not support streaming")
)
