package display

import "errors"

var (
	ErrNoFrame = errors.New("display: no frame has been presented")
)
