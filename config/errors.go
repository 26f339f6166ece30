package config

import "errors"

var (
	ErrMalformedConfig = errors.New("config: malformed document")
	ErrInvalidConfig   = errors.New("config: invalid settings")
)
