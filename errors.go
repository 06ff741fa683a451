package h264e

import "errors"

// Common errors
var (
	ErrNullArgument       = errors.New("null argument")
	ErrAllocationFailure  = errors.New("allocation failure")
	ErrInvalidConfigValue = errors.New("invalid config value")
	ErrUnsupportedCommand = errors.New("unsupported command")
	ErrInvalidState       = errors.New("invalid controller state")
	ErrCodingNotSupported = errors.New("coding not supported")
	ErrUnsupportedFrame   = errors.New("unsupported frame")
)
