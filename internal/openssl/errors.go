package openssl

import "errors"

var (
	// ErrToolkitNotFound means the toolkit binary is not on the search path.
	// It is fatal for the engine until resolved outside the program.
	ErrToolkitNotFound = errors.New("toolkit not found")

	ErrMissingInput   = errors.New("missing input")
	ErrInvalidPath    = errors.New("invalid path")
	ErrUnknownDialect = errors.New("unknown dialect")
	ErrVersionProbe   = errors.New("failed to detect toolkit version")
)
