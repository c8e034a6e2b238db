package pip

import "errors"

var (
	// ErrNotReady is returned by operations that need a window before setup
	// has completed.
	ErrNotReady = errors.New("pip: not set up")

	// ErrMalformedArgument marks an argument that is missing or has the wrong
	// shape.
	ErrMalformedArgument = errors.New("pip: malformed argument")

	// ErrResourceCreation wraps failures to allocate the native window or its
	// drawing resources.
	ErrResourceCreation = errors.New("pip: native resource creation failed")
)
