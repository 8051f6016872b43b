package rowseek

import "errors"

var (
	// ErrNoCache is returned by cache operations when the engine has no row cache.
	ErrNoCache = errors.New("row cache not configured")

	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine is closed")
)
