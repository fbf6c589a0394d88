package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound          = errors.New("not found")
	ErrControllerClosed  = errors.New("refresh controller closed")
	ErrControllerRunning = errors.New("refresh controller already running")
)
