package router

import "errors"

var (
	ErrNoSuchElement      = errors.New("no such element")
	ErrNoSuchHandler      = errors.New("no such handler")
	ErrHandlerPermission  = errors.New("handler permission denied")
	ErrNotRunning         = errors.New("router is not live")
	ErrAlreadyInitialized = errors.New("router already initialized")
)
