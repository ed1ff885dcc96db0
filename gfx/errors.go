package gfx

import "errors"

var (
	// ErrDuplicateRegistration is returned when an id or key is already active.
	ErrDuplicateRegistration = errors.New("duplicate registration")
	// ErrUnknownRegistration is returned when an id or key is not active.
	ErrUnknownRegistration = errors.New("unknown registration")
	// ErrResourceCompilation wraps shader compile and program link failures.
	ErrResourceCompilation = errors.New("resource compilation failure")
	// ErrDoubleFree is returned when disposing a handle that is not tracked.
	ErrDoubleFree = errors.New("double free")
)
