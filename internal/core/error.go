package core

import "github.com/pkg/errors"

// errors
var (
	ErrNilCore            = errors.New("core is nil")
	ErrNilConfig          = errors.New("config is nil")
	ErrNotInitialized     = errors.New("core is not initialized")
	ErrAlreadyInitialized = errors.New("core is already initialized")
)
