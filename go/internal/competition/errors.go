package competition

import "errors"

var (
	ErrNotFound          = errors.New("competition not found")
	ErrAlreadyRunning    = errors.New("competition is already running")
	ErrNotActive         = errors.New("competition is not active")
	ErrAnotherRunning    = errors.New("another competition is already running")
	ErrNotRunning        = errors.New("competition is not running")
	ErrStillRunning      = errors.New("competition must be stopped before it is deactivated")
	ErrInconsistentState = errors.New("competition is running but not active")
)
