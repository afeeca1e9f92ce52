package supervisor

import (
	"errors"
	"fmt"
)

// Sentinel errors for the spawn boundary conditions.
var (
	ErrExecutableNotFound = errors.New("supervisor: executable not found")
	ErrMissingLinuxKmod   = errors.New("supervisor: linux compatibility kernel module not loaded")
	ErrBrandELFFailed     = errors.New("supervisor: failed to brand elf binary")
)

// SpawnIOError wraps a failure from the OS-level plumbing of a spawn
// (opening a log file, allocating a pty, starting the command) with the
// underlying error, matching the "SpawnIoError(underlying)" kind.
type SpawnIOError struct {
	Err error
}

func (e *SpawnIOError) Error() string { return fmt.Sprintf("supervisor: spawn io: %v", e.Err) }
func (e *SpawnIOError) Unwrap() error { return e.Err }

func wrapSpawnIO(err error) error {
	if err == nil {
		return nil
	}
	return &SpawnIOError{Err: err}
}
