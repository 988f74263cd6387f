package registry

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates an agent name with no registry record.
var ErrNotFound = errors.New("agent not found")

// UnreachableError reports a network failure while contacting an agent.
type UnreachableError struct {
	Name string
	URL  string
	Err  error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("agent %q unreachable at %s: %v", e.Name, e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// BadManifestError reports an agent whose manifest could not be fetched as
// JSON or failed schema validation.
type BadManifestError struct {
	Name string
	Err  error
}

func (e *BadManifestError) Error() string {
	return fmt.Sprintf("agent %q returned a bad manifest: %v", e.Name, e.Err)
}

func (e *BadManifestError) Unwrap() error { return e.Err }

// PersistError reports a registry snapshot write failure.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist registry snapshot %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
