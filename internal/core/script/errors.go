package script

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateFunction = errors.New("api function name already installed")
	ErrHostStarted       = errors.New("host already has script associations")
	ErrDuplicateScript   = errors.New("script name already attached")
	ErrUnknownScript     = errors.New("unknown script")

	// ErrScriptAttach and ErrScriptRuntime classify the two script failure
	// families; match them with errors.Is against AttachError and
	// RuntimeError values.
	ErrScriptAttach  = errors.New("script attach failed")
	ErrScriptRuntime = errors.New("script hook failed")
)

// AttachError reports a compile/bind failure. The association it belongs to
// stays Unloaded; retrying is the caller's decision.
type AttachError struct {
	Script string
	Reason error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("attach script %q: %v", e.Script, e.Reason)
}

func (e *AttachError) Unwrap() error { return e.Reason }

func (e *AttachError) Is(target error) bool { return target == ErrScriptAttach }

// RuntimeError reports a failed hook invocation, tagged with the script and
// hook identity. It is isolated to that invocation; the context stays
// attached and usable.
type RuntimeError struct {
	Script string
	Hook   string
	Reason error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("script %q hook %q: %v", e.Script, e.Hook, e.Reason)
}

func (e *RuntimeError) Unwrap() error { return e.Reason }

func (e *RuntimeError) Is(target error) bool { return target == ErrScriptRuntime }
