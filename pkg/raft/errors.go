package raft

import "fmt"

// Kind classifies an Error so callers can branch on errors.Is without
// string matching.
type Kind int

const (
	// ErrOutOfMemory is an allocation failure. Never retried internally.
	ErrOutOfMemory Kind = iota
	// ErrIO is a generic storage/transport failure.
	ErrIO
	// ErrIOConnect means a peer connection could not be established or reused.
	ErrIOConnect
	// ErrIOCanceled means the engine is shutting down.
	ErrIOCanceled
	// ErrShutdown means an invariant was violated; the engine is now unavailable.
	ErrShutdown
	// ErrBusy means a membership change is already in flight.
	ErrBusy
	// ErrNotLeader means the operation requires leadership.
	ErrNotLeader
	// ErrBadState means the engine is not in a state that permits the operation.
	ErrBadState
	// ErrBadConfig means user-supplied configuration was rejected.
	ErrBadConfig
)

func (k Kind) String() string {
	switch k {
	case ErrOutOfMemory:
		return "out_of_memory"
	case ErrIO:
		return "io"
	case ErrIOConnect:
		return "io_connect"
	case ErrIOCanceled:
		return "io_canceled"
	case ErrShutdown:
		return "shutdown"
	case ErrBusy:
		return "busy"
	case ErrNotLeader:
		return "not_leader"
	case ErrBadState:
		return "bad_state"
	case ErrBadConfig:
		return "bad_config"
	default:
		return "unknown"
	}
}

// Error is the engine's typed error. Wrap with fmt.Errorf("...: %w", err)
// the same way the rest of the codebase layers context over sentinel-like
// errors.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, raft.ErrNotLeaderErr) match any *Error of the same
// Kind: only Kind is compared, not Message or the wrapped error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Sentinels usable with errors.Is(err, raft.ErrNotLeaderErr).
var (
	ErrNotLeaderErr  = &Error{Kind: ErrNotLeader, Message: "not leader"}
	ErrBusyErr       = &Error{Kind: ErrBusy, Message: "membership change in progress"}
	ErrCanceledErr   = &Error{Kind: ErrIOCanceled, Message: "operation canceled"}
	ErrShutdownErr   = &Error{Kind: ErrShutdown, Message: "engine unavailable"}
	ErrBadStateErr   = &Error{Kind: ErrBadState, Message: "bad engine state"}
	ErrBadConfigErr  = &Error{Kind: ErrBadConfig, Message: "bad configuration"}
)
