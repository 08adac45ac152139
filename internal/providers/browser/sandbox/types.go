package sandbox

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTimeout         = errors.New("guest handler exceeded its time budget")
	ErrTerminated      = errors.New("sandbox worker terminated")
	ErrNotRunning      = errors.New("no widget is running")
	ErrNotSerializable = errors.New("guest value is not serializable")
)

// Phase is the lifecycle position of a worker
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// ProtocolError reports a host message the worker cannot accept in its
// current phase. It is fatal to the worker.
type ProtocolError struct {
	Phase  Phase
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("sandbox protocol violation in %s phase: %s", e.Phase, e.Reason)
}

// Config defines sandbox configuration
type Config struct {
	HandlerTimeout   time.Duration // Budget for a single guest call
	MaxCallStackSize int           // Guest recursion limit
	EnableConsole    bool          // Forward console.* to the host
}

// DefaultConfig returns the configuration used when none is supplied
func DefaultConfig() Config {
	return Config{
		HandlerTimeout:   5 * time.Second,
		MaxCallStackSize: 1024,
		EnableConsole:    true,
	}
}
