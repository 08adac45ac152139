package types

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// ErrUnknownMessage is returned when decoding a message whose type
// discriminator is not part of the protocol.
var ErrUnknownMessage = errors.New("unknown message type")

// Message type discriminators
const (
	MessageInit     = "init"
	MessageResize   = "resize"
	MessageEvent    = "event"
	MessageSnapshot = "snapshot"
	MessageLog      = "log"
	MessageState    = "state"
)

// ============================================================================
// Host -> Guest
// ============================================================================

// Incoming is a message sent from the host to a sandbox worker.
// The set of variants is closed; adding one adds a method to
// IncomingVisitor so every consumer fails to compile until it handles it.
type Incoming interface {
	Accept(v IncomingVisitor) error
	incoming()
}

// IncomingVisitor handles each host -> guest message variant
type IncomingVisitor interface {
	VisitInit(m *InitMessage) error
	VisitResize(m *ResizeMessage) error
	VisitEvent(m *EventMessage) error
	VisitSnapshot(m *SnapshotRequest) error
}

// InitPayload carries everything a worker needs to boot a widget
type InitPayload struct {
	JSSource       string      `json:"jsSource"`
	Size           Size        `json:"size"`
	Assets         Assets      `json:"assets"`
	Settings       Settings    `json:"settings"`
	PersistedState interface{} `json:"persistedState,omitempty"`
}

// InitMessage boots the guest. Valid exactly once per worker.
type InitMessage struct {
	Init InitPayload `json:"init"`
}

// ResizeMessage reports a new container size
type ResizeMessage struct {
	Size Size `json:"size"`
}

// EventMessage forwards a bus event
type EventMessage struct {
	Event Event `json:"event"`
}

// SnapshotReply answers a SnapshotRequest
type SnapshotReply struct {
	State interface{}
	Err   error
}

// SnapshotRequest asks the worker for its current serialized state.
// The reply channel must be buffered; the worker never blocks on it.
type SnapshotRequest struct {
	Reply chan SnapshotReply `json:"-"`
}

func (*InitMessage) incoming()     {}
func (*ResizeMessage) incoming()   {}
func (*EventMessage) incoming()    {}
func (*SnapshotRequest) incoming() {}

func (m *InitMessage) Accept(v IncomingVisitor) error     { return v.VisitInit(m) }
func (m *ResizeMessage) Accept(v IncomingVisitor) error   { return v.VisitResize(m) }
func (m *EventMessage) Accept(v IncomingVisitor) error    { return v.VisitEvent(m) }
func (m *SnapshotRequest) Accept(v IncomingVisitor) error { return v.VisitSnapshot(m) }

// ============================================================================
// Guest -> Host
// ============================================================================

// LogLevel is the severity of a guest log line
type LogLevel string

const (
	LevelError LogLevel = "error"
	LevelWarn  LogLevel = "warn"
	LevelInfo  LogLevel = "info"
	LevelDebug LogLevel = "debug"
	LevelLog   LogLevel = "log"
)

// Valid reports whether l is a known level
func (l LogLevel) Valid() bool {
	switch l {
	case LevelError, LevelWarn, LevelInfo, LevelDebug, LevelLog:
		return true
	}
	return false
}

// Outgoing is a message sent from a sandbox worker to its host
type Outgoing interface {
	Accept(v OutgoingVisitor)
	outgoing()
}

// OutgoingVisitor handles each guest -> host message variant
type OutgoingVisitor interface {
	VisitLog(m *LogMessage)
	VisitState(m *StateMessage)
}

// LogMessage carries console output or sandbox errors
type LogMessage struct {
	Level   LogLevel      `json:"level"`
	Content []interface{} `json:"content"`
}

// StateMessage carries a new serialized widget state
type StateMessage struct {
	State interface{} `json:"state"`
}

func (*LogMessage) outgoing()   {}
func (*StateMessage) outgoing() {}

func (m *LogMessage) Accept(v OutgoingVisitor)   { v.VisitLog(m) }
func (m *StateMessage) Accept(v OutgoingVisitor) { v.VisitState(m) }

// ============================================================================
// Wire encoding
// ============================================================================

type envelope struct {
	Type string `json:"type"`
}

// EncodeIncoming encodes a host -> guest message with its type discriminator
func EncodeIncoming(msg Incoming) ([]byte, error) {
	switch m := msg.(type) {
	case *InitMessage:
		return sonic.Marshal(struct {
			Type string `json:"type"`
			*InitMessage
		}{MessageInit, m})
	case *ResizeMessage:
		return sonic.Marshal(struct {
			Type string `json:"type"`
			*ResizeMessage
		}{MessageResize, m})
	case *EventMessage:
		return sonic.Marshal(struct {
			Type string `json:"type"`
			*EventMessage
		}{MessageEvent, m})
	case *SnapshotRequest:
		return sonic.Marshal(envelope{Type: MessageSnapshot})
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
}

// DecodeIncoming decodes a host -> guest message
func DecodeIncoming(data []byte) (Incoming, error) {
	var env envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	var msg Incoming
	switch env.Type {
	case MessageInit:
		msg = &InitMessage{}
	case MessageResize:
		msg = &ResizeMessage{}
	case MessageEvent:
		msg = &EventMessage{}
	case MessageSnapshot:
		return &SnapshotRequest{Reply: make(chan SnapshotReply, 1)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
	if err := sonic.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decode %s message: %w", env.Type, err)
	}
	return msg, nil
}

// EncodeOutgoing encodes a guest -> host message with its type discriminator
func EncodeOutgoing(msg Outgoing) ([]byte, error) {
	switch m := msg.(type) {
	case *LogMessage:
		return sonic.Marshal(struct {
			Type string `json:"type"`
			*LogMessage
		}{MessageLog, m})
	case *StateMessage:
		return sonic.Marshal(struct {
			Type string `json:"type"`
			*StateMessage
		}{MessageState, m})
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
}

// DecodeOutgoing decodes a guest -> host message
func DecodeOutgoing(data []byte) (Outgoing, error) {
	var env envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch env.Type {
	case MessageLog:
		var m LogMessage
		if err := sonic.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode log message: %w", err)
		}
		if !m.Level.Valid() {
			return nil, fmt.Errorf("decode log message: unknown level %q", m.Level)
		}
		return &m, nil
	case MessageState:
		var m StateMessage
		if err := sonic.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode state message: %w", err)
		}
		return &m, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
}
