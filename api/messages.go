package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// WebSocket message types
// These types are manually implemented from the drawing protocol: a JSON
// envelope with a required "type" discriminator and type-specific fields.

// MessageType represents the type of WebSocket message
type MessageType string

const (
	// Client-originated message types
	MessageTypeStrokeStart    MessageType = "strokeStart"
	MessageTypeStrokeSegment  MessageType = "strokeSegment"
	MessageTypeStrokeComplete MessageType = "strokeComplete"
	MessageTypeUndo           MessageType = "undo"
	MessageTypeRedo           MessageType = "redo"
	MessageTypeClear          MessageType = "clear"
	MessageTypeCursorMove     MessageType = "cursorMove"

	// Server-only message types
	MessageTypeInit       MessageType = "init"
	MessageTypeUserJoined MessageType = "userJoined"
	MessageTypeUserLeft   MessageType = "userLeft"
	MessageTypeError      MessageType = "error"
)

// Message is the base interface for all WebSocket messages
type Message interface {
	GetType() MessageType
	Validate() error
}

// StrokeStartMessage opens a stroke: the drawing user pressed down. It fixes
// the stroke's color and brush width; peers use it to begin live rendering.
type StrokeStartMessage struct {
	Type      MessageType `json:"type"`
	UserID    string      `json:"userId"`
	X         float64     `json:"x"`
	Y         float64     `json:"y"`
	Color     string      `json:"color"`
	BrushSize float64     `json:"brushSize"`
}

func (m StrokeStartMessage) GetType() MessageType { return m.Type }

func (m StrokeStartMessage) Validate() error {
	if m.Type != MessageTypeStrokeStart {
		return fmt.Errorf("invalid type: expected %s, got %s", MessageTypeStrokeStart, m.Type)
	}
	if m.Color == "" {
		return fmt.Errorf("color is required")
	}
	if m.BrushSize <= 0 {
		return fmt.Errorf("brushSize must be positive, got %v", m.BrushSize)
	}
	return nil
}

// StrokeSegmentMessage extends an in-progress stroke by one point. Segments
// are ephemeral live-drawing feedback and are never persisted individually.
type StrokeSegmentMessage struct {
	Type   MessageType `json:"type"`
	UserID string      `json:"userId"`
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
}

func (m StrokeSegmentMessage) GetType() MessageType { return m.Type }

func (m StrokeSegmentMessage) Validate() error {
	if m.Type != MessageTypeStrokeSegment {
		return fmt.Errorf("invalid type: expected %s, got %s", MessageTypeStrokeSegment, m.Type)
	}
	return nil
}

// StrokeCompleteMessage closes a stroke and carries the full point sequence.
// This is the only stroke message that reaches the operation log.
type StrokeCompleteMessage struct {
	Type      MessageType `json:"type"`
	UserID    string      `json:"userId"`
	Points    []Point     `json:"points"`
	Color     string      `json:"color"`
	BrushSize float64     `json:"brushSize"`
}

func (m StrokeCompleteMessage) GetType() MessageType { return m.Type }

func (m StrokeCompleteMessage) Validate() error {
	if m.Type != MessageTypeStrokeComplete {
		return fmt.Errorf("invalid type: expected %s, got %s", MessageTypeStrokeComplete, m.Type)
	}
	if len(m.Points) == 0 {
		return fmt.Errorf("points must not be empty")
	}
	if m.Color == "" {
		return fmt.Errorf("color is required")
	}
	if m.BrushSize <= 0 {
		return fmt.Errorf("brushSize must be positive, got %v", m.BrushSize)
	}
	return nil
}

// UndoMessage requests (inbound) or announces (outbound) an undo. The
// outbound form carries the authoritative post-undo history index so every
// client, the originator included, converges on the same cursor.
type UndoMessage struct {
	Type         MessageType `json:"type"`
	UserID       string      `json:"userId"`
	HistoryIndex int         `json:"historyIndex"`
}

func (m UndoMessage) GetType() MessageType { return m.Type }

func (m UndoMessage) Validate() error {
	if m.Type != MessageTypeUndo {
		return fmt.Errorf("invalid type: expected %s, got %s", MessageTypeUndo, m.Type)
	}
	return nil
}

// RedoMessage requests (inbound) or announces (outbound) a redo
type RedoMessage struct {
	Type         MessageType `json:"type"`
	UserID       string      `json:"userId"`
	HistoryIndex int         `json:"historyIndex"`
}

func (m RedoMessage) GetType() MessageType { return m.Type }

func (m RedoMessage) Validate() error {
	if m.Type != MessageTypeRedo {
		return fmt.Errorf("invalid type: expected %s, got %s", MessageTypeRedo, m.Type)
	}
	return nil
}

// ClearMessage empties the room's canvas for every participant
type ClearMessage struct {
	Type   MessageType `json:"type"`
	UserID string      `json:"userId"`
}

func (m ClearMessage) GetType() MessageType { return m.Type }

func (m ClearMessage) Validate() error {
	if m.Type != MessageTypeClear {
		return fmt.Errorf("invalid type: expected %s, got %s", MessageTypeClear, m.Type)
	}
	return nil
}

// CursorMoveMessage relays a participant's pointer position
type CursorMoveMessage struct {
	Type   MessageType `json:"type"`
	UserID string      `json:"userId"`
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
}

func (m CursorMoveMessage) GetType() MessageType { return m.Type }

func (m CursorMoveMessage) Validate() error {
	if m.Type != MessageTypeCursorMove {
		return fmt.Errorf("invalid type: expected %s, got %s", MessageTypeCursorMove, m.Type)
	}
	return nil
}

// InitMessage is the join reply: the new connection's identity and color,
// the other members of the room, and the replay snapshot of visible
// operations.
type InitMessage struct {
	Type       MessageType `json:"type"`
	UserID     string      `json:"userId"`
	Color      string      `json:"color"`
	Users      []string    `json:"users"`
	Operations []Operation `json:"operations"`
}

func (m InitMessage) GetType() MessageType { return m.Type }

func (m InitMessage) Validate() error {
	if m.Type != MessageTypeInit {
		return fmt.Errorf("invalid type: expected %s, got %s", MessageTypeInit, m.Type)
	}
	if m.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	if m.Color == "" {
		return fmt.Errorf("color is required")
	}
	return nil
}

// UserJoinedMessage announces a new room member to existing members
type UserJoinedMessage struct {
	Type   MessageType `json:"type"`
	UserID string      `json:"userId"`
	Color  string      `json:"color"`
}

func (m UserJoinedMessage) GetType() MessageType { return m.Type }

func (m UserJoinedMessage) Validate() error {
	if m.Type != MessageTypeUserJoined {
		return fmt.Errorf("invalid type: expected %s, got %s", MessageTypeUserJoined, m.Type)
	}
	if m.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	return nil
}

// UserLeftMessage announces a departure to the remaining room members
type UserLeftMessage struct {
	Type   MessageType `json:"type"`
	UserID string      `json:"userId"`
}

func (m UserLeftMessage) GetType() MessageType { return m.Type }

func (m UserLeftMessage) Validate() error {
	if m.Type != MessageTypeUserLeft {
		return fmt.Errorf("invalid type: expected %s, got %s", MessageTypeUserLeft, m.Type)
	}
	if m.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	return nil
}

// ErrorMessage reports a rejected inbound message back to its sender
type ErrorMessage struct {
	Type      MessageType `json:"type"`
	Error     string      `json:"error"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

func (m ErrorMessage) GetType() MessageType { return m.Type }

func (m ErrorMessage) Validate() error {
	if m.Type != MessageTypeError {
		return fmt.Errorf("invalid type: expected %s, got %s", MessageTypeError, m.Type)
	}
	if m.Error == "" {
		return fmt.Errorf("error is required")
	}
	if m.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}

// ParseMessage parses an incoming WebSocket payload into its typed message
func ParseMessage(data []byte) (Message, error) {
	// First, parse to determine message type
	var base struct {
		Type MessageType `json:"type"`
	}

	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("failed to parse base message: %w", err)
	}

	// Parse into specific message type
	switch base.Type {
	case MessageTypeStrokeStart:
		var msg StrokeStartMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse stroke start message: %w", err)
		}
		return msg, msg.Validate()

	case MessageTypeStrokeSegment:
		var msg StrokeSegmentMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse stroke segment message: %w", err)
		}
		return msg, msg.Validate()

	case MessageTypeStrokeComplete:
		var msg StrokeCompleteMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse stroke complete message: %w", err)
		}
		return msg, msg.Validate()

	case MessageTypeUndo:
		var msg UndoMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse undo message: %w", err)
		}
		return msg, msg.Validate()

	case MessageTypeRedo:
		var msg RedoMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse redo message: %w", err)
		}
		return msg, msg.Validate()

	case MessageTypeClear:
		var msg ClearMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse clear message: %w", err)
		}
		return msg, msg.Validate()

	case MessageTypeCursorMove:
		var msg CursorMoveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse cursor move message: %w", err)
		}
		return msg, msg.Validate()

	case MessageTypeInit:
		var msg InitMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse init message: %w", err)
		}
		return msg, msg.Validate()

	case MessageTypeUserJoined:
		var msg UserJoinedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse user joined message: %w", err)
		}
		return msg, msg.Validate()

	case MessageTypeUserLeft:
		var msg UserLeftMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse user left message: %w", err)
		}
		return msg, msg.Validate()

	case MessageTypeError:
		var msg ErrorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse error message: %w", err)
		}
		return msg, msg.Validate()

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// MarshalMessage validates and marshals a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("message validation failed: %w", err)
	}
	return json.Marshal(msg)
}
