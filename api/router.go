package api

import (
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/drawdeck/drawdeck/internal/slogging"
)

// MessageHandler defines the interface for handling WebSocket messages
type MessageHandler interface {
	HandleMessage(session *RoomSession, client *WebSocketClient, msg Message) error
	MessageType() MessageType
}

// MessageRouter routes parsed WebSocket messages to the appropriate handler
type MessageRouter struct {
	handlers map[MessageType]MessageHandler
}

// NewMessageRouter creates a new message router with the drawing protocol handlers
func NewMessageRouter() *MessageRouter {
	router := &MessageRouter{
		handlers: make(map[MessageType]MessageHandler),
	}

	router.RegisterHandler(&StrokeStartHandler{})
	router.RegisterHandler(&StrokeSegmentHandler{})
	router.RegisterHandler(&StrokeCompleteHandler{})
	router.RegisterHandler(&UndoHandler{})
	router.RegisterHandler(&RedoHandler{})
	router.RegisterHandler(&ClearHandler{})
	router.RegisterHandler(&CursorMoveHandler{})

	return router
}

// RegisterHandler registers a message handler for a specific message type
func (r *MessageRouter) RegisterHandler(handler MessageHandler) {
	r.handlers[handler.MessageType()] = handler
}

// RouteMessage parses a raw inbound payload and routes it to its handler.
// No failure here is fatal to the connection: malformed messages are logged,
// reported to the sender as an error message, and dropped.
func (r *MessageRouter) RouteMessage(session *RoomSession, client *WebSocketClient, message []byte) error {
	defer func() {
		if rec := recover(); rec != nil {
			slogging.Get().Error("PANIC in RouteMessage - room_id=%s user_id=%s error=%v stack=%s",
				session.RoomID, client.UserID, rec, debug.Stack())
		}
	}()

	// Parse the envelope to determine the type before committing to a full parse
	var base struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		slogging.Get().Warn("Unparseable message - room_id=%s user_id=%s error=%v",
			session.RoomID, client.UserID, err)
		session.sendErrorMessage(client, "invalid_message", "Message is not valid JSON")
		return err
	}

	// Server-only message types that clients must not send
	switch base.Type {
	case MessageTypeInit, MessageTypeUserJoined, MessageTypeUserLeft, MessageTypeError:
		slogging.Get().Warn("Client %s sent server-only message type '%s' - protocol violation",
			client.UserID, base.Type)
		session.sendErrorMessage(client, "invalid_message_type",
			"Message type '"+string(base.Type)+"' is server-only and cannot be sent by clients")
		return nil
	}

	handler, exists := r.handlers[base.Type]
	if !exists {
		slogging.Get().Warn("Unsupported message type '%s' from user %s in room %s",
			base.Type, client.UserID, session.RoomID)
		session.sendErrorMessage(client, "unsupported_message_type",
			"Message type '"+string(base.Type)+"' is not supported")
		return nil
	}

	msg, err := ParseMessage(message)
	if err != nil {
		slogging.Get().Warn("Invalid %s message - room_id=%s user_id=%s error=%v",
			base.Type, session.RoomID, client.UserID, err)
		session.sendErrorMessage(client, "invalid_message", err.Error())
		return err
	}

	session.hub.Metrics.MessageReceived(string(base.Type))
	return handler.HandleMessage(session, client, msg)
}

// StrokeStartHandler handles stroke start messages
type StrokeStartHandler struct{}

func (h *StrokeStartHandler) MessageType() MessageType { return MessageTypeStrokeStart }

func (h *StrokeStartHandler) HandleMessage(session *RoomSession, client *WebSocketClient, msg Message) error {
	m, ok := msg.(StrokeStartMessage)
	if !ok {
		return fmt.Errorf("unexpected message type %T for %s", msg, h.MessageType())
	}
	session.processStrokeStart(client, m)
	return nil
}

// StrokeSegmentHandler handles stroke segment messages
type StrokeSegmentHandler struct{}

func (h *StrokeSegmentHandler) MessageType() MessageType { return MessageTypeStrokeSegment }

func (h *StrokeSegmentHandler) HandleMessage(session *RoomSession, client *WebSocketClient, msg Message) error {
	m, ok := msg.(StrokeSegmentMessage)
	if !ok {
		return fmt.Errorf("unexpected message type %T for %s", msg, h.MessageType())
	}
	session.processStrokeSegment(client, m)
	return nil
}

// StrokeCompleteHandler handles stroke complete messages
type StrokeCompleteHandler struct{}

func (h *StrokeCompleteHandler) MessageType() MessageType { return MessageTypeStrokeComplete }

func (h *StrokeCompleteHandler) HandleMessage(session *RoomSession, client *WebSocketClient, msg Message) error {
	m, ok := msg.(StrokeCompleteMessage)
	if !ok {
		return fmt.Errorf("unexpected message type %T for %s", msg, h.MessageType())
	}
	session.processStrokeComplete(client, m)
	return nil
}

// UndoHandler handles undo request messages
type UndoHandler struct{}

func (h *UndoHandler) MessageType() MessageType { return MessageTypeUndo }

func (h *UndoHandler) HandleMessage(session *RoomSession, client *WebSocketClient, msg Message) error {
	if _, ok := msg.(UndoMessage); !ok {
		return fmt.Errorf("unexpected message type %T for %s", msg, h.MessageType())
	}
	session.processUndo(client)
	return nil
}

// RedoHandler handles redo request messages
type RedoHandler struct{}

func (h *RedoHandler) MessageType() MessageType { return MessageTypeRedo }

func (h *RedoHandler) HandleMessage(session *RoomSession, client *WebSocketClient, msg Message) error {
	if _, ok := msg.(RedoMessage); !ok {
		return fmt.Errorf("unexpected message type %T for %s", msg, h.MessageType())
	}
	session.processRedo(client)
	return nil
}

// ClearHandler handles clear messages
type ClearHandler struct{}

func (h *ClearHandler) MessageType() MessageType { return MessageTypeClear }

func (h *ClearHandler) HandleMessage(session *RoomSession, client *WebSocketClient, msg Message) error {
	if _, ok := msg.(ClearMessage); !ok {
		return fmt.Errorf("unexpected message type %T for %s", msg, h.MessageType())
	}
	session.processClear(client)
	return nil
}

// CursorMoveHandler handles cursor move messages
type CursorMoveHandler struct{}

func (h *CursorMoveHandler) MessageType() MessageType { return MessageTypeCursorMove }

func (h *CursorMoveHandler) HandleMessage(session *RoomSession, client *WebSocketClient, msg Message) error {
	m, ok := msg.(CursorMoveMessage)
	if !ok {
		return fmt.Errorf("unexpected message type %T for %s", msg, h.MessageType())
	}
	session.processCursorMove(client, m)
	return nil
}
