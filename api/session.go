package api

import (
	"github.com/drawdeck/drawdeck/internal/slogging"
	"github.com/drawdeck/drawdeck/internal/uuidgen"
)

// Protocol effects, one method per inbound message type. Each method runs on
// the sending client's read goroutine; everything that touches the operation
// log, the stroke state, or the member set goes through s.mu, and outbound
// messages are queued inside that same critical section (see enqueueLocked)
// so all members observe room mutations in arrival order.

// sendInit replies to a freshly joined client with its identity, color, the
// other members, and the replay snapshot, then announces the join to the
// rest of the room.
func (s *RoomSession) sendInit(client *WebSocketClient) {
	s.mu.Lock()
	users := s.membersExcept(client.UserID)
	snapshot := s.Log.Snapshot()

	initData, err := MarshalMessage(InitMessage{
		Type:       MessageTypeInit,
		UserID:     client.UserID,
		Color:      client.Color,
		Users:      users,
		Operations: snapshot,
	})
	if err != nil {
		s.mu.Unlock()
		slogging.Get().Error("Failed to marshal init - room_id=%s user_id=%s error=%v",
			s.RoomID, client.UserID, err)
		return
	}

	joinedData, err := MarshalMessage(UserJoinedMessage{
		Type:   MessageTypeUserJoined,
		UserID: client.UserID,
		Color:  client.Color,
	})
	if err != nil {
		s.mu.Unlock()
		slogging.Get().Error("Failed to marshal user joined - room_id=%s user_id=%s error=%v",
			s.RoomID, client.UserID, err)
		return
	}

	// Queue both inside one critical section so the snapshot the client
	// replays and the join notice its peers see bracket the same log state.
	select {
	case client.Send <- initData:
	default:
		s.hub.Metrics.SendDropped()
	}
	s.enqueueLocked(joinedData, MessageTypeUserJoined, client.UserID)
	s.mu.Unlock()

	slogging.Get().Info("User joined - room_id=%s user_id=%s members=%d operations=%d",
		s.RoomID, client.UserID, len(users)+1, len(snapshot))
}

// processStrokeStart opens a stroke for the client and relays the press to
// the room. Nothing is logged; live stroke traffic is ephemeral.
func (s *RoomSession) processStrokeStart(client *WebSocketClient, msg StrokeStartMessage) {
	msg.UserID = client.UserID

	data, err := MarshalMessage(msg)
	if err != nil {
		slogging.Get().Error("Failed to marshal stroke start - room_id=%s error=%v", s.RoomID, err)
		return
	}

	s.mu.Lock()
	client.strokeActive = true
	s.enqueueLocked(data, msg.Type, client.UserID)
	s.mu.Unlock()
}

// processStrokeSegment relays one point of an in-progress stroke. A segment
// without an open stroke violates the stroke state machine and is rejected
// without effect.
func (s *RoomSession) processStrokeSegment(client *WebSocketClient, msg StrokeSegmentMessage) {
	msg.UserID = client.UserID

	data, err := MarshalMessage(msg)
	if err != nil {
		slogging.Get().Error("Failed to marshal stroke segment - room_id=%s error=%v", s.RoomID, err)
		return
	}

	s.mu.Lock()
	if !client.strokeActive {
		s.mu.Unlock()
		slogging.Get().Warn("Stroke segment without active stroke - room_id=%s user_id=%s",
			s.RoomID, client.UserID)
		s.sendErrorMessage(client, "stroke_not_active", "strokeSegment requires an in-progress stroke")
		return
	}
	s.enqueueLocked(data, msg.Type, client.UserID)
	s.mu.Unlock()
}

// processStrokeComplete commits the finished stroke to the operation log,
// truncating any redo tail, and relays it to the room. This is the only
// stroke transition that mutates the log; undo granularity is whole strokes.
func (s *RoomSession) processStrokeComplete(client *WebSocketClient, msg StrokeCompleteMessage) {
	msg.UserID = client.UserID

	data, err := MarshalMessage(msg)
	if err != nil {
		slogging.Get().Error("Failed to marshal stroke complete - room_id=%s error=%v", s.RoomID, err)
		return
	}

	op := Operation{
		ID:        uuidgen.MustNewV4().String(),
		UserID:    client.UserID,
		Points:    msg.Points,
		Color:     msg.Color,
		BrushSize: msg.BrushSize,
	}

	s.mu.Lock()
	s.Log.Commit(op)
	client.strokeActive = false
	cursor := s.Log.Cursor()
	s.enqueueLocked(data, msg.Type, client.UserID)
	s.mu.Unlock()

	slogging.Get().Debug("Stroke committed - room_id=%s user_id=%s points=%d cursor=%d",
		s.RoomID, client.UserID, len(msg.Points), cursor)
}

// processUndo moves the history cursor back and announces the authoritative
// index to every member, the originator included, so its UI reflects the
// server's cursor rather than its own optimistic one.
func (s *RoomSession) processUndo(client *WebSocketClient) {
	s.mu.Lock()
	_, index := s.Log.Undo()

	data, err := MarshalMessage(UndoMessage{
		Type:         MessageTypeUndo,
		UserID:       client.UserID,
		HistoryIndex: index,
	})
	if err != nil {
		s.mu.Unlock()
		slogging.Get().Error("Failed to marshal undo - room_id=%s error=%v", s.RoomID, err)
		return
	}
	s.enqueueLocked(data, MessageTypeUndo, "")
	s.mu.Unlock()

	slogging.Get().Debug("Undo - room_id=%s user_id=%s cursor=%d", s.RoomID, client.UserID, index)
}

// processRedo moves the history cursor forward and announces it to everyone
func (s *RoomSession) processRedo(client *WebSocketClient) {
	s.mu.Lock()
	_, index := s.Log.Redo()

	data, err := MarshalMessage(RedoMessage{
		Type:         MessageTypeRedo,
		UserID:       client.UserID,
		HistoryIndex: index,
	})
	if err != nil {
		s.mu.Unlock()
		slogging.Get().Error("Failed to marshal redo - room_id=%s error=%v", s.RoomID, err)
		return
	}
	s.enqueueLocked(data, MessageTypeRedo, "")
	s.mu.Unlock()

	slogging.Get().Debug("Redo - room_id=%s user_id=%s cursor=%d", s.RoomID, client.UserID, index)
}

// processClear empties the log and announces it to everyone. Clears are not
// stored as replayable operations: there is no undo of a clear.
func (s *RoomSession) processClear(client *WebSocketClient) {
	data, err := MarshalMessage(ClearMessage{
		Type:   MessageTypeClear,
		UserID: client.UserID,
	})
	if err != nil {
		slogging.Get().Error("Failed to marshal clear - room_id=%s error=%v", s.RoomID, err)
		return
	}

	s.mu.Lock()
	s.Log.Clear()
	s.enqueueLocked(data, MessageTypeClear, "")
	s.mu.Unlock()

	slogging.Get().Info("Canvas cleared - room_id=%s user_id=%s", s.RoomID, client.UserID)
}

// processCursorMove relays the sender's pointer position to its peers.
// Ephemeral: never logged, never replayed.
func (s *RoomSession) processCursorMove(client *WebSocketClient, msg CursorMoveMessage) {
	msg.UserID = client.UserID

	data, err := MarshalMessage(msg)
	if err != nil {
		slogging.Get().Error("Failed to marshal cursor move - room_id=%s error=%v", s.RoomID, err)
		return
	}

	s.mu.Lock()
	s.enqueueLocked(data, msg.Type, client.UserID)
	s.mu.Unlock()
}
