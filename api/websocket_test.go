package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *WebSocketHub, userID, color string) *WebSocketClient {
	return &WebSocketClient{
		Hub:    hub,
		UserID: userID,
		Color:  color,
		Send:   make(chan []byte, 16),
	}
}

// receiveMessage pops the next queued outbound message for the client.
// All enqueueing in these tests happens synchronously on the test goroutine,
// so an empty queue means the message was never sent.
func receiveMessage(t *testing.T, client *WebSocketClient) Message {
	t.Helper()
	select {
	case data, ok := <-client.Send:
		require.True(t, ok, "send channel closed")
		msg, err := ParseMessage(data)
		require.NoError(t, err)
		return msg
	default:
		t.Fatal("no message queued")
		return nil
	}
}

func assertNoMessage(t *testing.T, client *WebSocketClient) {
	t.Helper()
	select {
	case data := <-client.Send:
		t.Fatalf("unexpected message queued: %s", data)
	default:
	}
}

func TestJoinRoomCreatesRoomLazily(t *testing.T) {
	hub := NewWebSocketHub()

	require.Nil(t, hub.GetRoom("room-1"))

	client := newTestClient(hub, "user-1", "#FF6B6B")
	session := hub.JoinRoom("room-1", client)

	require.NotNil(t, session)
	assert.Equal(t, "room-1", session.RoomID)
	assert.NotEmpty(t, session.ID)
	assert.Same(t, session, hub.GetRoom("room-1"))
	assert.Same(t, session, client.Session)
	assert.ElementsMatch(t, []string{"user-1"}, session.Members())
}

func TestJoinRoomReusesExistingRoom(t *testing.T) {
	hub := NewWebSocketHub()

	a := newTestClient(hub, "user-a", "#FF6B6B")
	b := newTestClient(hub, "user-b", "#4ECDC4")

	first := hub.JoinRoom("shared", a)
	second := hub.JoinRoom("shared", b)

	assert.Same(t, first, second)
	assert.ElementsMatch(t, []string{"user-a", "user-b"}, first.Members())
}

func TestLeaveRoomDestroysEmptyRoom(t *testing.T) {
	hub := NewWebSocketHub()

	client := newTestClient(hub, "user-1", "#FF6B6B")
	hub.JoinRoom("solo", client)

	hub.LeaveRoom(client)

	assert.Nil(t, hub.GetRoom("solo"))

	// Send channel is closed on leave
	_, ok := <-client.Send
	assert.False(t, ok)

	// Leaving again is a no-op
	assert.NotPanics(t, func() { hub.LeaveRoom(client) })
}

func TestLeaveRoomBroadcastsUserLeft(t *testing.T) {
	hub := NewWebSocketHub()

	a := newTestClient(hub, "user-a", "#FF6B6B")
	b := newTestClient(hub, "user-b", "#4ECDC4")
	session := hub.JoinRoom("shared", a)
	hub.JoinRoom("shared", b)

	hub.LeaveRoom(a)

	// Room survives with b still in it
	assert.Same(t, session, hub.GetRoom("shared"))
	assert.ElementsMatch(t, []string{"user-b"}, session.Members())

	left, ok := receiveMessage(t, b).(UserLeftMessage)
	require.True(t, ok)
	assert.Equal(t, "user-a", left.UserID)
}

func TestRoomsAreIsolated(t *testing.T) {
	hub := NewWebSocketHub()

	a := newTestClient(hub, "user-a", "#FF6B6B")
	b := newTestClient(hub, "user-b", "#4ECDC4")
	r1 := hub.JoinRoom("r1", a)
	r2 := hub.JoinRoom("r2", b)

	require.NotSame(t, r1, r2)

	r1.processStrokeComplete(a, StrokeCompleteMessage{
		Type:      MessageTypeStrokeComplete,
		Points:    []Point{{X: 0, Y: 0}},
		Color:     "#000000",
		BrushSize: 3,
	})

	assert.Equal(t, 1, r1.Log.Len())
	assert.Equal(t, 0, r2.Log.Len())
	assertNoMessage(t, b)
}

func TestStrokeCompleteFanOutExcludesSender(t *testing.T) {
	hub := NewWebSocketHub()

	a := newTestClient(hub, "user-a", "#FF6B6B")
	b := newTestClient(hub, "user-b", "#4ECDC4")
	c := newTestClient(hub, "user-c", "#45B7D1")
	session := hub.JoinRoom("shared", a)
	hub.JoinRoom("shared", b)
	hub.JoinRoom("shared", c)

	session.processStrokeComplete(a, StrokeCompleteMessage{
		Type:      MessageTypeStrokeComplete,
		UserID:    "spoofed",
		Points:    []Point{{X: 0, Y: 0}, {X: 10, Y: 10}},
		Color:     "#000000",
		BrushSize: 3,
	})

	assertNoMessage(t, a)

	for _, peer := range []*WebSocketClient{b, c} {
		stroke, ok := receiveMessage(t, peer).(StrokeCompleteMessage)
		require.True(t, ok)
		// Sender identity is authoritative, not the claimed userId
		assert.Equal(t, "user-a", stroke.UserID)
		assert.Len(t, stroke.Points, 2)
	}

	assert.Equal(t, 1, session.Log.Len())
	assert.Equal(t, 0, session.Log.Cursor())
}

func TestUndoRedoClearIncludeSender(t *testing.T) {
	hub := NewWebSocketHub()

	a := newTestClient(hub, "user-a", "#FF6B6B")
	b := newTestClient(hub, "user-b", "#4ECDC4")
	session := hub.JoinRoom("shared", a)
	hub.JoinRoom("shared", b)

	session.processStrokeComplete(a, StrokeCompleteMessage{
		Type:      MessageTypeStrokeComplete,
		Points:    []Point{{X: 1, Y: 1}},
		Color:     "#000000",
		BrushSize: 2,
	})
	receiveMessage(t, b) // relayed stroke

	session.processUndo(a)
	for _, member := range []*WebSocketClient{a, b} {
		undo, ok := receiveMessage(t, member).(UndoMessage)
		require.True(t, ok)
		assert.Equal(t, "user-a", undo.UserID)
		assert.Equal(t, -1, undo.HistoryIndex)
	}

	session.processRedo(b)
	for _, member := range []*WebSocketClient{a, b} {
		redo, ok := receiveMessage(t, member).(RedoMessage)
		require.True(t, ok)
		assert.Equal(t, "user-b", redo.UserID)
		assert.Equal(t, 0, redo.HistoryIndex)
	}

	session.processClear(a)
	for _, member := range []*WebSocketClient{a, b} {
		cleared, ok := receiveMessage(t, member).(ClearMessage)
		require.True(t, ok)
		assert.Equal(t, "user-a", cleared.UserID)
	}
	assert.Equal(t, 0, session.Log.Len())
}

func TestCursorMoveRelaysToPeersOnly(t *testing.T) {
	hub := NewWebSocketHub()

	a := newTestClient(hub, "user-a", "#FF6B6B")
	b := newTestClient(hub, "user-b", "#4ECDC4")
	session := hub.JoinRoom("shared", a)
	hub.JoinRoom("shared", b)

	session.processCursorMove(a, CursorMoveMessage{Type: MessageTypeCursorMove, X: 3, Y: 4})

	assertNoMessage(t, a)
	cursor, ok := receiveMessage(t, b).(CursorMoveMessage)
	require.True(t, ok)
	assert.Equal(t, "user-a", cursor.UserID)
	assert.Equal(t, 3.0, cursor.X)
}

func TestLateJoinerReceivesSnapshotAndMembers(t *testing.T) {
	hub := NewWebSocketHub()

	a := newTestClient(hub, "user-a", "#FF6B6B")
	session := hub.JoinRoom("shared", a)
	session.sendInit(a)
	receiveMessage(t, a) // a's own init

	session.processStrokeComplete(a, StrokeCompleteMessage{
		Type:      MessageTypeStrokeComplete,
		Points:    []Point{{X: 0, Y: 0}, {X: 10, Y: 10}},
		Color:     "#000000",
		BrushSize: 3,
	})

	b := newTestClient(hub, "user-b", "#4ECDC4")
	hub.JoinRoom("shared", b)
	session.sendInit(b)

	init, ok := receiveMessage(t, b).(InitMessage)
	require.True(t, ok)
	assert.Equal(t, "user-b", init.UserID)
	assert.Equal(t, "#4ECDC4", init.Color)
	assert.ElementsMatch(t, []string{"user-a"}, init.Users)
	require.Len(t, init.Operations, 1)
	assert.Equal(t, "user-a", init.Operations[0].UserID)
	assert.Equal(t, []Point{{X: 0, Y: 0}, {X: 10, Y: 10}}, init.Operations[0].Points)
	assert.Equal(t, "#000000", init.Operations[0].Color)
	assert.Equal(t, 3.0, init.Operations[0].BrushSize)

	// a sees the join notice, b does not see its own
	joined, ok := receiveMessage(t, a).(UserJoinedMessage)
	require.True(t, ok)
	assert.Equal(t, "user-b", joined.UserID)
	assert.Equal(t, "#4ECDC4", joined.Color)
	assertNoMessage(t, b)
}

func TestSnapshotExcludesUndoneOperationsForJoiner(t *testing.T) {
	hub := NewWebSocketHub()

	a := newTestClient(hub, "user-a", "#FF6B6B")
	session := hub.JoinRoom("shared", a)

	for i := 0; i < 3; i++ {
		session.processStrokeComplete(a, StrokeCompleteMessage{
			Type:      MessageTypeStrokeComplete,
			Points:    []Point{{X: float64(i), Y: 0}},
			Color:     "#000000",
			BrushSize: 1,
		})
	}
	session.processUndo(a)
	receiveMessage(t, a) // undo echo

	b := newTestClient(hub, "user-b", "#4ECDC4")
	hub.JoinRoom("shared", b)
	session.sendInit(b)

	init, ok := receiveMessage(t, b).(InitMessage)
	require.True(t, ok)
	assert.Len(t, init.Operations, 2)
}

func TestFullSendQueueDropsMessageNotConnection(t *testing.T) {
	hub := NewWebSocketHub()

	a := newTestClient(hub, "user-a", "#FF6B6B")
	b := &WebSocketClient{Hub: hub, UserID: "user-b", Color: "#4ECDC4", Send: make(chan []byte, 1)}
	session := hub.JoinRoom("shared", a)
	hub.JoinRoom("shared", b)

	for i := 0; i < 3; i++ {
		session.processCursorMove(a, CursorMoveMessage{Type: MessageTypeCursorMove, X: float64(i)})
	}

	// Only the first fit; b stays a member
	receiveMessage(t, b)
	assertNoMessage(t, b)
	assert.ElementsMatch(t, []string{"user-a", "user-b"}, session.Members())
}

func TestCleanupSweepsInactiveRooms(t *testing.T) {
	hub := NewWebSocketHub()
	hub.Settings.SessionTimeout = time.Minute

	stale := newTestClient(hub, "user-a", "#FF6B6B")
	session := hub.JoinRoom("stale", stale)
	session.mu.Lock()
	session.LastActivity = time.Now().UTC().Add(-2 * time.Minute)
	session.mu.Unlock()

	fresh := newTestClient(hub, "user-b", "#4ECDC4")
	hub.JoinRoom("fresh", fresh)

	hub.CleanupInactiveSessions()

	assert.Nil(t, hub.GetRoom("stale"))
	assert.NotNil(t, hub.GetRoom("fresh"))

	_, ok := <-stale.Send
	assert.False(t, ok)
}

func TestCleanupKeepsActivelyDrawingRoom(t *testing.T) {
	hub := NewWebSocketHub()
	hub.Settings.SessionTimeout = time.Minute

	a := newTestClient(hub, "user-a", "#FF6B6B")
	b := newTestClient(hub, "user-b", "#4ECDC4")
	session := hub.JoinRoom("busy", a)
	hub.JoinRoom("busy", b)

	// No membership churn since well past the timeout, only drawing traffic
	session.mu.Lock()
	session.LastActivity = time.Now().UTC().Add(-2 * time.Minute)
	session.mu.Unlock()

	session.processCursorMove(a, CursorMoveMessage{Type: MessageTypeCursorMove, X: 1, Y: 1})
	session.processStrokeComplete(a, StrokeCompleteMessage{
		Type:      MessageTypeStrokeComplete,
		Points:    []Point{{X: 1, Y: 1}},
		Color:     "#000000",
		BrushSize: 2,
	})

	hub.CleanupInactiveSessions()

	require.Same(t, session, hub.GetRoom("busy"))
	assert.ElementsMatch(t, []string{"user-a", "user-b"}, session.Members())

	// Both queues are still open and deliverable
	receiveMessage(t, b)
	receiveMessage(t, b)
	session.processCursorMove(a, CursorMoveMessage{Type: MessageTypeCursorMove, X: 2, Y: 2})
	receiveMessage(t, b)
}

func TestSendToDeregisteredClientIsDropped(t *testing.T) {
	hub := NewWebSocketHub()
	hub.Settings.SessionTimeout = time.Minute

	a := newTestClient(hub, "user-a", "#FF6B6B")
	session := hub.JoinRoom("stale", a)
	session.mu.Lock()
	session.LastActivity = time.Now().UTC().Add(-2 * time.Minute)
	session.mu.Unlock()

	// The sweep closes a's send channel while removing it from the room
	hub.CleanupInactiveSessions()
	_, ok := <-a.Send
	require.False(t, ok)

	// A late error for the deregistered client is dropped, not sent on the
	// closed channel
	assert.NotPanics(t, func() {
		session.sendErrorMessage(a, "invalid_message", "late rejection")
	})
}
