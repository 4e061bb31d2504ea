package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routerFixture(t *testing.T) (*WebSocketHub, *RoomSession, *WebSocketClient, *WebSocketClient) {
	t.Helper()

	hub := NewWebSocketHub()
	a := newTestClient(hub, "user-a", "#FF6B6B")
	b := newTestClient(hub, "user-b", "#4ECDC4")
	session := hub.JoinRoom("shared", a)
	hub.JoinRoom("shared", b)
	return hub, session, a, b
}

func TestRouteMessageDispatchesStrokeLifecycle(t *testing.T) {
	hub, session, a, b := routerFixture(t)

	require.NoError(t, hub.router.RouteMessage(session, a,
		[]byte(`{"type":"strokeStart","x":0,"y":0,"color":"#000000","brushSize":3}`)))
	require.NoError(t, hub.router.RouteMessage(session, a,
		[]byte(`{"type":"strokeSegment","x":5,"y":5}`)))
	require.NoError(t, hub.router.RouteMessage(session, a,
		[]byte(`{"type":"strokeComplete","points":[{"x":0,"y":0},{"x":5,"y":5}],"color":"#000000","brushSize":3}`)))

	start, ok := receiveMessage(t, b).(StrokeStartMessage)
	require.True(t, ok)
	assert.Equal(t, "user-a", start.UserID)

	segment, ok := receiveMessage(t, b).(StrokeSegmentMessage)
	require.True(t, ok)
	assert.Equal(t, 5.0, segment.X)

	complete, ok := receiveMessage(t, b).(StrokeCompleteMessage)
	require.True(t, ok)
	assert.Len(t, complete.Points, 2)

	assertNoMessage(t, a)
	assert.Equal(t, 1, session.Log.Len())
}

func TestRouteMessageSegmentWithoutStartRejected(t *testing.T) {
	hub, session, a, b := routerFixture(t)

	require.NoError(t, hub.router.RouteMessage(session, a,
		[]byte(`{"type":"strokeSegment","x":5,"y":5}`)))

	errMsg, ok := receiveMessage(t, a).(ErrorMessage)
	require.True(t, ok)
	assert.Equal(t, "stroke_not_active", errMsg.Error)

	// Nothing relayed, nothing committed, connection still usable
	assertNoMessage(t, b)
	assert.Equal(t, 0, session.Log.Len())

	require.NoError(t, hub.router.RouteMessage(session, a,
		[]byte(`{"type":"cursorMove","x":1,"y":2}`)))
	_, ok = receiveMessage(t, b).(CursorMoveMessage)
	assert.True(t, ok)
}

func TestRouteMessageInvalidJSON(t *testing.T) {
	hub, session, a, b := routerFixture(t)

	err := hub.router.RouteMessage(session, a, []byte(`{"type":`))
	require.Error(t, err)

	errMsg, ok := receiveMessage(t, a).(ErrorMessage)
	require.True(t, ok)
	assert.Equal(t, "invalid_message", errMsg.Error)
	assertNoMessage(t, b)
}

func TestRouteMessageValidationFailure(t *testing.T) {
	hub, session, a, b := routerFixture(t)

	err := hub.router.RouteMessage(session, a,
		[]byte(`{"type":"strokeComplete","points":[],"color":"#000000","brushSize":3}`))
	require.Error(t, err)

	errMsg, ok := receiveMessage(t, a).(ErrorMessage)
	require.True(t, ok)
	assert.Equal(t, "invalid_message", errMsg.Error)
	assert.Equal(t, 0, session.Log.Len())
	assertNoMessage(t, b)
}

func TestRouteMessageServerOnlyTypesRejected(t *testing.T) {
	hub, session, a, b := routerFixture(t)

	for _, payload := range []string{
		`{"type":"init"}`,
		`{"type":"userJoined","userId":"x"}`,
		`{"type":"userLeft","userId":"x"}`,
		`{"type":"error","error":"x","message":"x"}`,
	} {
		require.NoError(t, hub.router.RouteMessage(session, a, []byte(payload)), payload)

		errMsg, ok := receiveMessage(t, a).(ErrorMessage)
		require.True(t, ok, payload)
		assert.Equal(t, "invalid_message_type", errMsg.Error)
	}
	assertNoMessage(t, b)
}

func TestRouteMessageUnsupportedType(t *testing.T) {
	hub, session, a, _ := routerFixture(t)

	require.NoError(t, hub.router.RouteMessage(session, a, []byte(`{"type":"teleport"}`)))

	errMsg, ok := receiveMessage(t, a).(ErrorMessage)
	require.True(t, ok)
	assert.Equal(t, "unsupported_message_type", errMsg.Error)
}

func TestRouteMessageUndoRedo(t *testing.T) {
	hub, session, a, b := routerFixture(t)

	require.NoError(t, hub.router.RouteMessage(session, a,
		[]byte(`{"type":"strokeComplete","points":[{"x":1,"y":1}],"color":"#000","brushSize":1}`)))
	receiveMessage(t, b)

	require.NoError(t, hub.router.RouteMessage(session, a, []byte(`{"type":"undo"}`)))
	for _, member := range []*WebSocketClient{a, b} {
		undo, ok := receiveMessage(t, member).(UndoMessage)
		require.True(t, ok)
		assert.Equal(t, -1, undo.HistoryIndex)
	}

	require.NoError(t, hub.router.RouteMessage(session, b, []byte(`{"type":"redo"}`)))
	for _, member := range []*WebSocketClient{a, b} {
		redo, ok := receiveMessage(t, member).(RedoMessage)
		require.True(t, ok)
		assert.Equal(t, 0, redo.HistoryIndex)
	}
}
