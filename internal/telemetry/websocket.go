package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// WebSocketMetrics provides instrumentation for the collaboration hub.
// A nil *WebSocketMetrics is valid and records nothing, so the hub can run
// without a meter provider in tests.
type WebSocketMetrics struct {
	meter metric.Meter

	connectionCounter metric.Int64UpDownCounter
	roomCounter       metric.Int64UpDownCounter
	messageCounter    metric.Int64Counter
	broadcastCounter  metric.Int64Counter
	droppedSends      metric.Int64Counter
	errorCounter      metric.Int64Counter
}

// NewWebSocketMetrics creates the hub metric instruments
func NewWebSocketMetrics(meter metric.Meter) (*WebSocketMetrics, error) {
	m := &WebSocketMetrics{meter: meter}

	var err error

	m.connectionCounter, err = meter.Int64UpDownCounter(
		"websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection counter: %w", err)
	}

	m.roomCounter, err = meter.Int64UpDownCounter(
		"websocket_rooms_active",
		metric.WithDescription("Number of active drawing rooms"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create room counter: %w", err)
	}

	m.messageCounter, err = meter.Int64Counter(
		"websocket_messages_total",
		metric.WithDescription("Total number of inbound WebSocket messages"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create message counter: %w", err)
	}

	m.broadcastCounter, err = meter.Int64Counter(
		"websocket_broadcasts_total",
		metric.WithDescription("Total number of room broadcasts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create broadcast counter: %w", err)
	}

	m.droppedSends, err = meter.Int64Counter(
		"websocket_dropped_sends_total",
		metric.WithDescription("Outbound messages dropped because a recipient queue was full"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dropped send counter: %w", err)
	}

	m.errorCounter, err = meter.Int64Counter(
		"websocket_malformed_messages_total",
		metric.WithDescription("Inbound messages rejected as malformed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	return m, nil
}

// ConnectionOpened records a new client connection
func (m *WebSocketMetrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionCounter.Add(context.Background(), 1)
}

// ConnectionClosed records a client disconnect
func (m *WebSocketMetrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionCounter.Add(context.Background(), -1)
}

// RoomOpened records a room creation
func (m *WebSocketMetrics) RoomOpened() {
	if m == nil {
		return
	}
	m.roomCounter.Add(context.Background(), 1)
}

// RoomClosed records a room teardown
func (m *WebSocketMetrics) RoomClosed() {
	if m == nil {
		return
	}
	m.roomCounter.Add(context.Background(), -1)
}

// MessageReceived records an inbound message by type
func (m *WebSocketMetrics) MessageReceived(messageType string) {
	if m == nil {
		return
	}
	m.messageCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("message_type", messageType)))
}

// Broadcast records a fan-out and its recipient count
func (m *WebSocketMetrics) Broadcast(messageType string, recipients int) {
	if m == nil {
		return
	}
	m.broadcastCounter.Add(context.Background(), int64(recipients),
		metric.WithAttributes(attribute.String("message_type", messageType)))
}

// SendDropped records an outbound message lost to a full recipient queue
func (m *WebSocketMetrics) SendDropped() {
	if m == nil {
		return
	}
	m.droppedSends.Add(context.Background(), 1)
}

// MalformedMessage records a rejected inbound message
func (m *WebSocketMetrics) MalformedMessage(reason string) {
	if m == nil {
		return
	}
	m.errorCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", reason)))
}
