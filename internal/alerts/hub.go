// Package alerts streams operator alerts over WebSocket. The engine raises
// an alert when a calculator definition produces a non-finite result, which
// is a deployment defect and needs a human, not a retry.
package alerts

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/cardio-cdss-server/internal/domain"
)

// AlertSeverity classifies an alert for operator triage.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is one operator notification.
type Alert struct {
	ID            string              `json:"id"`
	Severity      AlertSeverity       `json:"severity"`
	Kind          string              `json:"kind"`
	CalculatorID  domain.CalculatorID `json:"calculator_id,omitempty"`
	CorrelationID string              `json:"correlation_id,omitempty"`
	Summary       string              `json:"summary"`
	Detail        string              `json:"detail,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Hub fans alerts out to connected WebSocket subscribers. Publishing never
// blocks a calculation: a subscriber that cannot keep up is dropped.
type Hub struct {
	logger *logrus.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}

	upgrader websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	send chan Alert
}

// NewHub creates a hub with no subscribers.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ComputationFailure publishes an alert for a calculator that produced an
// unusable numeric result.
func (h *Hub) ComputationFailure(calculatorID domain.CalculatorID, correlationID, detail string) {
	h.Publish(Alert{
		Severity:      SeverityCritical,
		Kind:          "computation_failure",
		CalculatorID:  calculatorID,
		CorrelationID: correlationID,
		Summary:       "Calculator produced a non-finite or unmappable result",
		Detail:        detail,
	})
}

// Publish delivers the alert to every connected subscriber without blocking.
func (h *Hub) Publish(alert Alert) {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- alert:
		default:
			// Slow subscriber; close it rather than stall the publisher.
			go h.remove(c)
		}
	}

	h.logger.WithFields(logrus.Fields{
		"alert_id":      alert.ID,
		"kind":          alert.Kind,
		"severity":      alert.Severity,
		"calculator_id": alert.CalculatorID,
	}).Warn("Operator alert published")
}

// ServeHTTP upgrades the connection and streams alerts until the subscriber
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Alert stream upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan Alert, 16),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.WithField("remote", r.RemoteAddr).Info("Alert subscriber connected")

	go h.writeLoop(c)
	go h.readLoop(c)
}

// SubscriberCount reports the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
		c.conn.Close()
	}
}

func (h *Hub) writeLoop(c *client) {
	for alert := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteJSON(alert); err != nil {
			h.remove(c)
			return
		}
	}
}

// readLoop discards inbound frames; its only job is to notice disconnects.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, present := h.clients[c]
	if present {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if present {
		close(c.send)
		c.conn.Close()
		h.logger.Info("Alert subscriber disconnected")
	}
}
