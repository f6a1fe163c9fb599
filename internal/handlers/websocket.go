// -----------------------------------------------------------------------
// WebSocket Handler - Live job progress feed
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/events"
	"github.com/ternarybob/reperio/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// wsClient is one connected feed subscriber. An empty jobID means all jobs.
type wsClient struct {
	conn  *websocket.Conn
	mu    sync.Mutex
	jobID string
}

// WebSocketHandler pushes job progress events to connected clients. Clients
// connect to /ws, optionally with ?job_id= to follow a single job, and
// receive one JSON message per persisted step.
type WebSocketHandler struct {
	logger           arbor.ILogger
	eventService     interfaces.EventService
	clients          map[*wsClient]bool
	mu               sync.RWMutex
	serverInstanceID string
}

// NewWebSocketHandler creates the handler and subscribes it to job events.
func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		eventService:     eventService,
		clients:          make(map[*wsClient]bool),
		serverInstanceID: uuid.New().String(),
	}

	for _, eventType := range []interfaces.EventType{interfaces.EventJobProgress, interfaces.EventJobFinalized} {
		if err := eventService.Subscribe(eventType, h.handleJobEvent); err != nil {
			logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to subscribe websocket handler")
		}
	}

	return h
}

// HandleWebSocket upgrades the connection and registers the client.
// GET /ws?job_id=...
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &wsClient{
		conn:  conn,
		jobID: r.URL.Query().Get("job_id"),
	}

	h.mu.Lock()
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().
		Str("remote", r.RemoteAddr).
		Str("job_id", client.jobID).
		Int("clients", clientCount).
		Msg("WebSocket client connected")

	h.writeMessage(client, map[string]interface{}{
		"type":               "connected",
		"server_instance_id": h.serverInstanceID,
	})

	// Read loop exists only to detect disconnect; clients send nothing.
	go h.readLoop(client)
}

func (h *WebSocketHandler) readLoop(client *wsClient) {
	defer h.removeClient(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHandler) removeClient(client *wsClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	client.conn.Close()
	h.logger.Debug().Msg("WebSocket client disconnected")
}

// handleJobEvent fans a job event out to matching clients.
func (h *WebSocketHandler) handleJobEvent(ctx context.Context, event interfaces.Event) error {
	progress, ok := event.Payload.(events.JobProgress)
	if !ok {
		return nil
	}

	message := map[string]interface{}{
		"type":      string(event.Type),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"payload":   progress,
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		if client.jobID == "" || client.jobID == progress.JobID {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		h.writeMessage(client, message)
	}

	return nil
}

// writeMessage serializes and sends one message, serialized per connection.
// A failed write drops the client.
func (h *WebSocketHandler) writeMessage(client *wsClient, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to marshal websocket message")
		return
	}

	client.mu.Lock()
	client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	err = client.conn.WriteMessage(websocket.TextMessage, data)
	client.mu.Unlock()

	if err != nil {
		h.removeClient(client)
	}
}

// Close disconnects all clients.
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.conn.Close()
	}
	h.clients = make(map[*wsClient]bool)
}
