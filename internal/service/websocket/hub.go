package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"invoicecam/internal/dto"
	"invoicecam/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	broadcastQueueSize = 16
	writeTimeout       = 5 * time.Second
)

// HubService fans session state and preview frames out to connected viewers.
// A newly registered viewer first receives the last published state. Frames
// may be dropped under load; state changes are coalesced but never dropped.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	stateReady chan struct{}
	done       chan struct{}
	lastState  []byte
	pending    []byte // newest state not yet written to viewers
	dropped    uint64
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastQueueSize),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		stateReady: make(chan struct{}, 1),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then closes
// every viewer connection.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			last := h.lastState
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", count)

			if last != nil {
				h.send(client, last)
			}

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Info("Viewer disconnected. Total: %d", h.GetClientCount())

		case <-h.stateReady:
			h.flushState()

		case message := <-h.broadcast:
			// A pending state goes out ahead of queued frames.
			h.flushState()
			for _, client := range h.snapshotClients() {
				h.send(client, message)
			}
		}
	}
}

// Register adds a viewer. It returns immediately once the hub has stopped.
func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a viewer and closes its connection.
func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a message for every viewer. A full queue drops the message
// so publishers never block.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		h.mutex.Lock()
		h.dropped++
		h.mutex.Unlock()
		return false
	}
}

// PublishState remembers state for late viewers and marks it pending for
// connected ones. Only the newest pending state is written.
func (h *HubService) PublishState(state dto.SessionState) {
	message, err := json.Marshal(dto.ViewerMessage{Type: "state", State: &state})
	if err != nil {
		h.logger.Error("Error encoding state message: %v", err)
		return
	}

	h.mutex.Lock()
	h.lastState = message
	h.pending = message
	h.mutex.Unlock()

	select {
	case h.stateReady <- struct{}{}:
	default:
	}
}

func (h *HubService) flushState() {
	h.mutex.Lock()
	message := h.pending
	h.pending = nil
	h.mutex.Unlock()

	if message == nil {
		return
	}
	for _, client := range h.snapshotClients() {
		h.send(client, message)
	}
}

// PublishFrame broadcasts a JPEG preview frame.
func (h *HubService) PublishFrame(jpeg []byte) {
	message, err := json.Marshal(dto.ViewerMessage{
		Type:  "frame",
		Image: base64.StdEncoding.EncodeToString(jpeg),
	})
	if err != nil {
		h.logger.Error("Error encoding frame message: %v", err)
		return
	}
	h.Broadcast(message)
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were dropped because the queue was full.
func (h *HubService) Dropped() uint64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.dropped
}

func (h *HubService) snapshotClients() []*websocket.Conn {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

func (h *HubService) send(client *websocket.Conn, message []byte) {
	client.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
		h.logger.Warning("Error sending message to viewer: %v", err)
		h.remove(client)
	}
}

func (h *HubService) remove(client *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.Close()
	}
}
