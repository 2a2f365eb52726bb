package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/internal/pkg/pubsub"
)

// Hub fans job progress out to the sockets watching each job.
type Hub struct {
	// several tabs may watch the same job
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	log     *zap.Logger
}

type Client struct {
	JobID string
	Conn  *websocket.Conn
	mu    sync.Mutex // serializes writes
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		log:     log,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.JobID] == nil {
		h.clients[client.JobID] = make(map[*Client]struct{})
	}
	h.clients[client.JobID][client] = struct{}{}

	h.log.Debug("progress watcher connected",
		zap.String("job_id", client.JobID),
		zap.Int("job_conns", len(h.clients[client.JobID])))
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.clients[client.JobID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.clients, client.JobID)
		}
	}
	h.log.Debug("progress watcher disconnected", zap.String("job_id", client.JobID))
}

// SendToJob writes msg to every connection watching jobID.
func (h *Hub) SendToJob(jobID string, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	conns, ok := h.clients[jobID]
	if !ok {
		h.mu.RUnlock()
		return nil
	}
	// copy so writes happen without the lock
	clients := make([]*Client, 0, len(conns))
	for c := range conns {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.log.Warn("progress write failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}
	return nil
}

// Send writes msg to a single connection.
func (h *Hub) Send(client *Client, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return client.write(data)
}

func (c *Client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// PublishProgress delivers progress straight to local watchers. It lets the
// hub stand in for the Redis publisher when jobs run in-process.
func (h *Hub) PublishProgress(_ context.Context, msg *pubsub.ProgressMessage) error {
	msg.Fill()
	return h.SendToJob(msg.JobID, &Message{Type: msg.Type, Data: msg})
}

// IsWatched reports whether any connection follows jobID.
func (h *Hub) IsWatched(jobID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns, ok := h.clients[jobID]
	return ok && len(conns) > 0
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}
