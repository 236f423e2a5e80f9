// Package live fans vital-sign events out to websocket subscribers. Clients
// subscribe to patient and department topics; an event names every topic
// it belongs to and reaches each subscribed client once.
package live

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const (
	patientPrefix    = "patient:"
	departmentPrefix = "department:"
)

func PatientTopic(id string) string { return patientPrefix + id }

func DepartmentTopic(dept string) string { return departmentPrefix + dept }

// ParseTopic splits a topic into its kind ("patient" or "department") and
// key. ok is false for anything else.
func ParseTopic(topic string) (kind, key string, ok bool) {
	switch {
	case strings.HasPrefix(topic, patientPrefix):
		kind, key = "patient", strings.TrimPrefix(topic, patientPrefix)
	case strings.HasPrefix(topic, departmentPrefix):
		kind, key = "department", strings.TrimPrefix(topic, departmentPrefix)
	default:
		return "", "", false
	}
	return kind, key, key != ""
}

// Event is a notification sent to subscribers.
type Event struct {
	Type         string      `json:"type"`
	Topics       []string    `json:"topics"`
	ResourceType string      `json:"resource_type,omitempty"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
	Data         interface{} `json:"data,omitempty"`
}

// ClientMessage is an inbound subscription request.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Client is one websocket connection.
type Client struct {
	ID     string
	Topics []string
	Send   chan []byte
}

func NewClient(id string, buffer int) *Client {
	return &Client{ID: id, Send: make(chan []byte, buffer)}
}

// Hub tracks clients and their topic subscriptions.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> subscribers
	all     map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
	}
}

// Register adds a client and subscribes it to its initial topics.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		h.add(topic, client)
	}
}

// Unregister removes a client from every topic and closes its Send channel.
// Calling it twice is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		h.remove(topic, client)
	}
	delete(h.all, client)
	close(client.Send)
}

func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		if _, ok := h.clients[topic][client]; ok {
			continue
		}
		h.add(topic, client)
		client.Topics = append(client.Topics, topic)
	}
}

func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	drop := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		drop[topic] = struct{}{}
		h.remove(topic, client)
	}

	remaining := client.Topics[:0]
	for _, t := range client.Topics {
		if _, ok := drop[t]; !ok {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

// ProcessMessage dispatches a subscribe or unsubscribe request. Unknown
// actions are ignored.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	}
}

// Publish encodes event and delivers it to the subscribers of its topics.
func (h *Hub) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	h.Deliver(event.Topics, data)
	return nil
}

// Deliver sends an encoded event to every client subscribed to at least one
// of topics. Clients with a full buffer miss the message.
func (h *Hub) Deliver(topics []string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]struct{})
	for _, topic := range topics {
		for client := range h.clients[topic] {
			if _, dup := seen[client]; dup {
				continue
			}
			seen[client] = struct{}{}
			select {
			case client.Send <- data:
			default:
			}
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// add and remove expect h.mu to be held.
func (h *Hub) add(topic string, client *Client) {
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*Client]struct{})
	}
	h.clients[topic][client] = struct{}{}
}

func (h *Hub) remove(topic string, client *Client) {
	if subscribers, ok := h.clients[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
}
