// Package remote lets external viewers act as observers over a websocket
// and streams visibility changes back to them.
package remote

import (
	"encoding/json"
	"log"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"
)

// Message types.
const (
	TypeObserver     = "observer"
	TypeLeave        = "leave"
	TypeSnapshot     = "snapshot"
	TypePrefabShown  = "prefabShown"
	TypePrefabHidden = "prefabHidden"
)

type serverEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type clientEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ObserverUpdate moves (or creates) a remote observer.
type ObserverUpdate struct {
	ID       string     `json:"id"`
	Position [3]float32 `json:"position"`
}

type LeaveRequest struct {
	ID string `json:"id"`
}

type PrefabEvent struct {
	ID string `json:"id"`
}

type Snapshot struct {
	Loaded    []string `json:"loaded"`
	Observers int      `json:"observers"`
}

const writeWait = 10 * time.Second

type clientConn struct {
	conn        *websocket.Conn
	writeMu     sync.Mutex
	writeWait   time.Duration
	observerIDs map[string]struct{}
}

func (c *clientConn) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.conn.WriteJSON(value)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Hub tracks connected viewers and the observers they report. It
// implements visibility.ObserverSource.
type Hub struct {
	// Loaded, when set, supplies the ids sent in the snapshot a client
	// receives on connect.
	Loaded func() []string

	// WriteWait bounds each write to a client. A client that stops reading
	// is dropped once a write times out.
	WriteWait time.Duration

	mu        sync.Mutex
	clients   map[*clientConn]struct{}
	observers map[string]mgl32.Vec3
}

func NewHub() *Hub {
	return &Hub{
		WriteWait: writeWait,
		clients:   make(map[*clientConn]struct{}),
		observers: make(map[string]mgl32.Vec3),
	}
}

func (h *Hub) addClient(client *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

// removeClient drops the client and every observer it reported.
func (h *Hub) removeClient(client *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
	for id := range client.observerIDs {
		delete(h.observers, id)
	}
}

func (h *Hub) updateObserver(client *clientConn, update ObserverUpdate) {
	if update.ID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	client.observerIDs[update.ID] = struct{}{}
	h.observers[update.ID] = mgl32.Vec3(update.Position)
}

func (h *Hub) removeObserver(client *clientConn, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, owned := client.observerIDs[id]; !owned {
		return
	}
	delete(client.observerIDs, id)
	delete(h.observers, id)
}

// ObserverPositions returns the positions of all remote observers ordered
// by observer id.
func (h *Hub) ObserverPositions() []mgl32.Vec3 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.observers) == 0 {
		return nil
	}
	ids := make([]string, 0, len(h.observers))
	for id := range h.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	positions := make([]mgl32.Vec3, 0, len(ids))
	for _, id := range ids {
		positions = append(positions, h.observers[id])
	}
	return positions
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) snapshot() Snapshot {
	var loaded []string
	if h.Loaded != nil {
		loaded = h.Loaded()
	}
	if loaded == nil {
		loaded = []string{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return Snapshot{Loaded: loaded, Observers: len(h.observers)}
}

func (h *Hub) broadcast(envelope serverEnvelope) {
	h.mu.Lock()
	clients := make([]*clientConn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		if err := client.writeJSON(envelope); err != nil {
			log.Printf("remote: write error: %v", err)
			_ = client.conn.Close()
			h.removeClient(client)
		}
	}
}

// PrefabShown tells every client that the instance id was attached.
func (h *Hub) PrefabShown(id string) {
	h.broadcast(serverEnvelope{Type: TypePrefabShown, Payload: PrefabEvent{ID: id}})
}

// PrefabHidden tells every client that the instance id was detached.
func (h *Hub) PrefabHidden(id string) {
	h.broadcast(serverEnvelope{Type: TypePrefabHidden, Payload: PrefabEvent{ID: id}})
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*clientConn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*clientConn]struct{})
	h.observers = make(map[string]mgl32.Vec3)
	h.mu.Unlock()

	for _, client := range clients {
		_ = client.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		_ = client.conn.Close()
	}
}

// Handler upgrades requests to websocket connections served by the hub.
func (h *Hub) Handler() http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		conn, err := upgrader.Upgrade(writer, request, nil)
		if err != nil {
			log.Printf("remote: ws upgrade failed: %v", err)
			return
		}

		client := &clientConn{
			conn:        conn,
			writeWait:   h.WriteWait,
			observerIDs: make(map[string]struct{}),
		}
		h.addClient(client)
		defer func() {
			h.removeClient(client)
			_ = conn.Close()
		}()

		if err := client.writeJSON(serverEnvelope{Type: TypeSnapshot, Payload: h.snapshot()}); err != nil {
			return
		}

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var envelope clientEnvelope
			if err := json.Unmarshal(payload, &envelope); err != nil {
				continue
			}

			switch envelope.Type {
			case TypeObserver:
				var update ObserverUpdate
				if json.Unmarshal(envelope.Payload, &update) == nil {
					h.updateObserver(client, update)
				}
			case TypeLeave:
				var leave LeaveRequest
				if json.Unmarshal(envelope.Payload, &leave) == nil {
					h.removeObserver(client, leave.ID)
				}
			}
		}
	}
}
