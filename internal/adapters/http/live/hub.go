// Package live streams detector output to websocket clients.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/efast/internal/adapters/render"
	"github.com/okian/efast/internal/domain/model"
	"github.com/okian/efast/pkg/logger"
	"github.com/okian/efast/pkg/metrics"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10

	readLimit         = 1 << 16
	defaultBufferSize = 256
)

// Message types sent to clients.
const (
	TypeConfig   = "config"
	TypeFeatures = "features"
	TypeFrame    = "frame"
	TypeSnapshot = "snapshot"
)

// ConfigMessage is sent once when a client connects.
type ConfigMessage struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// FeaturesMessage carries the features found in one packet.
type FeaturesMessage struct {
	Type       string          `json:"type"`
	Seq        uint64          `json:"seq"`
	Events     int             `json:"events"`
	Features   []model.Feature `json:"features"`
	DurationNS int64           `json:"duration_ns"`
}

// FrameMessage carries a rendered frame as PNG (base64 in JSON).
type FrameMessage struct {
	Type  string `json:"type"`
	Seq   uint64 `json:"seq"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
	PNG   []byte `json:"png"`
}

// SnapshotMessage answers a client's snapshot request with the active set.
type SnapshotMessage struct {
	Type     string        `json:"type"`
	Features []model.Point `json:"features"`
}

type request struct {
	Type string `json:"type"`
}

// Snapshotter exposes the currently active feature pixels.
type Snapshotter interface {
	Snapshot(ctx context.Context) []model.Point
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Hub fans messages out to every connected websocket client.
type Hub struct {
	upgrader websocket.Upgrader
	width    int
	height   int
	active   Snapshotter

	bufferSize int
	messages   chan any

	// mu guards clients and active. Socket writes happen outside it.
	mu      sync.Mutex
	clients map[*websocket.Conn]*client
	count   atomic.Int64

	logger logger.Logger
}

// NewHub creates a hub for a width x height sensor.
func NewHub(width, height int, opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		width:      width,
		height:     height,
		bufferSize: defaultBufferSize,
		clients:    make(map[*websocket.Conn]*client),
		logger:     logger.Get().Named("live"),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.messages = make(chan any, h.bufferSize)
	return h
}

// Run broadcasts published messages until ctx is cancelled, then closes all clients.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.messages:
			h.broadcast(ctx, msg)
		}
	}
}

// Publish queues msg for broadcast. It never blocks; when the buffer is
// full the message is dropped and false is returned.
func (h *Hub) Publish(msg any) bool {
	select {
	case h.messages <- msg:
		return true
	default:
		metrics.RecordErrorByComponent("live", "dropped")
		return false
	}
}

// HandlePacket publishes the packet's features. Packets without features
// are not sent.
func (h *Hub) HandlePacket(_ context.Context, r model.PacketResult) error {
	if len(r.Features) == 0 {
		return nil
	}
	h.Publish(FeaturesMessage{
		Type:       TypeFeatures,
		Seq:        r.Seq,
		Events:     len(r.Events),
		Features:   r.Features,
		DurationNS: r.Duration.Nanoseconds(),
	})
	return nil
}

// HandleFrame publishes a rendered frame.
func (h *Hub) HandleFrame(_ context.Context, f render.Frame) error {
	if h.ClientCount() == 0 {
		return nil
	}
	data, err := render.EncodePNG(f.Image)
	if err != nil {
		return err
	}
	h.Publish(FrameMessage{Type: TypeFrame, Seq: f.Seq, Start: f.Start, End: f.End, PNG: data})
	return nil
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[conn] = c
	h.count.Store(int64(len(h.clients)))
	h.mu.Unlock()
	metrics.UpdateLiveClients(h.ClientCount())

	_ = h.writeJSON(c, ConfigMessage{Type: TypeConfig, Width: h.width, Height: h.height})

	go h.readLoop(context.WithoutCancel(r.Context()), c)
}

// ClientCount returns the number of connected clients. It never waits on a
// broadcast in progress.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// SetActiveSet lets clients request the active feature set. It may be called
// after NewHub, while the hub is running.
func (h *Hub) SetActiveSet(s Snapshotter) {
	h.mu.Lock()
	h.active = s
	h.mu.Unlock()
}

func (h *Hub) activeSet() Snapshotter {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := h.writeMessage(c, websocket.PingMessage, nil); err != nil {
					_ = c.conn.Close()
					return
				}
			}
		}
	}()
	defer close(done)
	defer h.removeClient(c.conn)

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var req request
		if err := json.Unmarshal(payload, &req); err != nil {
			continue
		}
		if req.Type != "snapshot_request" {
			continue
		}
		if active := h.activeSet(); active != nil {
			msg := SnapshotMessage{Type: TypeSnapshot, Features: active.Snapshot(ctx)}
			if err := h.writeJSON(c, msg); err == nil {
				metrics.RecordLiveMessage(TypeSnapshot)
			}
		}
	}
}

func (h *Hub) broadcast(ctx context.Context, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(ctx, "encode live message", logger.Error(err))
		return
	}
	msgType := messageType(msg)

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	var stale []*websocket.Conn
	for _, c := range targets {
		if err := h.writeMessage(c, websocket.TextMessage, payload); err != nil {
			stale = append(stale, c.conn)
			continue
		}
		metrics.RecordLiveMessage(msgType)
	}

	for _, conn := range stale {
		h.removeClient(conn)
	}
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.count.Store(int64(len(h.clients)))
	h.mu.Unlock()
	metrics.UpdateLiveClients(h.ClientCount())
	_ = conn.Close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()
	for _, conn := range conns {
		h.removeClient(conn)
	}
}

func (h *Hub) writeJSON(c *client, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(payload)
}

func (h *Hub) writeMessage(c *client, messageType int, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, payload)
}

func messageType(msg any) string {
	switch msg.(type) {
	case FeaturesMessage:
		return TypeFeatures
	case FrameMessage:
		return TypeFrame
	default:
		return "other"
	}
}
