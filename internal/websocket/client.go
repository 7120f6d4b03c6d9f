package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/courier/internal/model"
	"github.com/dukerupert/courier/internal/relay"
)

const (
	sendBufferSize  = 16
	pingInterval    = 30 * time.Second
	maxMessageBytes = 1 << 20
)

// Frame types sent to clients.
const (
	TypeConnected = "relay/connected"
	TypeAck       = "relay/ack"
	TypeError     = "relay/error"
)

type connectedFrame struct {
	Type     string    `json:"type"`
	OwnerID  string    `json:"owner_id"`
	DeviceID string    `json:"device_id"`
	Now      time.Time `json:"now"`
}

type ackFrame struct {
	Type      string    `json:"type"`
	Delivered int       `json:"delivered"`
	ThreadID  string    `json:"thread_id"`
	SentAt    time.Time `json:"sent_at"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// inboundFrame is what clients send: an envelope to publish.
type inboundFrame struct {
	Envelope *model.Envelope `json:"envelope"`
}

// Client is a single relay WebSocket connection, registered in the store's
// socket registry for the lifetime of Run.
type Client struct {
	store    *relay.Store
	conn     *ws.Conn
	ownerID  string
	deviceID string
	send     chan []byte
	done     chan struct{}
	closed   sync.Once
	logger   *slog.Logger
}

// NewClient creates a Client tied to the given store and connection.
func NewClient(store *relay.Store, conn *ws.Conn, ownerID, deviceID string, logger *slog.Logger) *Client {
	return &Client{
		store:    store,
		conn:     conn,
		ownerID:  ownerID,
		deviceID: deviceID,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Send queues a payload for delivery without blocking. It reports false when
// the connection is finished or its buffer is full; the caller treats that
// as a skipped socket, never an error.
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

var _ relay.Conn = (*Client)(nil)

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters on every
// disconnect path so the registry never holds a dead reference.
func (c *Client) Run(ctx context.Context) {
	c.store.RegisterSocket(c.ownerID, c.deviceID, c)
	defer func() {
		c.store.UnregisterSocket(c.ownerID, c.deviceID, c)
		c.closed.Do(func() { close(c.done) })
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump processes inbound frames one at a time, preserving per-connection
// order. It returns on read error (connection close), which triggers cleanup.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil || in.Envelope == nil {
		c.sendError("expected a frame carrying an envelope")
		return
	}

	env := *in.Envelope
	if env.V != model.EnvelopeVersion {
		c.sendError("unsupported envelope version")
		return
	}
	if env.OwnerID != c.ownerID {
		c.sendError("envelope owner does not match connection")
		return
	}
	if env.ToDeviceID == "" || env.Ciphertext == "" {
		c.sendError("envelope is missing to_device_id or ciphertext")
		return
	}
	if env.FromDeviceID == "" {
		env.FromDeviceID = c.deviceID
	}
	if c.store.DeviceRevoked(env.OwnerID, env.FromDeviceID) {
		c.sendError("sending device has been revoked")
		return
	}
	if !env.Broadcast() && c.store.DeviceRevoked(env.OwnerID, env.ToDeviceID) {
		c.sendError("target device has been revoked")
		return
	}
	if env.SentAt.IsZero() {
		env.SentAt = time.Now().UTC()
	}

	c.store.TouchDevice(c.ownerID, c.deviceID)
	delivered := c.store.PublishEnvelope(env)

	c.sendJSON(ackFrame{
		Type:      TypeAck,
		Delivered: delivered,
		ThreadID:  env.ThreadID,
		SentAt:    env.SentAt,
	})
}

func (c *Client) sendError(msg string) {
	c.sendJSON(errorFrame{Type: TypeError, Error: msg})
}

func (c *Client) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("marshal frame", "error", err)
		return
	}
	c.Send(data)
}

// writePump drains the send channel and writes payloads to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
