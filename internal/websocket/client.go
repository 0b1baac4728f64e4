package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"chat-realtime/internal/metrics"
	"chat-realtime/internal/models"
	"chat-realtime/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
)

// EventHandler processes one inbound frame for a client.
type EventHandler interface {
	HandleEvent(ctx context.Context, client *Client, env models.Envelope)
}

// Client is one live transport connection. A nil conn is allowed for
// connections that are driven in-process.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	session *models.User
	metrics *metrics.Metrics

	mu       sync.Mutex
	userID   string
	channels map[string]struct{}
	closed   bool
}

// NewClient wraps conn. session is the user proven by the handshake token,
// or nil when the connection presented no valid token.
func NewClient(conn *websocket.Conn, session *models.User, queueSize int, m *metrics.Metrics) *Client {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Client{
		id:       uuid.NewString(),
		conn:     conn,
		send:     make(chan []byte, queueSize),
		session:  session,
		metrics:  m,
		channels: make(map[string]struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// UserID returns the bound user, or "" before join_user.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Session returns the handshake user, which may be nil.
func (c *Client) Session() *models.User {
	return c.session
}

func (c *Client) Channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.channels))
	for id := range c.channels {
		out = append(out, id)
	}
	return out
}

func (c *Client) bind(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

func (c *Client) addChannel(channelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.channels[channelID] = struct{}{}
	return true
}

func (c *Client) removeChannel(channelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.channels[channelID]; !ok {
		return false
	}
	delete(c.channels, channelID)
	return true
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// close marks the client closed, closes the send queue and returns the
// channels it had joined. Subsequent calls return nil.
func (c *Client) close() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)

	channels := make([]string, 0, len(c.channels))
	for id := range c.channels {
		channels = append(channels, id)
	}
	c.channels = make(map[string]struct{})
	return channels
}

// Send encodes event and queues it without blocking.
func (c *Client) Send(event models.Event) bool {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Error marshaling %s event: %v", event.Type, err)
		return false
	}
	return c.enqueue(data, event.Type)
}

// enqueue drops the frame when the queue is full or the client is closed.
func (c *Client) enqueue(data []byte, eventType models.MessageType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.metrics.EventDropped(string(eventType))
		return false
	}
	select {
	case c.send <- data:
		c.metrics.EventSent(string(eventType))
		return true
	default:
		c.metrics.EventDropped(string(eventType))
		logger.Warn("Send queue full for connection %s, dropped %s event", c.id, eventType)
		return false
	}
}

// SendError reports a synchronous failure to this connection only.
func (c *Client) SendError(requestType models.MessageType, err error) {
	c.Send(models.Event{
		Type: models.EventError,
		Data: models.ErrorPayload{
			Code:        models.ErrorCode(err),
			Message:     err.Error(),
			RequestType: requestType,
		},
	})
}

// ReadPump decodes inbound frames until the connection fails, then calls
// onClose exactly once.
func (c *Client) ReadPump(handler EventHandler, onClose func()) {
	defer func() {
		onClose()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	// Set read deadline and pong handler for connection health
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error: %v", err)
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(frame, &env); err != nil || env.Type == "" {
			c.SendError("", models.ErrInvalidPayload)
			continue
		}

		handler.HandleEvent(context.Background(), c, env)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
