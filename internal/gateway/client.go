package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentmemory/backend/internal/bus"
	"github.com/agentmemory/backend/pkg/protocol"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxOutboundBuf = 256
)

// outboundFrame is one envelope pushed to the browser/agent over the socket.
type outboundFrame struct {
	Channel   string      `json:"channel"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// controlFrame is one envelope received from the client.
type controlFrame struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel,omitempty"`
	Topics  []string `json:"topics,omitempty"`
}

// Client wraps one accepted WebSocket connection: a read goroutine parses
// control frames, a write goroutine drains the outbound queue, and a
// per-connection subscription set decides which broadcast events to forward.
type Client struct {
	id      string
	agentID string
	conn    *websocket.Conn

	mu            sync.Mutex
	subscriptions map[string]bool

	send chan outboundFrame
	done chan struct{}
}

// NewClient wraps conn in a Client with a fresh random id, bound to the
// agent id the handshake authenticated (empty when auth is disabled or no
// agentId was presented), subscribed to the global channel (and to its own
// agent channel when agentID is set); "subscribe" control frames add
// channels to that set.
func NewClient(conn *websocket.Conn, agentID string) *Client {
	subs := map[string]bool{protocol.ChannelAll: true}
	if agentID != "" {
		subs[agentChannel(agentID)] = true
	}
	return &Client{
		id:            uuid.NewString(),
		agentID:       agentID,
		conn:          conn,
		subscriptions: subs,
		send:          make(chan outboundFrame, maxOutboundBuf),
		done:          make(chan struct{}),
	}
}

// agentChannel returns "agents/{agentID}" the way an agent-scoped event
// channel is named.
func agentChannel(agentID string) string {
	return "agents/" + agentID
}

// canSubscribe reports whether this client may subscribe to channel: every
// known broadcast channel is open to all clients, but a per-agent channel
// is restricted to the agent it names, and only when this connection
// authenticated as that agent.
func (c *Client) canSubscribe(channel string) bool {
	if protocol.KnownChannels[channel] {
		return true
	}
	if rest, ok := strings.CutPrefix(channel, "agents/"); ok {
		return c.agentID != "" && rest == c.agentID
	}
	return false
}

// SendEvent enqueues event for delivery on channel if the client is
// subscribed to it. The queue has backpressure: when full, the oldest
// queued frame is dropped, whatever its event, rather than blocking the
// broadcaster; dropped frames are not counted.
func (c *Client) SendEvent(channel string, event bus.Event) {
	c.mu.Lock()
	subscribed := c.subscriptions[protocol.ChannelAll] || c.subscriptions[channel]
	c.mu.Unlock()
	if !subscribed {
		return
	}

	frame := outboundFrame{
		Channel:   channel,
		Event:     event.Name,
		Data:      event.Payload,
		Timestamp: time.Now(),
	}

	select {
	case c.send <- frame:
	default:
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- frame:
		default:
		}
	}
}

// Run starts the client's read and write loops and blocks until either
// disconnects or ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writeLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		c.readLoop()
	}()
	wg.Wait()
}

func (c *Client) readLoop() {
	defer close(c.done)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame controlFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		c.handleControl(frame)
	}
}

func (c *Client) handleControl(frame controlFrame) {
	switch frame.Type {
	case protocol.ControlSubscribe:
		c.mu.Lock()
		for _, t := range frame.Topics {
			if c.canSubscribe(t) {
				c.subscriptions[t] = true
			}
		}
		if frame.Channel != "" && c.canSubscribe(frame.Channel) {
			c.subscriptions[frame.Channel] = true
		}
		c.mu.Unlock()
	case protocol.ControlUnsubscribe:
		c.mu.Lock()
		for _, t := range frame.Topics {
			delete(c.subscriptions, t)
		}
		if frame.Channel != "" {
			delete(c.subscriptions, frame.Channel)
		}
		c.mu.Unlock()
	case protocol.ControlPing:
		select {
		case c.send <- outboundFrame{Channel: protocol.ChannelSystem, Event: protocol.ControlPong, Timestamp: time.Now()}:
		default:
		}
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				slog.Debug("gateway write failed", "client", c.id, "error", err)
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

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
