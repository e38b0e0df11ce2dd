package collab

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 256 * 1024
	sendBuffer = 256
)

// inboundTypes are the message types a client may send. Everything else is
// server to client only.
var inboundTypes = map[string]bool{
	TypePresenceUpdate: true,
	TypeCmdSubmit:      true,
	TypeSceneSync:      true,
}

// Client is one websocket connection joined to a session.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	UserID      string
	DisplayName string
	SessionID   string
	ClientID    string
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, displayName, sessionID, clientID string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		UserID:      userID,
		DisplayName: displayName,
		SessionID:   sessionID,
		ClientID:    clientID,
	}
}

func (c *Client) logger() *slog.Logger {
	return slog.With("user", c.UserID, "client", c.ClientID, "session", c.SessionID)
}

// ReadPump forwards client messages to the hub until the connection closes.
// Identity fields are stamped from the connection, never trusted from the
// payload.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMsgSize)

	for {
		msg, err := c.read(ctx)
		if err != nil {
			if !closedNormally(err) {
				c.logger().Debug("read error", "error", err)
			}
			return
		}
		if msg == nil {
			continue
		}
		c.hub.deliver(c, msg)
	}
}

// read returns the next accepted message. A nil message with a nil error
// means the frame was dropped.
func (c *Client) read(ctx context.Context) (*Message, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageText {
		c.logger().Warn("binary frame dropped")
		return nil, nil
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger().Warn("invalid message", "error", err)
		return nil, nil
	}
	if !inboundTypes[msg.Type] {
		c.logger().Warn("message type not accepted from clients", "type", msg.Type)
		return nil, nil
	}

	msg.UserID = c.UserID
	msg.ClientID = c.ClientID
	msg.SessionID = c.SessionID
	return &msg, nil
}

func closedNormally(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled)
}

// WritePump drains the send queue to the connection and keeps it alive with
// pings. It returns once the hub closes the queue.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.write(ctx, data); err != nil {
				c.logger().Debug("write error", "error", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Send queues msg for the write pump. It must only be called from the hub
// goroutine, which also closes the queue. A full queue drops the message;
// the client recovers with scene.sync.
func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "type", msg.Type, "error", err)
		return
	}

	select {
	case c.send <- data:
	default:
		c.logger().Warn("client send buffer full, dropping message", "type", msg.Type)
	}
}
