package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	// uploads arrive base64-encoded on the socket, so the frame limit
	// has to accommodate whole files
	maxMessageSize = 64 << 20
)

// Client is one live websocket connection. Its id is the connection id
// participants are addressed by.
type Client struct {
	id       string
	conn     *websocket.Conn
	relay    *RelayServer
	log      *log.Logger
	send     chan *ServerMessage
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(conn *websocket.Conn, rs *RelayServer, l *log.Logger) *Client {
	return &Client{
		id:    uuid.NewString(),
		conn:  conn,
		relay: rs,
		log:   l,
		send:  make(chan *ServerMessage, rs.sendQueueSize),
		stop:  make(chan struct{}),
	}
}

// Id returns the connection id.
func (c *Client) Id() string {
	return c.id
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		if err := msg.validatePayload(); err != nil {
			c.log.Printf("rejecting malformed event from %s: %v", c.id, err)
			c.queueMessage(ErrInvalidMessage(msg.Id))
			continue
		}

		msg.client = c
		msg.Timestamp = Now()

		select {
		case c.relay.eventChan <- &msg:
		default:
			c.log.Println("event channel full, rejecting event")
			c.queueMessage(ErrServiceUnavailable(msg.Id))
		}
	}
}

// queueMessage enqueues msg for delivery, dropping it if the client's
// send queue is full. Delivery is best-effort.
func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send queue full for connection %s, dropping message", c.id)
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	// skip deregistration when the relay loop is already stopping
	select {
	case c.relay.deRegisterChan <- c:
	case <-c.stop:
	}

	c.stopClient()
}
