package progress_hub

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/pkg/errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10
	sendBuffer     = 16
)

// Client is one websocket subscriber. Only the hub closes send.
type Client struct {
	ID   uuid.UUID
	conn *websocket.Conn
	send chan Message
	hub  *Hub
}

func NewClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:   uuid.New(),
		conn: conn,
		send: make(chan Message, sendBuffer),
		hub:  hub,
	}
}

// read drains control frames so pongs are processed. Subscribers have
// nothing to say; anything they send is discarded.
func (c *Client) read() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Default().Info(errors.Wrap(err, "failed to set read deadline").Error())
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Default().Info(errors.Wrap(err, fmt.Sprintf("client [%s] read error", c.ID)).Error())
			}
			return
		}
	}
}

func (c *Client) write() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Default().Info(errors.Wrap(err, "failed to set write deadline").Error())
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				log.Default().Info(errors.Wrap(err, "failed to send message").Error())
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Default().Info(errors.Wrap(err, "failed to set write deadline").Error())
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Default().Error(errors.Wrap(err, fmt.Sprintf("client [%s] ping error", c.ID)).Error())
				return
			}
		}
	}
}
