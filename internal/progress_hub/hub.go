// Package progress_hub fans map building progress out to websocket
// subscribers.
package progress_hub

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
)

type Hub struct {
	clients    map[*Client]bool // Registered clients.
	broadcast  chan Message     // Outbound messages for every client.
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	headerID   atomic.Int64
	connected  atomic.Int64
	serial     string
	now        func() time.Time
}

type Option func(*Hub)

// WithSerialNumber stamps every header with the robot serial.
func WithSerialNumber(serial string) Option {
	return func(h *Hub) {
		h.serial = serial
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		h.now = now
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves register, unregister and broadcast requests until ctx is
// cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	log.Default().Info("Starting mapping progress hub")
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.handleMessage(message)
		case <-ctx.Done():
			for client := range h.clients {
				h.removeClient(client)
			}
			log.Default().Info("Shutting down mapping progress hub")
			return
		}
	}
}

// Publish wraps payload in a message header and hands it to every
// connected client.
func (h *Hub) Publish(ctx context.Context, payload any) error {
	msg := Message{
		Header: Header{
			HeaderID:     h.headerID.Add(1),
			Version:      MessageVersion,
			Manufacturer: "perceptor-bringup",
			SerialNumber: h.serial,
			Timestamp:    h.now().UTC(),
			MessageType:  MessageTypeProgress,
		},
		Payload: payload,
	}
	select {
	case h.broadcast <- msg:
		return nil
	case <-h.done:
		return cerrors.ErrGenericUnavailable.WithMessage("progress hub is stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clients reports how many subscribers are connected.
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

func (h *Hub) registerClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		log.Default().Debug(fmt.Sprintf("Registering new client with id [%s]", client.ID.String()))
		h.clients[client] = true
		h.connected.Store(int64(len(h.clients)))
	}
	log.Default().Debug(fmt.Sprintf("There are [%d] clients connected", len(h.clients)))
}

func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		h.connected.Store(int64(len(h.clients)))
		close(client.send)
		log.Default().Debug(fmt.Sprintf("Client with id [%s] disconnected", client.ID.String()))
	}
}

func (h *Hub) handleMessage(message Message) {
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			log.Default().Info(fmt.Sprintf("client %s's send buffer is full, dropping client", client.ID))
			h.removeClient(client)
		}
	}
}

// Serve registers conn with the hub and pumps messages until either side
// closes.
func (h *Hub) Serve(ctx context.Context, client *Client) error {
	select {
	case h.register <- client:
	case <-h.done:
		_ = client.conn.Close()
		return cerrors.ErrGenericUnavailable.WithMessage("progress hub is stopped")
	case <-ctx.Done():
		_ = client.conn.Close()
		return ctx.Err()
	}
	go client.write()
	client.read()
	return nil
}
