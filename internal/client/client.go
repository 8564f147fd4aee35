package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/K41-max/mahjong/internal/protocol"
)

// ErrConnectionClosed is returned by Run when the server side goes away.
var ErrConnectionClosed = errors.New("connection closed")

// Config holds websocket tuning for the client connection.
type Config struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// DefaultConfig returns the default client connection configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     64,
	}
}

// Client is the persistent bidirectional channel to the room server. Inbound
// events surface on Events; outbound events are fire-and-forget via Send.
type Client struct {
	conn   *websocket.Conn
	config Config
	send   chan protocol.Event
	events chan protocol.Event
	done   chan struct{}
}

// Dial connects to the room server's websocket endpoint and starts the read
// and write pumps.
func Dial(ctx context.Context, url string, config Config) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &Client{
		conn:   conn,
		config: config,
		send:   make(chan protocol.Event, config.SendBuffer),
		events: make(chan protocol.Event, config.SendBuffer),
		done:   make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()

	log.Info().Str("url", url).Msg("connected to room server")
	return c, nil
}

// Events returns the inbound event stream. The channel closes when the
// connection does.
func (c *Client) Events() <-chan protocol.Event { return c.events }

// Send queues an event for delivery. It never blocks: when the send buffer
// is full the frame is dropped with a warning, matching the fire-and-forget
// contract of the protocol.
func (c *Client) Send(event protocol.Event) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- event:
		return nil
	default:
		log.Warn().Str("event_type", string(event.Type)).Msg("send buffer full, dropping event")
		return nil
	}
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case event := <-c.send:
			data, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to marshal event")
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Msg("failed to write to server")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		close(c.done)
		close(c.events)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Msg("unexpected websocket close")
			}
			return
		}

		var event protocol.Event
		if err := json.Unmarshal(data, &event); err != nil {
			log.Warn().Err(err).Msg("dropping undecodable frame")
			continue
		}
		c.events <- event
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}
}
