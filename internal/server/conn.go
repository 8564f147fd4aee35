package server

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/K41-max/mahjong/internal/protocol"
)

// conn is one client connection. Outbound frames go through the buffered
// send channel; a client that cannot keep up is disconnected.
type conn struct {
	sid    string
	server *Server
	ws     *websocket.Conn
	send   chan []byte
}

func (c *conn) writePump() {
	ticker := time.NewTicker(c.server.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("sid", c.sid).Msg("failed to write to client")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *conn) readPump() {
	defer func() {
		c.server.disconnect(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.server.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Str("sid", c.sid).Msg("unexpected websocket close")
			}
			return
		}

		var event protocol.Event
		if err := json.Unmarshal(data, &event); err != nil {
			log.Warn().Err(err).Str("sid", c.sid).Msg("dropping undecodable frame")
			continue
		}
		c.server.handleClientEvent(c, event)
		c.ws.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout))
	}
}
