// Package server is the reference room server: it implements the wire
// contract the session client speaks, with the room, turn and clock handling
// of the original game service. It knows nothing about tile legality or
// scoring; actions simply reset the actor's clock and rotate the turn.
package server

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/K41-max/mahjong/internal/protocol"
)

const roomCodeLength = 6

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Config holds room rules and websocket tuning for the server.
type Config struct {
	Rules           Rules
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns the default server configuration: four seats, a 25
// second allowance (20 base + 5), and the low-clock top-up of the original
// rules.
func DefaultConfig() Config {
	return Config{
		Rules: Rules{
			Size:             4,
			InitialAllowance: 25,
			TopUpThreshold:   20,
			TopUp:            5,
		},
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      64,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// Server accepts websocket connections and routes their events to rooms.
// A single mutex serializes all room mutation; the per-room turn timer takes
// the same lock, so every state transition is atomic with respect to the
// others.
type Server struct {
	config   Config
	clock    clockwork.Clock
	upgrader websocket.Upgrader

	mu      sync.Mutex
	rooms   map[string]*Room
	conns   map[string]*conn
	members map[string]string // sid -> room code
}

// New returns a server using the given clock for turn timers.
func New(config Config, clock clockwork.Clock) *Server {
	return &Server{
		config: config,
		clock:  clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		rooms:   make(map[string]*Room),
		conns:   make(map[string]*conn),
		members: make(map[string]string),
	}
}

// Handler returns the HTTP surface: the websocket endpoint and a health
// check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// HandleWS upgrades the connection and greets the client with its connection
// id.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	c := &conn{
		sid:    uuid.New().String(),
		server: s,
		ws:     ws,
		send:   make(chan []byte, s.config.SendBuffer),
	}

	s.mu.Lock()
	s.conns[c.sid] = c
	s.mu.Unlock()

	go c.writePump()
	go c.readPump()

	s.mu.Lock()
	s.sendToLocked(c, protocol.EventGameState, protocol.GameStatePayload{Message: "Connected", SID: c.sid})
	s.mu.Unlock()
	log.Info().Str("sid", c.sid).Msg("client connected")
}

func (s *Server) handleClientEvent(c *conn, event protocol.Event) {
	payload, err := protocol.ParsePayload(event)
	if err != nil {
		log.Warn().Err(err).Str("sid", c.sid).Str("event_type", string(event.Type)).Msg("dropping malformed event")
		return
	}

	switch event.Type {
	case protocol.EventCreateRoom:
		s.createRoom(c, payload.(protocol.CreateRoomPayload))
	case protocol.EventJoinRoom:
		s.joinRoom(c, payload.(protocol.JoinRoomPayload))
	case protocol.EventJoinRandom:
		s.joinRandom(c, payload.(protocol.JoinRandomPayload))
	case protocol.EventAction:
		s.action(c, payload.(protocol.ActionPayload))
	default:
		log.Debug().Str("sid", c.sid).Str("event_type", string(event.Type)).Msg("ignoring unknown event")
	}
}

func (s *Server) createRoom(c *conn, p protocol.CreateRoomPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.TrimSpace(p.PlayerName)
	if name == "" {
		s.errorToLocked(c, "Player name is required")
		return
	}

	room := newRoom(s.newRoomCode(), s.config.Rules)
	s.rooms[room.code] = room
	s.seatLocked(room, c, name, true)
}

func (s *Server) joinRoom(c *conn, p protocol.JoinRoomPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.TrimSpace(p.PlayerName)
	code := strings.ToUpper(strings.TrimSpace(p.RoomCode))
	if name == "" || code == "" {
		s.errorToLocked(c, "Player name and room code are required")
		return
	}

	room, ok := s.rooms[code]
	if !ok {
		s.errorToLocked(c, "Invalid room code")
		return
	}
	if room.full() {
		s.errorToLocked(c, "Room is full")
		return
	}
	s.seatLocked(room, c, name, false)
}

func (s *Server) joinRandom(c *conn, p protocol.JoinRandomPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.TrimSpace(p.PlayerName)
	if name == "" {
		s.errorToLocked(c, "Player name is required")
		return
	}

	for _, room := range s.rooms {
		if !room.full() && !room.started {
			s.seatLocked(room, c, name, false)
			return
		}
	}

	// No open seat anywhere: open a fresh room for this player.
	room := newRoom(s.newRoomCode(), s.config.Rules)
	s.rooms[room.code] = room
	s.seatLocked(room, c, name, true)
}

// seatLocked adds the player, announces the room and starts the game when the
// last seat fills. Creators additionally receive room_created.
func (s *Server) seatLocked(room *Room, c *conn, name string, creator bool) {
	room.addPlayer(c.sid, name)
	s.members[c.sid] = room.code

	if creator {
		s.dispatchLocked(room, []outbound{toPlayer(c.sid, protocol.EventRoomCreated, protocol.RoomPayload{RoomCode: room.code})})
	}
	s.dispatchLocked(room, []outbound{toRoom(protocol.EventRoomJoined, protocol.RoomPayload{RoomCode: room.code})})
	log.Info().Str("sid", c.sid).Str("room_code", room.code).Str("name", name).Msg("player seated")

	if room.full() {
		s.dispatchLocked(room, room.start())
		s.startTimerLocked(room)
	}
}

func (s *Server) action(c *conn, p protocol.ActionPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := strings.ToUpper(strings.TrimSpace(p.RoomCode))
	if code == "" || p.Action == "" {
		s.errorToLocked(c, "Room code and action are required")
		return
	}

	room, ok := s.rooms[code]
	if !ok || !room.started {
		s.errorToLocked(c, "Game not started or invalid room")
		return
	}
	if room.player(c.sid) == nil {
		s.errorToLocked(c, "Player not found in room")
		return
	}
	if cp := room.currentPlayer(); cp == nil || cp.SID != c.sid {
		s.errorToLocked(c, "Not your turn")
		return
	}
	if !p.Action.Valid() {
		s.errorToLocked(c, "Invalid action")
		return
	}

	s.dispatchLocked(room, room.handleAction(p.Action))
}

func (s *Server) disconnect(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(c)
}

func (s *Server) removeLocked(c *conn) {
	if _, ok := s.conns[c.sid]; !ok {
		return
	}
	delete(s.conns, c.sid)
	close(c.send)

	code, ok := s.members[c.sid]
	if !ok {
		return
	}
	delete(s.members, c.sid)

	room, ok := s.rooms[code]
	if !ok {
		return
	}
	outs, ended := room.removePlayer(c.sid)
	if ended {
		s.stopTimerLocked(room)
	}
	s.dispatchLocked(room, outs)
	if room.empty() {
		s.stopTimerLocked(room)
		delete(s.rooms, code)
		log.Info().Str("room_code", code).Msg("room removed")
	}
	log.Info().Str("sid", c.sid).Str("room_code", code).Msg("player left")
}

// startTimerLocked runs the room's turn timer: one elapsed second at a time,
// under the server lock, until the game stops.
func (s *Server) startTimerLocked(room *Room) {
	stop := make(chan struct{})
	room.timerStop = stop
	code := room.code

	go func() {
		ticker := s.clock.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				s.mu.Lock()
				room, ok := s.rooms[code]
				if !ok || !room.started {
					s.mu.Unlock()
					return
				}
				s.dispatchLocked(room, room.tick())
				s.mu.Unlock()
			}
		}
	}()
}

func (s *Server) stopTimerLocked(room *Room) {
	if room.timerStop != nil {
		close(room.timerStop)
		room.timerStop = nil
	}
}

// dispatchLocked delivers room output, marshalling each event once. A seat
// whose send buffer is full is disconnected rather than allowed to stall the
// room.
func (s *Server) dispatchLocked(room *Room, outs []outbound) {
	for _, out := range outs {
		data, err := json.Marshal(out.event)
		if err != nil {
			log.Error().Err(err).Str("event_type", string(out.event.Type)).Msg("failed to marshal event")
			continue
		}
		if out.sid != "" {
			if c, ok := s.conns[out.sid]; ok {
				s.push(c, data)
			}
			continue
		}
		// Snapshot the seats first: push may evict a slow client, which
		// mutates room.players.
		seats := make([]string, 0, len(room.players))
		for _, p := range room.players {
			seats = append(seats, p.SID)
		}
		for _, sid := range seats {
			if c, ok := s.conns[sid]; ok {
				s.push(c, data)
			}
		}
	}
}

func (s *Server) push(c *conn, data []byte) {
	if _, ok := s.conns[c.sid]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("sid", c.sid).Msg("send buffer full, closing connection")
		s.removeLocked(c)
		c.ws.Close()
	}
}

func (s *Server) sendToLocked(c *conn, t protocol.EventType, payload any) {
	event, err := protocol.NewEvent(t, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to build event")
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event")
		return
	}
	s.push(c, data)
}

func (s *Server) errorToLocked(c *conn, message string) {
	s.sendToLocked(c, protocol.EventError, protocol.MessagePayload{Message: message})
}

// newRoomCode generates an unused 6-character room code.
func (s *Server) newRoomCode() string {
	for {
		b := make([]byte, roomCodeLength)
		for i := range b {
			b[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
		}
		code := string(b)
		if _, taken := s.rooms[code]; !taken {
			return code
		}
	}
}
