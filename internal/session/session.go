package session

import (
	"errors"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/K41-max/mahjong/internal/protocol"
)

// Phase is the coarse session stage.
type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhaseWaiting Phase = "waiting"
	PhaseActive  Phase = "active"
	PhaseEnded   Phase = "ended"
)

// Validation and gating errors surfaced at the client boundary. None of them
// are fatal; the caller may simply retry.
var (
	ErrNameRequired     = errors.New("player name is required")
	ErrRoomCodeRequired = errors.New("room code is required")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrUnknownAction    = errors.New("unknown action")
)

// Participant is one player as known to this client. IDs are connection
// scoped and not stable across reconnects.
type Participant struct {
	ID            string
	Name          string
	RemainingTime int
}

// Session tracks this client's belief about the current game: phase, room,
// roster, turn holder and the local countdown. All mutation happens on the
// single goroutine that drives HandleEvent and the user operations; the
// struct is not safe for concurrent use.
type Session struct {
	log       zerolog.Logger
	sender    Sender
	display   Display
	countdown *Countdown

	localID  string
	phase    Phase
	roomCode string
	roster   []Participant
	activeID string
}

// New returns a session in the Lobby phase. The clock is used only by the
// countdown presenter.
func New(sender Sender, display Display, clock clockwork.Clock, logger zerolog.Logger) *Session {
	return &Session{
		log:       logger,
		sender:    sender,
		display:   display,
		countdown: NewCountdown(clock, display),
		phase:     PhaseLobby,
	}
}

// Countdown exposes the countdown presenter so the run loop can select on
// its tick channel.
func (s *Session) Countdown() *Countdown { return s.countdown }

func (s *Session) Phase() Phase              { return s.phase }
func (s *Session) RoomCode() string          { return s.roomCode }
func (s *Session) LocalID() string           { return s.localID }
func (s *Session) ActiveParticipant() string { return s.activeID }

// Roster returns a copy of the current participant list.
func (s *Session) Roster() []Participant {
	out := make([]Participant, len(s.roster))
	copy(out, s.roster)
	return out
}

// IsLocalTurn reports whether the local player currently holds the turn.
func (s *Session) IsLocalTurn() bool {
	return s.activeID != "" && s.activeID == s.localID
}

// CreateRoom asks the server to open a new room. The phase does not change
// until the server confirms with a room_created event.
func (s *Session) CreateRoom(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		s.display.ShowMessage(ErrNameRequired.Error())
		return ErrNameRequired
	}
	return s.emit(protocol.EventCreateRoom, protocol.CreateRoomPayload{PlayerName: name})
}

// JoinRoom asks the server to seat the player in an existing room. The room
// code is normalized to upper case before it goes on the wire.
func (s *Session) JoinRoom(name, roomCode string) error {
	name = strings.TrimSpace(name)
	roomCode = strings.ToUpper(strings.TrimSpace(roomCode))
	if name == "" {
		s.display.ShowMessage(ErrNameRequired.Error())
		return ErrNameRequired
	}
	if roomCode == "" {
		s.display.ShowMessage(ErrRoomCodeRequired.Error())
		return ErrRoomCodeRequired
	}
	return s.emit(protocol.EventJoinRoom, protocol.JoinRoomPayload{PlayerName: name, RoomCode: roomCode})
}

// JoinRandom asks the server to seat the player in any open room.
func (s *Session) JoinRandom(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		s.display.ShowMessage(ErrNameRequired.Error())
		return ErrNameRequired
	}
	return s.emit(protocol.EventJoinRandom, protocol.JoinRandomPayload{PlayerName: name})
}

// SubmitAction declares a turn action. It is a no-op unless the local player
// holds the turn and the action is part of the closed vocabulary.
func (s *Session) SubmitAction(action protocol.Action) error {
	if !s.IsLocalTurn() {
		return ErrNotYourTurn
	}
	if !action.Valid() {
		return ErrUnknownAction
	}
	return s.emit(protocol.EventAction, protocol.ActionPayload{RoomCode: s.roomCode, Action: action})
}

// Reset returns the session to the Lobby phase: room code, roster and turn
// holder are cleared and the countdown ticker is released.
func (s *Session) Reset() {
	s.phase = PhaseLobby
	s.roomCode = ""
	s.roster = nil
	s.activeID = ""
	s.countdown.Reset()
	s.display.ShowLobby()
	s.display.SetStatus(StatusIdle)
	s.display.RenderRoster(nil)
	s.display.RenderActions(nil)
}

func (s *Session) emit(t protocol.EventType, payload any) error {
	event, err := protocol.NewEvent(t, payload)
	if err != nil {
		return err
	}
	if err := s.sender.Send(event); err != nil {
		s.log.Warn().Err(err).Str("event_type", string(t)).Msg("failed to send event")
		return err
	}
	return nil
}

// refreshAffordances recomputes which actions the display exposes from the
// current turn ownership.
func (s *Session) refreshAffordances() {
	if s.IsLocalTurn() {
		s.display.SetStatus(StatusYourTurn)
		s.display.RenderActions(protocol.Actions())
		return
	}
	s.display.SetStatus(StatusOpponentTurn)
	s.display.RenderActions(nil)
}
