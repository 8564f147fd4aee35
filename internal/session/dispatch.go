package session

import "github.com/K41-max/mahjong/internal/protocol"

// HandleEvent applies one inbound server event to the session. The dispatch
// table is exhaustive over the inbound protocol; unknown event types are
// logged and ignored. Handlers tolerate duplicate delivery and event-ordering
// races: a malformed or unresolvable event never takes the session down.
func (s *Session) HandleEvent(event protocol.Event) {
	payload, err := protocol.ParsePayload(event)
	if err != nil {
		s.log.Warn().Err(err).Str("event_type", string(event.Type)).Msg("dropping malformed event")
		return
	}

	switch event.Type {
	case protocol.EventRoomCreated, protocol.EventRoomJoined:
		// The server does not distinguish creator from joiner downstream;
		// both events establish the room identically.
		s.roomEstablished(payload.(protocol.RoomPayload).RoomCode)

	case protocol.EventGameStarted:
		s.gameStarted()

	case protocol.EventTurn:
		s.turnAssigned(payload.(protocol.TurnPayload).PlayerID)

	case protocol.EventGameState:
		s.rosterSnapshot(payload.(protocol.GameStatePayload))

	case protocol.EventPlayerLeft:
		s.playerDeparted()

	case protocol.EventGameEnded:
		s.gameEnded(payload.(protocol.MessagePayload).Message)

	case protocol.EventError:
		// Advisory only: surfaced to the user, no state change.
		s.display.ShowMessage(payload.(protocol.MessagePayload).Message)

	default:
		s.log.Debug().Str("event_type", string(event.Type)).Msg("ignoring unknown event")
	}
}

// roomEstablished moves Lobby -> Waiting. Re-delivery of the same room code
// is a no-op, so duplicate room_created/room_joined events are harmless.
func (s *Session) roomEstablished(roomCode string) {
	if roomCode == "" {
		s.log.Warn().Msg("room event without room code")
		return
	}
	if s.phase != PhaseLobby && s.roomCode == roomCode {
		return
	}
	s.roomCode = roomCode
	if s.phase == PhaseLobby {
		s.phase = PhaseWaiting
	}
	s.display.ShowGame(roomCode)
	s.display.SetStatus(StatusWaitingForPlayers)
	s.log.Info().Str("room_code", roomCode).Msg("room established")
}

func (s *Session) gameStarted() {
	if s.phase == PhaseWaiting {
		s.phase = PhaseActive
	}
	s.display.SetStatus(StatusGameStarted)
	s.display.RenderRoster(s.Roster())
	s.log.Info().Str("room_code", s.roomCode).Msg("game started")
}

// turnAssigned accepts any participant id, known or not: a turn notice may
// legitimately arrive before the roster snapshot that introduces the player.
func (s *Session) turnAssigned(playerID string) {
	s.activeID = playerID
	s.refreshAffordances()
	s.log.Debug().Str("player_id", playerID).Bool("local_turn", s.IsLocalTurn()).Msg("turn assigned")
}

// rosterSnapshot replaces the roster with the server's authoritative list and
// forwards the local player's remaining time to the countdown. The connect
// greeting arrives as a game_state without players; it only tells us our own
// connection id.
func (s *Session) rosterSnapshot(snapshot protocol.GameStatePayload) {
	if snapshot.SID != "" && s.localID == "" {
		s.localID = snapshot.SID
		s.log.Debug().Str("sid", snapshot.SID).Msg("local connection id assigned")
	}
	if len(snapshot.Players) == 0 {
		return
	}

	roster := make([]Participant, 0, len(snapshot.Players))
	for _, p := range snapshot.Players {
		roster = append(roster, Participant{ID: p.SID, Name: p.Name, RemainingTime: p.RemainingTime})
		if p.SID == s.localID && s.localID != "" {
			s.countdown.SetAuthoritative(p.RemainingTime)
		}
	}
	s.roster = roster
	s.display.RenderRoster(roster)
}

// playerDeparted carries no roster payload; re-render the best-known state
// and wait for the next authoritative snapshot.
func (s *Session) playerDeparted() {
	s.display.RenderRoster(s.Roster())
	s.log.Debug().Msg("player left, awaiting next snapshot")
}

// gameEnded presents the result and performs the full reset back to Lobby.
func (s *Session) gameEnded(message string) {
	if message != "" {
		s.display.ShowMessage(message)
	}
	s.log.Info().Str("room_code", s.roomCode).Str("message", message).Msg("game ended")
	s.Reset()
}
