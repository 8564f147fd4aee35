package server

import (
	"github.com/rs/zerolog/log"

	"github.com/K41-max/mahjong/internal/protocol"
)

// Rules are the per-room timing and seating parameters.
type Rules struct {
	// Size is the number of seats; the game starts when all are taken.
	Size int
	// InitialAllowance is each player's starting clock in seconds.
	InitialAllowance int
	// TopUpThreshold and TopUp implement the low-clock grace rule: when a
	// decrement leaves the clock below the threshold it is topped back up.
	// A zero threshold disables the rule.
	TopUpThreshold int
	TopUp          int
}

// Player is one seated participant. The SID is connection scoped.
type Player struct {
	SID           string
	Name          string
	RemainingTime int
}

// outbound is an event the room wants delivered: to one connection when sid
// is set, to every seat in the room otherwise.
type outbound struct {
	sid   string
	event protocol.Event
}

func toRoom(t protocol.EventType, payload any) outbound {
	event, err := protocol.NewEvent(t, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to build event")
	}
	return outbound{event: event}
}

func toPlayer(sid string, t protocol.EventType, payload any) outbound {
	out := toRoom(t, payload)
	out.sid = sid
	return out
}

// Room holds the authoritative state for one table. Rooms carry no locking
// of their own; the server serializes all access.
type Room struct {
	code      string
	rules     Rules
	players   []*Player
	started   bool
	turnIdx   int
	timerStop chan struct{}
}

func newRoom(code string, rules Rules) *Room {
	return &Room{code: code, rules: rules}
}

func (r *Room) full() bool  { return len(r.players) >= r.rules.Size }
func (r *Room) empty() bool { return len(r.players) == 0 }

func (r *Room) player(sid string) *Player {
	for _, p := range r.players {
		if p.SID == sid {
			return p
		}
	}
	return nil
}

func (r *Room) currentPlayer() *Player {
	if !r.started || len(r.players) == 0 {
		return nil
	}
	return r.players[r.turnIdx%len(r.players)]
}

func (r *Room) addPlayer(sid, name string) *Player {
	p := &Player{SID: sid, Name: name, RemainingTime: r.rules.InitialAllowance}
	r.players = append(r.players, p)
	return p
}

// start deals the first turn: every clock resets to the initial allowance and
// the first seat becomes the turn holder.
func (r *Room) start() []outbound {
	r.started = true
	r.turnIdx = 0
	for _, p := range r.players {
		p.RemainingTime = r.rules.InitialAllowance
	}
	return []outbound{
		toRoom(protocol.EventGameStarted, struct{}{}),
		toRoom(protocol.EventTurn, protocol.TurnPayload{PlayerID: r.players[0].SID}),
	}
}

// handleAction processes a turn action from sid: the actor's clock resets,
// the new snapshot is broadcast and the turn passes to the next seat.
// Validation (membership, turn ownership, vocabulary) is the caller's job.
func (r *Room) handleAction(action protocol.Action) []outbound {
	actor := r.currentPlayer()
	log.Info().Str("room_code", r.code).Str("player", actor.Name).Str("action", string(action)).Msg("action processed")
	actor.RemainingTime = r.rules.InitialAllowance

	outs := []outbound{toRoom(protocol.EventGameState, r.snapshot())}
	return append(outs, r.advanceTurn()...)
}

// tick applies one elapsed second to the turn holder's clock and broadcasts
// the updated snapshot. A clock at zero forces an automatic tsumo and passes
// the turn.
func (r *Room) tick() []outbound {
	p := r.currentPlayer()
	if p == nil {
		return nil
	}
	p.RemainingTime--
	if r.rules.TopUpThreshold > 0 && p.RemainingTime < r.rules.TopUpThreshold {
		p.RemainingTime += r.rules.TopUp
	}
	if p.RemainingTime <= 0 {
		p.RemainingTime = 0
		log.Info().Str("room_code", r.code).Str("player", p.Name).Msg("clock expired, auto tsumo")
		outs := []outbound{toRoom(protocol.EventGameState, r.snapshot())}
		p.RemainingTime = r.rules.InitialAllowance
		outs = append(outs, toRoom(protocol.EventGameState, r.snapshot()))
		return append(outs, r.advanceTurn()...)
	}
	return []outbound{toRoom(protocol.EventGameState, r.snapshot())}
}

// removePlayer unseats sid. A started game with fewer than two players left
// cannot continue and ends.
func (r *Room) removePlayer(sid string) (outs []outbound, ended bool) {
	kept := r.players[:0]
	for _, p := range r.players {
		if p.SID != sid {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(r.players) {
		return nil, false
	}
	r.players = kept
	if len(r.players) > 0 {
		r.turnIdx %= len(r.players)
	} else {
		r.turnIdx = 0
	}

	outs = []outbound{toRoom(protocol.EventPlayerLeft, struct{}{})}
	if r.started && len(r.players) < 2 {
		r.started = false
		outs = append(outs, toRoom(protocol.EventGameEnded, protocol.MessagePayload{Message: "Not enough players"}))
		return outs, true
	}
	return outs, false
}

func (r *Room) advanceTurn() []outbound {
	r.turnIdx = (r.turnIdx + 1) % len(r.players)
	return []outbound{toRoom(protocol.EventTurn, protocol.TurnPayload{PlayerID: r.currentPlayer().SID})}
}

func (r *Room) snapshot() protocol.GameStatePayload {
	players := make([]protocol.PlayerState, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, protocol.PlayerState{SID: p.SID, Name: p.Name, RemainingTime: p.RemainingTime})
	}
	snap := protocol.GameStatePayload{Players: players, Started: r.started}
	if cp := r.currentPlayer(); cp != nil {
		snap.CurrentPlayer = cp.SID
	}
	return snap
}
