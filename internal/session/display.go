package session

import "github.com/K41-max/mahjong/internal/protocol"

// Sender emits events toward the server, fire-and-forget. There is no
// request/response correlation; confirmation arrives as inbound events.
type Sender interface {
	Send(event protocol.Event) error
}

// Display is the information surface the session drives. Exactly one of the
// lobby and game regions is visible at a time, determined by the phase.
// Implementations are called from the single goroutine that owns the session.
type Display interface {
	// ShowLobby makes the lobby region visible and hides the game region.
	ShowLobby()
	// ShowGame makes the game region visible for the given room code.
	ShowGame(roomCode string)
	// SetStatus updates the one-line status text.
	SetStatus(status string)
	// RenderRoster replaces the displayed participant list.
	RenderRoster(roster []Participant)
	// RenderActions replaces the exposed action affordances. An empty or nil
	// list means the local player may not act right now.
	RenderActions(actions []protocol.Action)
	// SetCountdown updates the local countdown text. CountdownUnknown is
	// shown when no authoritative value is known.
	SetCountdown(text string)
	// ShowMessage surfaces a user-facing message (validation failures,
	// server errors, game results).
	ShowMessage(message string)
}

// Status line texts, mirroring the phases and turn ownership.
const (
	StatusIdle              = "waiting to start..."
	StatusWaitingForPlayers = "waiting for other players..."
	StatusGameStarted       = "game started!"
	StatusYourTurn          = "your turn"
	StatusOpponentTurn      = "opponent's turn..."
)
