package protocol

import (
	"encoding/json"
	"fmt"
)

// Event is the wire envelope for every frame exchanged over the websocket.
// One JSON-encoded Event per text message, in both directions.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EventType names a message in the room protocol.
type EventType string

// Client -> server events.
const (
	EventCreateRoom EventType = "create_room"
	EventJoinRoom   EventType = "join_room_event"
	EventJoinRandom EventType = "join_random"
	EventAction     EventType = "action"
)

// Server -> client events.
const (
	EventRoomCreated EventType = "room_created"
	EventRoomJoined  EventType = "room_joined"
	EventGameStarted EventType = "game_started"
	EventTurn        EventType = "turn"
	EventGameState   EventType = "game_state"
	EventPlayerLeft  EventType = "player_left"
	EventGameEnded   EventType = "game_ended"
	EventError       EventType = "error"
)

// CreateRoomPayload asks the server to open a new room.
type CreateRoomPayload struct {
	PlayerName string `json:"player_name"`
}

// JoinRoomPayload asks the server to seat the player in an existing room.
type JoinRoomPayload struct {
	PlayerName string `json:"player_name"`
	RoomCode   string `json:"room_code"`
}

// JoinRandomPayload asks the server to seat the player in any open room.
type JoinRandomPayload struct {
	PlayerName string `json:"player_name"`
}

// ActionPayload submits a turn action for the given room.
type ActionPayload struct {
	RoomCode string `json:"room_code"`
	Action   Action `json:"action"`
}

// RoomPayload carries the room code on room_created and room_joined.
type RoomPayload struct {
	RoomCode string `json:"room_code"`
}

// TurnPayload announces whose turn it is.
type TurnPayload struct {
	PlayerID string `json:"player_id"`
}

// PlayerState is one roster entry in a game_state snapshot.
type PlayerState struct {
	SID           string `json:"sid"`
	Name          string `json:"name"`
	RemainingTime int    `json:"remaining_time"`
}

// GameStatePayload is the authoritative roster snapshot. The connect
// greeting reuses the same event with Message and SID set and no players;
// CurrentPlayer and Started are informational and not required by clients.
type GameStatePayload struct {
	Players       []PlayerState `json:"players,omitempty"`
	CurrentPlayer string        `json:"current_player,omitempty"`
	Started       bool          `json:"started,omitempty"`
	Message       string        `json:"message,omitempty"`
	SID           string        `json:"sid,omitempty"`
}

// MessagePayload carries a user-facing message on game_ended and error.
type MessagePayload struct {
	Message string `json:"message"`
}

// NewEvent wraps a payload into a wire envelope.
func NewEvent(t EventType, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return Event{Type: t, Data: data}, nil
}

// ParsePayload decodes an event's data into the payload struct for its type.
// Unknown event types return (nil, nil) so callers can ignore them.
func ParsePayload(event Event) (any, error) {
	switch event.Type {
	case EventCreateRoom:
		return decode[CreateRoomPayload](event)
	case EventJoinRoom:
		return decode[JoinRoomPayload](event)
	case EventJoinRandom:
		return decode[JoinRandomPayload](event)
	case EventAction:
		return decode[ActionPayload](event)
	case EventRoomCreated, EventRoomJoined:
		return decode[RoomPayload](event)
	case EventTurn:
		return decode[TurnPayload](event)
	case EventGameState:
		return decode[GameStatePayload](event)
	case EventGameEnded, EventError:
		return decode[MessagePayload](event)
	case EventGameStarted, EventPlayerLeft:
		// No payload defined for these events.
		return struct{}{}, nil
	default:
		return nil, nil
	}
}

func decode[T any](event Event) (T, error) {
	var payload T
	if len(event.Data) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return payload, fmt.Errorf("failed to decode %s payload: %w", event.Type, err)
	}
	return payload, nil
}
