package protocol

// Action is a turn action a player may declare. The vocabulary is closed;
// no other action strings are valid on the wire.
type Action string

const (
	ActionRon   Action = "ron"   // win on another player's discard
	ActionTsumo Action = "tsumo" // win on self-draw
	ActionReach Action = "reach" // declare ready
	ActionNaki  Action = "naki"  // call
)

// Actions returns the full action set in display order.
func Actions() []Action {
	return []Action{ActionRon, ActionTsumo, ActionReach, ActionNaki}
}

// Valid reports whether a is part of the closed action vocabulary.
func (a Action) Valid() bool {
	switch a {
	case ActionRon, ActionTsumo, ActionReach, ActionNaki:
		return true
	}
	return false
}

// Label returns the Japanese display label for the action.
func (a Action) Label() string {
	switch a {
	case ActionRon:
		return "ロン"
	case ActionTsumo:
		return "ツモ"
	case ActionReach:
		return "リーチ"
	case ActionNaki:
		return "鳴き"
	}
	return string(a)
}
