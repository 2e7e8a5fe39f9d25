package battle

import (
	"errors"
	"fmt"
)

// Phase is the controller's position in the turn cycle.
type Phase int

const (
	PhaseNone Phase = iota
	PhasePlayerTurn
	PhaseEnemyTelegraph
	PhaseEnemyResolve
	PhaseVictory
	PhaseDefeat
)

// String returns the phase name used in logs.
func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhasePlayerTurn:
		return "player_turn"
	case PhaseEnemyTelegraph:
		return "enemy_telegraph"
	case PhaseEnemyResolve:
		return "enemy_resolve"
	case PhaseVictory:
		return "victory"
	case PhaseDefeat:
		return "defeat"
	default:
		return "unknown"
	}
}

// Terminal reports whether p ends the encounter.
func (p Phase) Terminal() bool {
	return p == PhaseVictory || p == PhaseDefeat
}

// ActionKind identifies a player turn choice.
type ActionKind int

const (
	ActionAttack ActionKind = iota
	ActionAbility
	ActionSkip
)

// PlayerAction is one player turn choice.
type PlayerAction struct {
	Kind ActionKind
	// Slot is the ability slot for ActionAbility.
	Slot int
}

// Attack returns the base attack action.
func Attack() PlayerAction { return PlayerAction{Kind: ActionAttack} }

// UseAbility returns the action using the ability in slot.
func UseAbility(slot int) PlayerAction { return PlayerAction{Kind: ActionAbility, Slot: slot} }

// Skip returns the action passing the turn.
func Skip() PlayerAction { return PlayerAction{Kind: ActionSkip} }

// String returns a short description used in logs.
func (a PlayerAction) String() string {
	switch a.Kind {
	case ActionAttack:
		return "attack"
	case ActionAbility:
		return fmt.Sprintf("ability[%d]", a.Slot)
	case ActionSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Rejection reasons returned by Controller.Act. The controller state is
// unchanged when any of them is returned.
var (
	ErrNotPlayerTurn  = errors.New("not awaiting a player choice")
	ErrNoSuchAbility  = errors.New("ability slot is out of range")
	ErrEmptySlot      = errors.New("ability slot is empty")
	ErrInsufficientAP = errors.New("not enough AP")
	ErrUnknownAction  = errors.New("unknown action")
)
