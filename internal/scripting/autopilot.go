package scripting

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/riposte/internal/game/dice"
)

// Autopilot hook names.
const (
	HookChooseAction = "choose_action"
	HookParryAt      = "parry_at"
)

// Choice names returned by choose_action.
const (
	ChoiceAttack  = "attack"
	ChoiceAbility = "ability"
	ChoiceSkip    = "skip"
)

// AbilityInfo is a snapshot of one ability slot.
type AbilityInfo struct {
	Empty  bool
	Name   string
	APCost int
	Damage int
	Heal   int
	// Usable reports whether the slot is filled and affordable.
	Usable bool
}

// TurnState is the snapshot passed to choose_action.
type TurnState struct {
	PlayerHP    int
	PlayerMaxHP int
	PlayerAP    int
	PlayerMaxAP int
	EnemyName   string
	EnemyHP     int
	EnemyMaxHP  int
	ComboStage  string
	ComboFill   float64
	Wave        int
	WaveCount   int
	Abilities   []AbilityInfo
}

// WindowInfo is the snapshot passed to parry_at.
type WindowInfo struct {
	Key         string
	Duration    time.Duration
	Center      float64
	SuccessHalf float64
	PerfectHalf float64
}

// Choice is the autopilot's decision for one player turn.
type Choice struct {
	// Action is one of ChoiceAttack, ChoiceAbility, ChoiceSkip.
	Action string
	// Slot is the zero-based ability slot for ChoiceAbility.
	Slot int
}

// Autopilot plays the player side of a battle from a Lua script.
//
// The script may define:
//
//	choose_action(state) -> "attack" | "skip" | "ability", slot
//	parry_at(window)     -> track position to press at, or nil to never press
//
// Slots are 1-based on the Lua side. Missing hooks fall back to attacking and
// pressing at the window center. Lua runtime errors are logged at Warn level
// and never propagated.
//
// Autopilot is not safe for concurrent use.
type Autopilot struct {
	L      *lua.LState
	limit  int
	src    dice.Source
	logger *zap.Logger
}

// NewAutopilot creates an Autopilot with an empty script.
//
// Precondition: src must be non-nil; a nil logger discards output.
// Postcondition: Returns an Autopilot whose hooks use the fallback behavior
// until a script is loaded. The caller must call Close.
func NewAutopilot(src dice.Source, instLimit int, logger *zap.Logger) *Autopilot {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Autopilot{
		L:      NewSandboxedState(instLimit),
		limit:  instLimit,
		src:    src,
		logger: logger,
	}
	a.RegisterModules(a.L)
	return a
}

// LoadFile executes the script at path.
//
// Postcondition: Returns a non-nil error if the script fails to load or run.
func (a *Autopilot) LoadFile(path string) error {
	release := setBudget(a.L, a.limit)
	defer release()
	if err := a.L.DoFile(path); err != nil {
		return fmt.Errorf("scripting: loading %q: %w", path, err)
	}
	return nil
}

// LoadString executes src as a script chunk.
//
// Postcondition: Returns a non-nil error if the chunk fails to load or run.
func (a *Autopilot) LoadString(src string) error {
	release := setBudget(a.L, a.limit)
	defer release()
	if err := a.L.DoString(src); err != nil {
		return fmt.Errorf("scripting: loading chunk: %w", err)
	}
	return nil
}

// Close releases the Lua state.
func (a *Autopilot) Close() {
	a.L.Close()
}

// ChooseAction asks the script for the next player turn choice.
//
// Postcondition: Returns a Choice whose Action is one of the Choice* names.
// Falls back to ChoiceAttack when the hook is missing, errors, or returns an
// unrecognized value.
func (a *Autopilot) ChooseAction(s TurnState) Choice {
	fallback := Choice{Action: ChoiceAttack}
	rets, ok := a.call(HookChooseAction, 2, a.turnTable(s))
	if !ok {
		return fallback
	}

	name, isStr := rets[0].(lua.LString)
	if !isStr {
		a.logger.Warn("scripting: choose_action returned a non-string", zap.String("type", rets[0].Type().String()))
		return fallback
	}
	switch string(name) {
	case ChoiceAttack, ChoiceSkip:
		return Choice{Action: string(name)}
	case ChoiceAbility:
		slot, isNum := rets[1].(lua.LNumber)
		if !isNum {
			a.logger.Warn("scripting: choose_action ability without a slot")
			return fallback
		}
		return Choice{Action: ChoiceAbility, Slot: int(slot) - 1}
	default:
		a.logger.Warn("scripting: unknown choice", zap.String("choice", string(name)))
		return fallback
	}
}

// ParryAt asks the script where on the track to press the parry key.
//
// Postcondition: Returns (position, true) to press once progress reaches
// position, or (0, false) to let the window time out. Falls back to the
// window center when the hook is missing or errors.
func (a *Autopilot) ParryAt(w WindowInfo) (float64, bool) {
	rets, ok := a.call(HookParryAt, 1, a.windowTable(w))
	if !ok {
		return w.Center, true
	}
	switch v := rets[0].(type) {
	case lua.LNumber:
		return float64(v), true
	case *lua.LNilType, lua.LBool:
		return 0, false
	default:
		a.logger.Warn("scripting: parry_at returned an unexpected value", zap.String("type", v.Type().String()))
		return w.Center, true
	}
}

// call invokes hook with a fresh instruction budget and returns nret values.
// ok is false when the hook is undefined or raised an error.
func (a *Autopilot) call(hook string, nret int, args ...lua.LValue) ([]lua.LValue, bool) {
	fn := a.L.GetGlobal(hook)
	if fn == lua.LNil {
		return nil, false
	}

	release := setBudget(a.L, a.limit)
	defer release()

	top := a.L.GetTop()
	if err := a.L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...); err != nil {
		a.L.SetTop(top)
		a.logger.Warn("scripting: Lua runtime error", zap.String("hook", hook), zap.Error(err))
		return nil, false
	}
	rets := make([]lua.LValue, nret)
	for i := range nret {
		rets[i] = a.L.Get(top + 1 + i)
	}
	a.L.SetTop(top)
	return rets, true
}

func (a *Autopilot) turnTable(s TurnState) *lua.LTable {
	L := a.L
	t := L.NewTable()
	L.SetField(t, "player_hp", lua.LNumber(s.PlayerHP))
	L.SetField(t, "player_max_hp", lua.LNumber(s.PlayerMaxHP))
	L.SetField(t, "player_ap", lua.LNumber(s.PlayerAP))
	L.SetField(t, "player_max_ap", lua.LNumber(s.PlayerMaxAP))
	L.SetField(t, "enemy_name", lua.LString(s.EnemyName))
	L.SetField(t, "enemy_hp", lua.LNumber(s.EnemyHP))
	L.SetField(t, "enemy_max_hp", lua.LNumber(s.EnemyMaxHP))
	L.SetField(t, "combo_stage", lua.LString(s.ComboStage))
	L.SetField(t, "combo_fill", lua.LNumber(s.ComboFill))
	L.SetField(t, "wave", lua.LNumber(s.Wave))
	L.SetField(t, "wave_count", lua.LNumber(s.WaveCount))

	abilities := L.NewTable()
	for _, ab := range s.Abilities {
		at := L.NewTable()
		L.SetField(at, "empty", lua.LBool(ab.Empty))
		L.SetField(at, "name", lua.LString(ab.Name))
		L.SetField(at, "ap_cost", lua.LNumber(ab.APCost))
		L.SetField(at, "damage", lua.LNumber(ab.Damage))
		L.SetField(at, "heal", lua.LNumber(ab.Heal))
		L.SetField(at, "usable", lua.LBool(ab.Usable))
		abilities.Append(at)
	}
	L.SetField(t, "abilities", abilities)
	return t
}

func (a *Autopilot) windowTable(w WindowInfo) *lua.LTable {
	L := a.L
	t := L.NewTable()
	L.SetField(t, "key", lua.LString(w.Key))
	L.SetField(t, "duration", lua.LNumber(w.Duration.Seconds()))
	L.SetField(t, "center", lua.LNumber(w.Center))
	L.SetField(t, "success_half", lua.LNumber(w.SuccessHalf))
	L.SetField(t, "perfect_half", lua.LNumber(w.PerfectHalf))
	L.SetField(t, "success_lo", lua.LNumber(w.Center-w.SuccessHalf))
	L.SetField(t, "success_hi", lua.LNumber(w.Center+w.SuccessHalf))
	return t
}
