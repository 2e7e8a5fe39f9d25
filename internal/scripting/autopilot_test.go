package scripting_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/riposte/internal/game/dice"
	"github.com/cory-johannsen/riposte/internal/scripting"
)

func newAutopilot(t *testing.T, src string) (*scripting.Autopilot, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	a := scripting.NewAutopilot(dice.NewSeededSource(3), 0, zap.New(core))
	t.Cleanup(a.Close)
	if src != "" {
		require.NoError(t, a.LoadString(src))
	}
	return a, logs
}

func sampleTurn() scripting.TurnState {
	return scripting.TurnState{
		PlayerHP: 12, PlayerMaxHP: 30, PlayerAP: 2, PlayerMaxAP: 5,
		EnemyName: "Brute", EnemyHP: 20, EnemyMaxHP: 20,
		ComboStage: "C", ComboFill: 0.5, Wave: 1, WaveCount: 3,
		Abilities: []scripting.AbilityInfo{
			{Name: "Lunge", APCost: 2, Damage: 3, Usable: true},
			{Empty: true},
			{Name: "Mend", APCost: 3, Heal: 6},
		},
	}
}

func sampleWindow() scripting.WindowInfo {
	return scripting.WindowInfo{Key: "z", Duration: 1200 * time.Millisecond, Center: 0.6, SuccessHalf: 0.1, PerfectHalf: 0.05}
}

func TestAutopilot_NoScriptFallsBack(t *testing.T) {
	a, _ := newAutopilot(t, "")
	assert.Equal(t, scripting.Choice{Action: scripting.ChoiceAttack}, a.ChooseAction(sampleTurn()))
	at, press := a.ParryAt(sampleWindow())
	assert.True(t, press)
	assert.Equal(t, 0.6, at)
}

func TestAutopilot_ChooseAbilityBySlot(t *testing.T) {
	a, _ := newAutopilot(t, `
		function choose_action(s)
			for i, ab in ipairs(s.abilities) do
				if ab.usable then return "ability", i end
			end
			return "skip"
		end
	`)
	assert.Equal(t, scripting.Choice{Action: scripting.ChoiceAbility, Slot: 0}, a.ChooseAction(sampleTurn()))

	s := sampleTurn()
	s.Abilities[0].Usable = false
	assert.Equal(t, scripting.Choice{Action: scripting.ChoiceSkip}, a.ChooseAction(s))
}

func TestAutopilot_StateFieldsVisible(t *testing.T) {
	a, _ := newAutopilot(t, `
		function choose_action(s)
			assert(s.player_hp == 12)
			assert(s.player_max_ap == 5)
			assert(s.enemy_name == "Brute")
			assert(s.combo_stage == "C")
			assert(s.wave_count == 3)
			assert(#s.abilities == 3)
			assert(s.abilities[2].empty)
			assert(s.abilities[3].heal == 6)
			return "skip"
		end
	`)
	assert.Equal(t, scripting.ChoiceSkip, a.ChooseAction(sampleTurn()).Action)
}

func TestAutopilot_BadChoicesFallBackToAttack(t *testing.T) {
	for name, src := range map[string]string{
		"unknown name":    `function choose_action(s) return "dance" end`,
		"non-string":      `function choose_action(s) return 7 end`,
		"ability no slot": `function choose_action(s) return "ability" end`,
		"runtime error":   `function choose_action(s) error("boom") end`,
	} {
		t.Run(name, func(t *testing.T) {
			a, logs := newAutopilot(t, src)
			assert.Equal(t, scripting.ChoiceAttack, a.ChooseAction(sampleTurn()).Action)
			assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
		})
	}
}

func TestAutopilot_ParryAt(t *testing.T) {
	a, _ := newAutopilot(t, `
		function parry_at(w)
			assert(w.key == "z")
			assert(math.abs(w.duration - 1.2) < 1e-9)
			if w.perfect_half < 0.01 then return nil end
			return w.success_lo + 0.01
		end
	`)
	at, press := a.ParryAt(sampleWindow())
	assert.True(t, press)
	assert.InDelta(t, 0.51, at, 1e-9)

	narrow := sampleWindow()
	narrow.PerfectHalf = 0.001
	_, press = a.ParryAt(narrow)
	assert.False(t, press)
}

func TestAutopilot_RunawayHookIsStopped(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	a := scripting.NewAutopilot(dice.NewSeededSource(1), 1000, zap.New(core))
	defer a.Close()
	require.NoError(t, a.LoadString(`function choose_action(s) while true do end end`))

	assert.Equal(t, scripting.ChoiceAttack, a.ChooseAction(sampleTurn()).Action)
	assert.Equal(t, 1, logs.FilterMessage("scripting: Lua runtime error").Len())

	// the budget is re-armed for every call
	assert.Equal(t, scripting.ChoiceAttack, a.ChooseAction(sampleTurn()).Action)
	assert.Equal(t, 2, logs.FilterMessage("scripting: Lua runtime error").Len())
}

func TestAutopilot_LoadErrors(t *testing.T) {
	a, _ := newAutopilot(t, "")
	assert.Error(t, a.LoadString(`function (`))
	assert.Error(t, a.LoadFile(filepath.Join(t.TempDir(), "missing.lua")))
}

func TestAutopilot_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pilot.lua")
	require.NoError(t, os.WriteFile(path, []byte(`function choose_action(s) return "skip" end`), 0644))
	a, _ := newAutopilot(t, "")
	require.NoError(t, a.LoadFile(path))
	assert.Equal(t, scripting.ChoiceSkip, a.ChooseAction(sampleTurn()).Action)
}

func TestEngineLog_AllLevels(t *testing.T) {
	a, logs := newAutopilot(t, `
		function choose_action(s)
			engine.log.debug("d")
			engine.log.info("i")
			engine.log.warn("w")
			engine.log.error("e")
			return "attack"
		end
	`)
	a.ChooseAction(sampleTurn())

	levels := map[string]bool{}
	for _, e := range logs.All() {
		levels[e.Level.String()] = true
	}
	for _, l := range []string{"debug", "info", "warn", "error"} {
		assert.True(t, levels[l], "expected %s log", l)
	}
}

func TestProperty_EngineDiceIntnInRange(t *testing.T) {
	a, _ := newAutopilot(t, `
		function parry_at(w)
			local n = math.floor(w.duration)
			local v = engine.dice.intn(n)
			if v < 0 or v >= n then error("out of range") end
			local f = engine.dice.float()
			if f < 0 or f >= 1 then error("float out of range") end
			return v
		end
	`)
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 1000).Draw(t, "n")
		w := sampleWindow()
		w.Duration = time.Duration(n) * time.Second
		at, press := a.ParryAt(w)
		assert.True(t, press)
		assert.GreaterOrEqual(t, at, 0.0)
		assert.Less(t, at, float64(n))
	})
}
