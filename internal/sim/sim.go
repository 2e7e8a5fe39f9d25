// Package sim runs encounters headlessly: a fixed-step frame loop drives the
// battle controller while a scripted autopilot plays the player side.
package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/riposte/internal/config"
	"github.com/cory-johannsen/riposte/internal/game/battle"
	"github.com/cory-johannsen/riposte/internal/game/character"
	"github.com/cory-johannsen/riposte/internal/game/combo"
	"github.com/cory-johannsen/riposte/internal/game/dice"
	"github.com/cory-johannsen/riposte/internal/game/input"
	"github.com/cory-johannsen/riposte/internal/game/qte"
	"github.com/cory-johannsen/riposte/internal/scripting"
)

// ErrTimeLimit is returned when an encounter outlasts simulation.max_duration.
var ErrTimeLimit = errors.New("simulation time limit reached")

// Options configures one simulated encounter.
type Options struct {
	Config config.Config
	Player *character.PlayerTemplate
	// Waves may contain nil entries for unpopulated slots.
	Waves []*character.EnemyTemplate
	// Seed overrides Config.Battle.Seed when non-zero. When both are zero a
	// fresh seed is drawn.
	Seed int64
	// Autopilot plays the player. Nil attacks every turn and parries at the
	// window center.
	Autopilot *scripting.Autopilot
	// Clock paces frames in wall-clock time. Nil runs frames back to back.
	Clock  *Clock
	Logger *zap.Logger
}

// Summary reports the outcome of a simulated encounter.
type Summary struct {
	BattleID     string
	Seed         int64
	Outcome      battle.Phase
	Elapsed      time.Duration
	Frames       int64
	Turns        int
	Waves        int
	WavesCleared int
	PlayerHP     int
	PlayerMaxHP  int
	PeakStage    combo.Stage
	Parries      map[qte.Quality]int
	// Draws is the number of values taken from the encounter's random stream.
	Draws int
}

// ResolveSeed returns the first non-zero of seeds, or a fresh random seed.
//
// Postcondition: Returns a non-zero seed or a non-nil error.
func ResolveSeed(seeds ...int64) (int64, error) {
	for _, s := range seeds {
		if s != 0 {
			return s, nil
		}
	}
	return dice.NewSeed()
}

// Run plays one encounter to Victory or Defeat.
//
// Precondition: opts.Player must be non-nil; opts.Config must be valid.
// Postcondition: Returns the summary so far together with a non-nil error when
// ctx is cancelled or the time limit is reached.
func Run(ctx context.Context, opts Options) (Summary, error) {
	if opts.Player == nil {
		return Summary{}, errors.New("sim: player template is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config

	seed, err := ResolveSeed(opts.Seed, cfg.Battle.Seed)
	if err != nil {
		return Summary{}, fmt.Errorf("sim: %w", err)
	}
	src := dice.NewLoggedSource(dice.NewSeededSource(seed), logger)
	frame := &input.Frame{}
	engine := qte.NewEngine(cfg.QTE, src, frame, logger)
	tracker := combo.NewTracker(cfg.Combo.UnitsPerStage)
	player := character.NewPlayer(uuid.NewString(), opts.Player)

	ctrl, err := battle.New(battle.Deps{
		Config: cfg.Battle,
		Seed:   seed,
		Player: player,
		Waves:  opts.Waves,
		Combo:  tracker,
		QTE:    engine,
		Source: src,
		Input:  frame,
		Logger: logger,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("sim: %w", err)
	}
	defer ctrl.Close()

	pilot := opts.Autopilot
	if pilot == nil {
		pilot = scripting.NewAutopilot(dice.NewSeededSource(seed+1), 0, logger)
		defer pilot.Close()
	}
	pressParries(engine, frame, pilot)

	sum := Summary{
		BattleID:    ctrl.ID(),
		Seed:        seed,
		Waves:       len(opts.Waves),
		PlayerMaxHP: player.MaxHP(),
		Parries:     make(map[qte.Quality]int),
	}
	ctrl.OnParryResolved.Subscribe(func(r qte.Result) { sum.Parries[r.Quality]++ })
	ctrl.OnEnemySpawned.Subscribe(func(e battle.SpawnEvent) {
		e.Enemy.OnDied.Subscribe(func(*character.Character) { sum.WavesCleared++ })
	})
	tracker.OnStageChanged.Subscribe(func(s combo.Stage) { sum.PeakStage = max(sum.PeakStage, s) })

	step := func(dt time.Duration) {
		if ctrl.AwaitingChoice() {
			sum.Turns++
			act(ctrl, tracker, pilot, logger)
		}
		ctrl.Advance(dt)
		frame.Clear()
		sum.Frames++
	}
	finish := func() Summary {
		sum.Outcome = ctrl.Phase()
		sum.Elapsed = ctrl.Now()
		sum.PlayerHP = player.CurrentHP()
		sum.Draws = src.Draws()
		return sum
	}

	ctrl.Start()

	var ticks chan time.Duration
	if opts.Clock != nil {
		ticks = make(chan time.Duration, 1)
		opts.Clock.Subscribe(ticks)
		defer opts.Clock.Unsubscribe(ticks)
		stop := opts.Clock.Start()
		defer stop()
	}

	for !ctrl.Phase().Terminal() {
		if ctrl.Now() >= cfg.Simulation.MaxDuration {
			return finish(), fmt.Errorf("sim: %w after %v", ErrTimeLimit, ctrl.Now())
		}
		if ticks == nil {
			if err := ctx.Err(); err != nil {
				return finish(), fmt.Errorf("sim: %w", err)
			}
			step(cfg.Simulation.Tick)
			continue
		}
		select {
		case <-ctx.Done():
			return finish(), fmt.Errorf("sim: %w", ctx.Err())
		case dt := <-ticks:
			step(dt)
		}
	}

	out := finish()
	logger.Info("simulation finished",
		zap.String("battle_id", out.BattleID),
		zap.Stringer("outcome", out.Outcome),
		zap.Duration("elapsed", out.Elapsed),
		zap.Int("turns", out.Turns),
		zap.Int("waves_cleared", out.WavesCleared),
	)
	return out, nil
}

// RunParrySessions runs n standalone parry windows back to back with the
// autopilot pressing, and returns their results in order.
//
// Precondition: n >= 0; cfg must be valid.
// Postcondition: Returns n results, or the results so far and a non-nil
// error when ctx is cancelled.
func RunParrySessions(ctx context.Context, cfg config.Config, seed int64, n int, pilot *scripting.Autopilot, logger *zap.Logger) ([]qte.Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pilot == nil {
		pilot = scripting.NewAutopilot(dice.NewSeededSource(seed+1), 0, logger)
		defer pilot.Close()
	}
	frame := &input.Frame{}
	engine := qte.NewEngine(cfg.QTE, dice.NewLoggedSource(dice.NewSeededSource(seed), logger), frame, logger)
	pressParries(engine, frame, pilot)

	results := make([]qte.Result, 0, n)
	engine.OnFinished.Subscribe(func(r qte.Result) { results = append(results, r) })

	var now time.Duration
	for range n {
		engine.Start(now)
		for engine.Running() {
			if err := ctx.Err(); err != nil {
				engine.Cancel()
				return results, fmt.Errorf("sim: %w", err)
			}
			now += cfg.Simulation.Tick
			engine.Tick(now)
			frame.Clear()
		}
	}
	return results, nil
}

// pressParries asks the autopilot where to press when each window opens and
// holds the required key on every frame at or past that position.
func pressParries(engine *qte.Engine, frame *input.Frame, pilot *scripting.Autopilot) {
	var target float64
	var armed bool
	engine.OnStarted.Subscribe(func(w qte.Window) {
		target, armed = pilot.ParryAt(scripting.WindowInfo{
			Key:         string(w.RequiredKey),
			Duration:    w.Duration,
			Center:      w.Center,
			SuccessHalf: w.SuccessHalf,
			PerfectHalf: w.PerfectHalf,
		})
	})
	engine.OnProgress.Subscribe(func(p float64) {
		if armed && p >= target {
			frame.Press(engine.RequiredKey())
		}
	})
}

// act asks the autopilot for a choice and performs it, attacking instead when
// the choice is rejected.
func act(ctrl *battle.Controller, tracker *combo.Tracker, pilot *scripting.Autopilot, logger *zap.Logger) {
	choice := pilot.ChooseAction(turnState(ctrl, tracker))

	var a battle.PlayerAction
	switch choice.Action {
	case scripting.ChoiceAbility:
		a = battle.UseAbility(choice.Slot)
	case scripting.ChoiceSkip:
		a = battle.Skip()
	default:
		a = battle.Attack()
	}
	if err := ctrl.Act(a); err != nil {
		logger.Debug("autopilot choice rejected, attacking", zap.Stringer("action", a), zap.Error(err))
		_ = ctrl.Act(battle.Attack())
	}
}

func turnState(ctrl *battle.Controller, tracker *combo.Tracker) scripting.TurnState {
	p := ctrl.Player()
	s := scripting.TurnState{
		PlayerHP:    p.CurrentHP(),
		PlayerMaxHP: p.MaxHP(),
		PlayerAP:    p.CurrentAP(),
		PlayerMaxAP: p.MaxAP(),
		ComboStage:  tracker.Stage().String(),
		ComboFill:   tracker.Fill(),
		Wave:        ctrl.Wave() + 1,
		WaveCount:   ctrl.WaveCount(),
	}
	if e := ctrl.Enemy(); e != nil {
		s.EnemyName = e.Name
		s.EnemyHP = e.CurrentHP()
		s.EnemyMaxHP = e.MaxHP()
	}
	for _, ab := range p.Abilities {
		if ab == nil {
			s.Abilities = append(s.Abilities, scripting.AbilityInfo{Empty: true})
			continue
		}
		s.Abilities = append(s.Abilities, scripting.AbilityInfo{
			Name:   ab.Name,
			APCost: ab.APCost,
			Damage: ab.Damage,
			Heal:   ab.HealAmount,
			Usable: ab.APCost <= p.CurrentAP(),
		})
	}
	return s
}
