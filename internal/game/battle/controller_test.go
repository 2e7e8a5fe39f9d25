package battle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/riposte/internal/config"
	"github.com/cory-johannsen/riposte/internal/game/battle"
	"github.com/cory-johannsen/riposte/internal/game/character"
	"github.com/cory-johannsen/riposte/internal/game/combo"
	"github.com/cory-johannsen/riposte/internal/game/dice"
	"github.com/cory-johannsen/riposte/internal/game/input"
	"github.com/cory-johannsen/riposte/internal/game/qte"
)

const frame = 10 * time.Millisecond

// zeroSource always draws the lowest value.
type zeroSource struct{}

func (zeroSource) Intn(int) int     { return 0 }
func (zeroSource) Float64() float64 { return 0 }

type effectCall struct {
	side   string
	id     string
	target string
}

type recordingEffects struct{ calls []effectCall }

func (r *recordingEffects) PlayPlayerEffect(id string, target *character.Character) {
	r.calls = append(r.calls, effectCall{side: "player", id: id, target: target.Name})
}

func (r *recordingEffects) PlayEnemyEffect(id string, target *character.Character) {
	r.calls = append(r.calls, effectCall{side: "enemy", id: id, target: target.Name})
}

type recordingHUD struct{ bound []*character.Character }

func (r *recordingHUD) BindHealth(c *character.Character) { r.bound = append(r.bound, c) }

// fixedParryWindow is a one second window with success band [0.4, 0.6],
// perfect band [0.45, 0.55] and required key "z".
func fixedParryWindow() config.QTEConfig {
	cfg := config.Default().QTE
	cfg.MinDuration = time.Second
	cfg.MaxDuration = time.Second
	cfg.RandomizeDuration = false
	cfg.SuccessHalfMin = 0.1
	cfg.SuccessHalfMax = 0.1
	cfg.PerfectOfSuccessMin = 0.5
	cfg.PerfectOfSuccessMax = 0.5
	cfg.RandomizeCenter = false
	cfg.FixedCenter = 0.5
	cfg.RandomizeKey = false
	cfg.AllowedKeys = []string{"z"}
	return cfg
}

const (
	pressPerfect = 0.50
	pressSuccess = 0.58
	pressNever   = -1
)

func knight() *character.PlayerTemplate {
	return &character.PlayerTemplate{
		ID:               "knight",
		Name:             "Knight",
		MaxHP:            30,
		MaxAP:            5,
		BaseAttackDamage: 5,
		RiposteDamage:    3,
		APOnParrySuccess: 1,
		APOnParryPerfect: 2,
		Effect:           "sword",
		Abilities: []*character.AbilityTemplate{
			{Name: "Lunge", APCost: 2, Damage: 3, Heal: 2, Effect: "lunge"},
			nil,
		},
	}
}

func brute(hp int) *character.EnemyTemplate {
	return &character.EnemyTemplate{ID: "brute", Name: "Brute", MaxHP: hp, BaseAttackDamage: 4}
}

type rigOptions struct {
	player *character.PlayerTemplate
	waves  []*character.EnemyTemplate
	noQTE  bool
	source dice.Source
	qte    *config.QTEConfig
}

type rig struct {
	t       *testing.T
	ctrl    *battle.Controller
	frame   *input.Frame
	engine  *qte.Engine
	player  *character.Player
	combo   *combo.Tracker
	effects *recordingEffects
	hud     *recordingHUD
	phases  []battle.Phase
	parries []qte.Result
	// parryAt is the track position at which the parry key is pressed; negative never presses.
	parryAt float64
}

func newRig(t *testing.T, opts rigOptions) *rig {
	t.Helper()
	if opts.player == nil {
		opts.player = knight()
	}
	if opts.waves == nil {
		opts.waves = []*character.EnemyTemplate{brute(20)}
	}
	if opts.source == nil {
		opts.source = zeroSource{}
	}
	qcfg := fixedParryWindow()
	if opts.qte != nil {
		qcfg = *opts.qte
	}

	r := &rig{
		t:       t,
		frame:   &input.Frame{},
		player:  character.NewPlayer("p-1", opts.player),
		combo:   combo.NewTracker(2),
		effects: &recordingEffects{},
		hud:     &recordingHUD{},
		parryAt: pressSuccess,
	}
	logger := zaptest.NewLogger(t)
	if !opts.noQTE {
		r.engine = qte.NewEngine(qcfg, opts.source, r.frame, logger)
		r.engine.OnProgress.Subscribe(func(p float64) {
			if r.parryAt >= 0 && p >= r.parryAt {
				r.frame.Press(r.engine.RequiredKey())
			}
		})
	}

	ctrl, err := battle.New(battle.Deps{
		Config:  config.Default().Battle,
		Seed:    7,
		Player:  r.player,
		Waves:   opts.waves,
		Combo:   r.combo,
		QTE:     r.engine,
		Source:  opts.source,
		Input:   r.frame,
		Effects: r.effects,
		HUD:     r.hud,
		Logger:  logger,
	})
	require.NoError(t, err)
	r.ctrl = ctrl
	ctrl.OnPhaseChanged.Subscribe(func(p battle.Phase) { r.phases = append(r.phases, p) })
	ctrl.OnParryResolved.Subscribe(func(res qte.Result) { r.parries = append(r.parries, res) })
	t.Cleanup(ctrl.Close)
	return r
}

func (r *rig) step() {
	r.ctrl.Advance(frame)
	r.frame.Clear()
}

func (r *rig) press(key input.Key) {
	r.frame.Press(key)
	r.step()
}

func (r *rig) runUntil(cond func() bool) {
	r.t.Helper()
	for i := 0; i < 5000 && !cond(); i++ {
		r.step()
	}
	require.True(r.t, cond(), "condition not reached by %v", r.ctrl.Now())
}

func (r *rig) awaiting() bool { return r.ctrl.AwaitingChoice() }

func (r *rig) inPhase(p battle.Phase) func() bool {
	return func() bool { return r.ctrl.Phase() == p }
}

func TestNew_RequiresPlayerAndSource(t *testing.T) {
	_, err := battle.New(battle.Deps{Source: zeroSource{}})
	assert.Error(t, err)

	_, err = battle.New(battle.Deps{Player: character.NewPlayer("p", knight())})
	assert.Error(t, err)
}

func TestStart_SpawnsFirstWave(t *testing.T) {
	r := newRig(t, rigOptions{})
	var spawned []battle.SpawnEvent
	r.ctrl.OnEnemySpawned.Subscribe(func(e battle.SpawnEvent) { spawned = append(spawned, e) })

	r.ctrl.Start()

	assert.Equal(t, battle.PhasePlayerTurn, r.ctrl.Phase())
	assert.True(t, r.awaiting())
	require.NotNil(t, r.ctrl.Enemy())
	assert.Equal(t, "Brute", r.ctrl.Enemy().Name)
	assert.NotEmpty(t, r.ctrl.Enemy().ID)
	assert.Equal(t, 0, r.ctrl.Wave())
	require.Len(t, spawned, 1)
	assert.Same(t, r.ctrl.Enemy(), spawned[0].Enemy)
	require.Len(t, r.hud.bound, 1)
	assert.Same(t, &r.ctrl.Enemy().Character, r.hud.bound[0])
	assert.NotEmpty(t, r.ctrl.ID())
}

func TestStart_NoWavesIsVictory(t *testing.T) {
	r := newRig(t, rigOptions{waves: []*character.EnemyTemplate{}})
	r.ctrl.Start()
	assert.Equal(t, battle.PhaseVictory, r.ctrl.Phase())
	assert.Nil(t, r.ctrl.Enemy())
}

func TestStart_UnpopulatedFirstSlotIsDefeat(t *testing.T) {
	r := newRig(t, rigOptions{waves: []*character.EnemyTemplate{nil, brute(5)}})
	r.ctrl.Start()
	assert.Equal(t, battle.PhaseDefeat, r.ctrl.Phase())
}

func TestAdvance_BeforeStartIsNoOp(t *testing.T) {
	r := newRig(t, rigOptions{})
	r.press("a")
	assert.Equal(t, battle.PhaseNone, r.ctrl.Phase())
	assert.Zero(t, r.ctrl.Now())
}

func TestComboTraceAcrossTwoAttacks(t *testing.T) {
	r := newRig(t, rigOptions{})
	r.ctrl.Start()

	r.press("a")
	r.runUntil(r.inPhase(battle.PhaseEnemyTelegraph))
	assert.Equal(t, 15, r.ctrl.Enemy().CurrentHP())
	assert.Equal(t, combo.StageB, r.combo.Stage())
	assert.Equal(t, 1, r.combo.Units())

	r.runUntil(r.awaiting)
	require.Len(t, r.parries, 1)
	assert.Equal(t, qte.QualitySuccess, r.parries[0].Quality)
	assert.Equal(t, 30, r.player.CurrentHP(), "a successful parry negates the hit")
	assert.Equal(t, 1, r.player.CurrentAP())
	assert.Equal(t, combo.StageB, r.combo.Stage())

	r.press("a")
	r.runUntil(r.inPhase(battle.PhaseEnemyTelegraph))
	assert.Equal(t, 5, r.ctrl.Enemy().CurrentHP())
	assert.Equal(t, combo.StageS, r.combo.Stage())
	assert.Equal(t, 1, r.combo.Units())
}

func TestPhaseSequenceOfOneRound(t *testing.T) {
	r := newRig(t, rigOptions{})
	r.ctrl.Start()
	r.press("a")
	r.runUntil(r.awaiting)

	assert.Equal(t, []battle.Phase{
		battle.PhasePlayerTurn,
		battle.PhaseEnemyTelegraph,
		battle.PhaseEnemyResolve,
		battle.PhasePlayerTurn,
	}, r.phases)
}

func TestTelegraphUsesPickedAction(t *testing.T) {
	tmpl := brute(20)
	tmpl.Abilities = []*character.EnemyAbilityTemplate{{Name: "Slam", Damage: 9, Weight: 10, Effect: "slam"}}
	// base weight 50 + slam 10; a roll of 55 lands in the slam bucket
	r := newRig(t, rigOptions{waves: []*character.EnemyTemplate{tmpl}, source: &stubSource{ints: []int{55}}})
	r.parryAt = pressNever
	var telegraphs []battle.TelegraphEvent
	r.ctrl.OnTelegraph.Subscribe(func(e battle.TelegraphEvent) { telegraphs = append(telegraphs, e) })
	r.ctrl.Start()

	r.press("s")
	r.step()

	require.Len(t, telegraphs, 1)
	assert.Equal(t, "Slam", telegraphs[0].Action.Name())
	action, dmg := r.ctrl.Pending()
	assert.Equal(t, character.ActionAbility, action.Kind)
	assert.Equal(t, 9, dmg)

	r.runUntil(r.awaiting)
	assert.Equal(t, 21, r.player.CurrentHP())
	assert.Contains(t, r.effects.calls, effectCall{side: "enemy", id: "slam", target: "Knight"})
}

// stubSource replays ints and draws zero floats.
type stubSource struct {
	ints []int
	n    int
}

func (s *stubSource) Intn(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[s.n%len(s.ints)]
	s.n++
	return v % n
}

func (s *stubSource) Float64() float64 { return 0 }

func TestSkip_PassesTurnWithoutDamage(t *testing.T) {
	r := newRig(t, rigOptions{})
	r.ctrl.Start()

	r.press("s")

	assert.Equal(t, battle.PhasePlayerTurn, r.ctrl.Phase(), "skip waits one frame")
	assert.False(t, r.awaiting())
	r.step()
	assert.Equal(t, battle.PhaseEnemyTelegraph, r.ctrl.Phase())
	assert.Equal(t, 20, r.ctrl.Enemy().CurrentHP())
	assert.Equal(t, combo.StageD, r.combo.Stage())
	assert.Empty(t, r.effects.calls)
}

func TestAbility_RejectedWithoutEnoughAP(t *testing.T) {
	r := newRig(t, rigOptions{})
	r.ctrl.Start()

	r.press("q")

	assert.True(t, r.awaiting(), "the player keeps the turn")
	assert.Equal(t, 20, r.ctrl.Enemy().CurrentHP())
	assert.Equal(t, 0, r.player.CurrentAP())
	assert.Empty(t, r.effects.calls)

	err := r.ctrl.Act(battle.UseAbility(0))
	assert.ErrorIs(t, err, battle.ErrInsufficientAP)
}

func TestAbility_RejectsBadSlots(t *testing.T) {
	r := newRig(t, rigOptions{})
	r.ctrl.Start()
	r.player.GainAP(5)

	assert.ErrorIs(t, r.ctrl.Act(battle.UseAbility(1)), battle.ErrEmptySlot)
	assert.ErrorIs(t, r.ctrl.Act(battle.UseAbility(2)), battle.ErrNoSuchAbility)
	assert.ErrorIs(t, r.ctrl.Act(battle.UseAbility(-1)), battle.ErrNoSuchAbility)
	assert.ErrorIs(t, r.ctrl.Act(battle.PlayerAction{Kind: 42}), battle.ErrUnknownAction)

	r.press("w")
	assert.True(t, r.awaiting())
	assert.Equal(t, 5, r.player.CurrentAP())
}

func TestAbility_SpendsAPDamagesAndHeals(t *testing.T) {
	tmpl := knight()
	start := 20
	tmpl.StartingHP = &start
	tmpl.StartingAP = 3
	r := newRig(t, rigOptions{player: tmpl})
	r.ctrl.Start()

	r.press("q")

	assert.False(t, r.awaiting())
	assert.Equal(t, 1, r.player.CurrentAP(), "AP is spent when the action is accepted")
	r.runUntil(r.inPhase(battle.PhaseEnemyTelegraph))
	assert.Equal(t, 17, r.ctrl.Enemy().CurrentHP())
	assert.Equal(t, 22, r.player.CurrentHP())
	assert.Equal(t, []effectCall{{side: "player", id: "lunge", target: "Brute"}}, r.effects.calls)
}

func TestAct_OutsidePlayerTurn(t *testing.T) {
	r := newRig(t, rigOptions{})
	assert.ErrorIs(t, r.ctrl.Act(battle.Attack()), battle.ErrNotPlayerTurn)

	r.ctrl.Start()
	require.NoError(t, r.ctrl.Act(battle.Attack()))
	assert.ErrorIs(t, r.ctrl.Act(battle.Attack()), battle.ErrNotPlayerTurn)
}

func TestKeyPressDuringParryDoesNotAct(t *testing.T) {
	r := newRig(t, rigOptions{})
	r.parryAt = pressNever
	r.ctrl.Start()
	r.press("a")
	r.runUntil(r.engine.Running)

	for i := 0; i < 5; i++ {
		r.press("a")
	}

	assert.Equal(t, 15, r.ctrl.Enemy().CurrentHP())
	assert.True(t, r.engine.Running())
}

func TestFailedParry_DamagesPlayerAndResetsCombo(t *testing.T) {
	r := newRig(t, rigOptions{})
	r.parryAt = pressNever
	r.ctrl.Start()

	r.press("a")
	r.runUntil(r.awaiting)

	require.Len(t, r.parries, 1)
	assert.Equal(t, qte.QualityFail, r.parries[0].Quality)
	assert.Equal(t, 26, r.player.CurrentHP())
	assert.Equal(t, combo.StageD, r.combo.Stage())
	assert.Equal(t, 0, r.combo.Units())
	assert.Contains(t, r.effects.calls, effectCall{side: "enemy", id: battle.DefaultEffect, target: "Knight"})
}

func TestFailedParry_DefeatWhenPlayerDies(t *testing.T) {
	tmpl := knight()
	start := 4
	tmpl.StartingHP = &start
	r := newRig(t, rigOptions{player: tmpl})
	r.parryAt = pressNever
	r.ctrl.Start()

	r.press("a")
	r.runUntil(r.inPhase(battle.PhaseDefeat))

	assert.True(t, r.player.IsDead())
	assert.False(t, r.awaiting())
	now := r.ctrl.Now()
	r.press("a")
	assert.Equal(t, now, r.ctrl.Now(), "a finished battle ignores Advance")
}

func TestNoParryEngine_AlwaysFails(t *testing.T) {
	r := newRig(t, rigOptions{noQTE: true})
	r.ctrl.Start()

	r.press("a")
	r.runUntil(r.awaiting)

	require.Len(t, r.parries, 1)
	assert.Equal(t, qte.QualityFail, r.parries[0].Quality)
	assert.Equal(t, qte.NoHit, r.parries[0].HitTime)
	assert.Equal(t, 26, r.player.CurrentHP())
	assert.Equal(t, combo.StageD, r.combo.Stage())
}

func TestPerfectParry_Ripostes(t *testing.T) {
	r := newRig(t, rigOptions{})
	r.parryAt = pressPerfect
	r.ctrl.Start()

	r.press("a")
	r.runUntil(r.awaiting)

	require.Len(t, r.parries, 1)
	assert.Equal(t, qte.QualityPerfect, r.parries[0].Quality)
	assert.Equal(t, 2, r.player.CurrentAP())
	assert.Equal(t, 30, r.player.CurrentHP())
	// attack 5 at D reaches B; riposte 3 at B deals 6
	assert.Equal(t, 9, r.ctrl.Enemy().CurrentHP())
	assert.Equal(t, combo.StageS, r.combo.Stage())
	assert.Equal(t, []effectCall{
		{side: "player", id: "sword", target: "Brute"},
		{side: "player", id: "sword", target: "Brute"},
	}, r.effects.calls)
}

func TestPerfectParry_RiposteCanKill(t *testing.T) {
	r := newRig(t, rigOptions{waves: []*character.EnemyTemplate{brute(11)}})
	r.parryAt = pressPerfect
	r.ctrl.Start()

	r.press("a")
	r.runUntil(r.inPhase(battle.PhaseVictory))

	assert.Nil(t, r.ctrl.Enemy())
}

func TestWaves_AdvanceToVictory(t *testing.T) {
	r := newRig(t, rigOptions{waves: []*character.EnemyTemplate{brute(5), brute(5)}})
	r.ctrl.Start()
	first := r.ctrl.Enemy()

	r.press("a")
	r.runUntil(func() bool { return r.ctrl.Enemy() == nil })
	assert.False(t, r.awaiting())
	r.step()
	require.NotNil(t, r.ctrl.Enemy(), "the next wave spawns one frame after removal")
	assert.NotSame(t, first, r.ctrl.Enemy())
	assert.Equal(t, 1, r.ctrl.Wave())
	assert.True(t, r.awaiting())
	assert.Len(t, r.hud.bound, 2)

	r.press("a")
	r.runUntil(r.inPhase(battle.PhaseVictory))
	assert.Equal(t, []battle.Phase{battle.PhasePlayerTurn, battle.PhaseVictory}, r.phases)
}

func TestWaves_UnpopulatedSlotIsDefeat(t *testing.T) {
	r := newRig(t, rigOptions{waves: []*character.EnemyTemplate{brute(5), nil}})
	r.ctrl.Start()

	r.press("a")
	r.runUntil(r.inPhase(battle.PhaseDefeat))

	assert.False(t, r.player.IsDead())
}

func TestZeroDelaysResolveWithinOneFrame(t *testing.T) {
	cfg := config.Default().Battle
	cfg.TelegraphDelay = 0
	cfg.EffectDelay = 0
	player := character.NewPlayer("p", knight())
	ctrl, err := battle.New(battle.Deps{
		Config: cfg,
		Player: player,
		Waves:  []*character.EnemyTemplate{brute(20)},
		Combo:  combo.NewTracker(2),
		Source: zeroSource{},
	})
	require.NoError(t, err)
	ctrl.Start()

	require.NoError(t, ctrl.Act(battle.Attack()))

	assert.True(t, ctrl.AwaitingChoice())
	assert.Equal(t, 15, ctrl.Enemy().CurrentHP())
	assert.Equal(t, 26, player.CurrentHP())
}

func TestProperty_SeedReproducesEncounter(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64Range(1, 1<<40).Draw(t, "seed")
		turns := rapid.IntRange(1, 6).Draw(t, "turns")
		assert.Equal(t, playScripted(seed, turns), playScripted(seed, turns))
	})
}

// playScripted attacks every turn and parries at each window's center,
// returning a trace of what happened.
func playScripted(seed int64, turns int) []string {
	src := dice.NewSeededSource(seed)
	in := &input.Frame{}
	engine := qte.NewEngine(config.Default().QTE, src, in, nil)
	engine.OnProgress.Subscribe(func(p float64) {
		if p >= engine.Window().Center {
			in.Press(engine.RequiredKey())
		}
	})
	tmpl := brute(200)
	tmpl.Abilities = []*character.EnemyAbilityTemplate{
		{Name: "Slam", Damage: 6, Weight: 30},
		{Name: "Jab", Damage: 2, Weight: 20},
	}
	player := character.NewPlayer("p", knight())
	ctrl, err := battle.New(battle.Deps{
		Config: config.Default().Battle,
		Player: player,
		Waves:  []*character.EnemyTemplate{tmpl},
		Combo:  combo.NewTracker(2),
		QTE:    engine,
		Source: src,
		Input:  in,
	})
	if err != nil {
		panic(err)
	}
	var trace []string
	ctrl.OnTelegraph.Subscribe(func(e battle.TelegraphEvent) { trace = append(trace, e.Action.Name()) })
	ctrl.OnParryResolved.Subscribe(func(r qte.Result) {
		trace = append(trace, r.Quality.String(), string(r.RequiredKey), r.Duration.String())
	})
	ctrl.Start()

	for played, i := 0, 0; played < turns && i < 100000; i++ {
		if ctrl.AwaitingChoice() {
			in.Press("a")
			played++
		}
		ctrl.Advance(frame)
		in.Clear()
	}
	return trace
}
