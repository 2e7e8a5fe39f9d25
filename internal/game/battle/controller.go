// Package battle runs the turn cycle of an encounter: player choice, enemy
// telegraph, parry window, resolution, and enemy waves.
package battle

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/riposte/internal/config"
	"github.com/cory-johannsen/riposte/internal/game/character"
	"github.com/cory-johannsen/riposte/internal/game/combo"
	"github.com/cory-johannsen/riposte/internal/game/dice"
	"github.com/cory-johannsen/riposte/internal/game/event"
	"github.com/cory-johannsen/riposte/internal/game/input"
	"github.com/cory-johannsen/riposte/internal/game/qte"
	"github.com/cory-johannsen/riposte/internal/observability"
)

// Deps holds the collaborators of a Controller.
type Deps struct {
	Config config.BattleConfig
	// Seed is the encounter seed, recorded in logs only.
	Seed   int64
	Player *character.Player
	// Waves are spawned in order; a nil entry is an unpopulated slot.
	Waves []*character.EnemyTemplate
	// Combo may be nil, in which case damage is never multiplied.
	Combo *combo.Tracker
	// QTE may be nil, in which case every parry fails.
	QTE *qte.Engine
	// Source drives enemy action selection and must be the one shared with QTE.
	Source  dice.Source
	Input   input.Source
	Effects Effects
	HUD     HUD
	Logger  *zap.Logger
}

// SpawnEvent reports a newly spawned wave enemy.
type SpawnEvent struct {
	// Wave is the zero-based wave index.
	Wave  int
	Enemy *character.Enemy
}

// TelegraphEvent reports the enemy's chosen action before the parry window opens.
type TelegraphEvent struct {
	Enemy  *character.Enemy
	Action character.EnemyAction
}

type waitKind int

const (
	waitNone waitKind = iota
	waitUntil
	waitTick
	waitParry
)

// suspension is the single point at which the turn cycle is paused.
type suspension struct {
	kind   waitKind
	until  time.Duration
	tick   int64
	resume func()
}

// Controller drives one encounter. The host calls Start once and then
// Advance once per frame.
//
// Controller is not safe for concurrent use.
type Controller struct {
	id      string
	cfg     config.BattleConfig
	player  *character.Player
	waves   []*character.EnemyTemplate
	combo   *combo.Tracker
	parry   *qte.Engine
	src     dice.Source
	in      input.Source
	effects Effects
	hud     HUD
	logger  *zap.Logger

	attackKey  input.Key
	abilityKey []input.Key
	skipKey    input.Key

	now            time.Duration
	tick           int64
	phase          Phase
	awaitingChoice bool

	enemy         *character.Enemy
	wave          int
	pending       character.EnemyAction
	pendingDamage int

	wait       suspension
	parryDone  bool
	lastParry  qte.Result
	unsubParry func()

	// OnPhaseChanged fires on every phase transition.
	OnPhaseChanged event.Feed[Phase]
	// OnEnemySpawned fires after a wave enemy is spawned and bound to the HUD.
	OnEnemySpawned event.Feed[SpawnEvent]
	// OnTelegraph fires when the enemy commits to an action.
	OnTelegraph event.Feed[TelegraphEvent]
	// OnParryResolved fires with the parry outcome of every enemy turn.
	OnParryResolved event.Feed[qte.Result]
}

// New creates a Controller in PhaseNone.
//
// Precondition: deps.Player and deps.Source must be non-nil.
// Postcondition: Returns a Controller or a non-nil error naming the missing dependency.
func New(deps Deps) (*Controller, error) {
	if deps.Player == nil {
		return nil, errors.New("battle: player is required")
	}
	if deps.Source == nil {
		return nil, errors.New("battle: dice source is required")
	}
	if deps.Input == nil {
		deps.Input = input.None{}
	}
	if deps.Effects == nil {
		deps.Effects = NopEffects{}
	}
	if deps.HUD == nil {
		deps.HUD = NopHUD{}
	}

	id := uuid.NewString()
	c := &Controller{
		id:         id,
		cfg:        deps.Config,
		player:     deps.Player,
		waves:      deps.Waves,
		combo:      deps.Combo,
		parry:      deps.QTE,
		src:        deps.Source,
		in:         deps.Input,
		effects:    deps.Effects,
		hud:        deps.HUD,
		logger:     observability.BattleLogger(deps.Logger, id, deps.Seed),
		attackKey:  input.ParseKey(deps.Config.Keys.Attack),
		abilityKey: input.ParseKeys(deps.Config.Keys.Abilities),
		skipKey:    input.ParseKey(deps.Config.Keys.Skip),
		wave:       -1,
	}
	if c.parry != nil {
		c.unsubParry = c.parry.OnFinished.Subscribe(c.handleParryFinished)
	}
	return c, nil
}

// ID returns the battle identifier.
func (c *Controller) ID() string { return c.id }

// Phase returns the current phase.
func (c *Controller) Phase() Phase { return c.phase }

// Now returns the accumulated host time.
func (c *Controller) Now() time.Duration { return c.now }

// Player returns the player character.
func (c *Controller) Player() *character.Player { return c.player }

// Enemy returns the active enemy, or nil between waves.
func (c *Controller) Enemy() *character.Enemy { return c.enemy }

// Wave returns the zero-based index of the current wave, or -1 before the first spawn.
func (c *Controller) Wave() int { return c.wave }

// WaveCount returns the number of wave slots.
func (c *Controller) WaveCount() int { return len(c.waves) }

// Combo returns the combo tracker, which may be nil.
func (c *Controller) Combo() *combo.Tracker { return c.combo }

// AwaitingChoice reports whether the player may act.
func (c *Controller) AwaitingChoice() bool {
	return c.phase == PhasePlayerTurn && c.awaitingChoice
}

// Pending returns the telegraphed enemy action and its unmitigated damage.
func (c *Controller) Pending() (character.EnemyAction, int) {
	return c.pending, c.pendingDamage
}

// Start spawns the first wave and hands the turn to the player.
//
// Precondition: Start has not been called before.
// Postcondition: Phase() is PhasePlayerTurn, or PhaseVictory when there are no
// waves, or PhaseDefeat when the first slot is unpopulated.
func (c *Controller) Start() {
	if c.phase != PhaseNone {
		return
	}
	c.logger.Info("battle started",
		zap.String("player", c.player.Name),
		zap.Int("waves", len(c.waves)),
	)
	c.spawnNext(c.backToPlayer)
	c.runDue()
}

// Close detaches the controller from the parry engine.
func (c *Controller) Close() {
	if c.unsubParry != nil {
		c.unsubParry()
		c.unsubParry = nil
	}
}

// Advance moves host time forward by dt and processes one frame: the player
// choice is polled when awaited, otherwise a running parry window is ticked;
// then every suspension that has come due is resumed.
//
// Postcondition: A key press is consumed by at most one of the player turn
// and the parry window in a single frame.
func (c *Controller) Advance(dt time.Duration) {
	if c.phase == PhaseNone || c.phase.Terminal() {
		return
	}
	c.now += dt
	c.tick++

	switch {
	case c.AwaitingChoice():
		c.pollPlayerInput()
	case c.wait.kind == waitParry && c.parry != nil:
		c.parry.Tick(c.now)
	}
	c.runDue()
}

// Act performs a player turn choice on behalf of a non-keyboard host.
//
// Postcondition: Returns nil when the action was accepted. Otherwise returns
// one of the Err* rejection reasons and leaves all state unchanged; the
// player keeps the turn.
func (c *Controller) Act(a PlayerAction) error {
	if !c.AwaitingChoice() {
		return c.reject(a, ErrNotPlayerTurn)
	}

	switch a.Kind {
	case ActionAttack:
		c.awaitingChoice = false
		c.logger.Info("player action", zap.Stringer("action", a))
		c.playPlayerEffect(c.player.Effect)
		c.after(c.cfg.EffectDelay, c.resolveBaseAttack)
	case ActionAbility:
		if a.Slot < 0 || a.Slot >= len(c.player.Abilities) {
			return c.reject(a, ErrNoSuchAbility)
		}
		ab, ok := c.player.Ability(a.Slot)
		if !ok {
			return c.reject(a, ErrEmptySlot)
		}
		if !c.player.SpendAP(ab.APCost) {
			return c.reject(a, fmt.Errorf("%w: %s costs %d, have %d", ErrInsufficientAP, ab.Name, ab.APCost, c.player.CurrentAP()))
		}
		c.awaitingChoice = false
		c.logger.Info("player action", zap.Stringer("action", a), zap.String("ability", ab.Name))
		c.playPlayerEffect(ab.Effect)
		c.after(c.cfg.EffectDelay, func() { c.resolveAbility(ab) })
	case ActionSkip:
		c.awaitingChoice = false
		c.logger.Info("player action", zap.Stringer("action", a))
		c.nextTick(c.startEnemyTurn)
	default:
		return c.reject(a, ErrUnknownAction)
	}
	c.runDue()
	return nil
}

func (c *Controller) reject(a PlayerAction, err error) error {
	c.logger.Info("player action rejected", zap.Stringer("action", a), zap.Error(err))
	return err
}

// pollPlayerInput acts on the first bound key pressed this frame, checked in
// the order attack, abilities by slot, skip.
func (c *Controller) pollPlayerInput() {
	if c.in.WasPressed(c.attackKey) {
		_ = c.Act(Attack())
		return
	}
	for slot, key := range c.abilityKey {
		if c.in.WasPressed(key) {
			_ = c.Act(UseAbility(slot))
			return
		}
	}
	if c.in.WasPressed(c.skipKey) {
		_ = c.Act(Skip())
	}
}

func (c *Controller) resolveBaseAttack() {
	dmg := c.applyMultiplier(c.player.BaseAttackDamage)
	c.enemy.TakeDamage(dmg)
	c.addCombo(dmg)
	c.logger.Debug("player hit", zap.Int("damage", dmg), zap.Int("enemy_hp", c.enemy.CurrentHP()))
	c.afterPlayerDamage()
}

func (c *Controller) resolveAbility(ab *character.Ability) {
	dmg := c.applyMultiplier(ab.Damage)
	if dmg > 0 {
		c.enemy.TakeDamage(dmg)
		c.addCombo(dmg)
	}
	if ab.HealAmount > 0 {
		c.player.Heal(ab.HealAmount)
	}
	c.logger.Debug("ability resolved",
		zap.String("ability", ab.Name),
		zap.Int("damage", dmg),
		zap.Int("heal", ab.HealAmount),
		zap.Int("enemy_hp", c.enemy.CurrentHP()),
	)
	c.afterPlayerDamage()
}

func (c *Controller) afterPlayerDamage() {
	if c.enemy.IsDead() {
		c.enemyDefeated()
		return
	}
	c.startEnemyTurn()
}

func (c *Controller) startEnemyTurn() {
	c.setPhase(PhaseEnemyTelegraph)
	c.pending = c.enemy.PickAction(c.src, c.cfg.EnemyBaseAttackWeight)
	c.pendingDamage = c.pending.Damage

	c.logger.Info("enemy telegraph",
		zap.String("enemy", c.enemy.Name),
		zap.String("action", c.pending.Name()),
		zap.Int("damage", c.pendingDamage),
	)
	c.OnTelegraph.Emit(TelegraphEvent{Enemy: c.enemy, Action: c.pending})
	c.after(c.cfg.TelegraphDelay, c.openParry)
}

func (c *Controller) openParry() {
	if c.parry == nil {
		c.logger.Warn("no parry engine wired, treating parry as failed")
		c.resolveParry(qte.Result{Quality: qte.QualityFail, HitTime: qte.NoHit, State: qte.StateFailed})
		return
	}
	c.parryDone = false
	c.wait = suspension{kind: waitParry, resume: func() { c.resolveParry(c.lastParry) }}
	c.parry.Start(c.now)
}

func (c *Controller) handleParryFinished(r qte.Result) {
	if c.wait.kind != waitParry {
		return
	}
	c.lastParry = r
	c.parryDone = true
}

func (c *Controller) resolveParry(r qte.Result) {
	c.setPhase(PhaseEnemyResolve)
	c.logger.Info("parry resolved",
		zap.Stringer("quality", r.Quality),
		zap.Float64("accuracy", r.Accuracy),
		zap.Int("pending_damage", c.pendingDamage),
	)
	c.OnParryResolved.Emit(r)

	switch r.Quality {
	case qte.QualityPerfect:
		c.player.GainAP(c.player.APOnParryPerfect)
		c.playPlayerEffect(c.player.Effect)
		c.after(c.cfg.EffectDelay, c.resolveRiposte)
	case qte.QualitySuccess:
		c.player.GainAP(c.player.APOnParrySuccess)
		c.backToPlayer()
	default:
		c.effects.PlayEnemyEffect(effectOrDefault(c.pending.Effect), &c.player.Character)
		c.after(c.cfg.EffectDelay, c.resolveEnemyHit)
	}
}

func (c *Controller) resolveRiposte() {
	dmg := c.applyMultiplier(c.player.RiposteDamage)
	c.enemy.TakeDamage(dmg)
	c.addCombo(dmg)
	c.logger.Debug("riposte", zap.Int("damage", dmg), zap.Int("enemy_hp", c.enemy.CurrentHP()))
	if c.enemy.IsDead() {
		c.enemyDefeated()
		return
	}
	c.backToPlayer()
}

func (c *Controller) resolveEnemyHit() {
	c.player.TakeDamage(c.pendingDamage)
	if c.combo != nil {
		c.combo.ResetOnPlayerHit()
	}
	c.logger.Debug("enemy hit", zap.Int("damage", c.pendingDamage), zap.Int("player_hp", c.player.CurrentHP()))
	if c.player.IsDead() {
		c.end(PhaseDefeat)
		return
	}
	c.backToPlayer()
}

func (c *Controller) backToPlayer() {
	c.pendingDamage = 0
	c.setPhase(PhasePlayerTurn)
	c.awaitingChoice = true
}

func (c *Controller) enemyDefeated() {
	c.logger.Info("enemy defeated", zap.String("enemy", c.enemy.Name), zap.Int("wave", c.wave))
	c.after(c.cfg.DeathDelay, func() { c.spawnNext(c.backToPlayer) })
}

// spawnNext removes the current enemy, waits one frame for it to settle, then
// spawns the next wave slot and calls then. Running out of slots is a victory;
// an unpopulated slot is a defeat.
func (c *Controller) spawnNext(then func()) {
	if c.enemy != nil {
		c.enemy = nil
		c.nextTick(func() { c.spawnNext(then) })
		return
	}

	c.wave++
	if c.wave >= len(c.waves) {
		c.end(PhaseVictory)
		return
	}
	tmpl := c.waves[c.wave]
	if tmpl == nil {
		c.logger.Error("wave slot is unpopulated", zap.Int("wave", c.wave))
		c.end(PhaseDefeat)
		return
	}

	c.enemy = character.NewEnemy(uuid.NewString(), tmpl)
	c.hud.BindHealth(&c.enemy.Character)
	c.logger.Info("enemy spawned",
		zap.Int("wave", c.wave+1),
		zap.Int("of", len(c.waves)),
		zap.String("enemy", c.enemy.Name),
		zap.String("enemy_id", c.enemy.ID),
	)
	c.OnEnemySpawned.Emit(SpawnEvent{Wave: c.wave, Enemy: c.enemy})
	then()
}

func (c *Controller) end(p Phase) {
	c.awaitingChoice = false
	c.wait = suspension{}
	c.setPhase(p)
}

func (c *Controller) setPhase(p Phase) {
	if c.phase == p {
		return
	}
	c.logger.Info("phase changed", zap.Stringer("from", c.phase), zap.Stringer("to", p))
	c.phase = p
	c.OnPhaseChanged.Emit(p)
}

func (c *Controller) playPlayerEffect(id string) {
	var target *character.Character
	if c.enemy != nil {
		target = &c.enemy.Character
	}
	c.effects.PlayPlayerEffect(effectOrDefault(id), target)
}

func (c *Controller) applyMultiplier(base int) int {
	if c.combo == nil {
		return max(0, base)
	}
	return c.combo.ApplyMultiplier(base)
}

func (c *Controller) addCombo(dmg int) {
	if c.combo != nil {
		c.combo.AddDamageContribution(dmg)
	}
}

func (c *Controller) after(d time.Duration, resume func()) {
	c.wait = suspension{kind: waitUntil, until: c.now + d, resume: resume}
}

func (c *Controller) nextTick(resume func()) {
	c.wait = suspension{kind: waitTick, tick: c.tick, resume: resume}
}

func (c *Controller) due() bool {
	switch c.wait.kind {
	case waitUntil:
		return c.now >= c.wait.until
	case waitTick:
		return c.tick > c.wait.tick
	case waitParry:
		return c.parryDone
	default:
		return false
	}
}

// runDue resumes suspensions until the cycle reaches one that is not yet due.
func (c *Controller) runDue() {
	for c.due() {
		w := c.wait
		c.wait = suspension{}
		w.resume()
	}
}
