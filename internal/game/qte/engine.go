// Package qte implements the parry quick-time event: a progress indicator
// sweeps from 0 to 1 over a randomized duration and the player must press a
// randomly chosen key while it is inside a randomized success band.
package qte

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/riposte/internal/config"
	"github.com/cory-johannsen/riposte/internal/game/dice"
	"github.com/cory-johannsen/riposte/internal/game/event"
	"github.com/cory-johannsen/riposte/internal/game/input"
)

// State is the lifecycle state of the engine.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateCancelled
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Quality classifies a parry attempt.
type Quality int

const (
	QualityFail Quality = iota
	QualitySuccess
	QualityPerfect
)

// String returns the lower-case quality name.
func (q Quality) String() string {
	switch q {
	case QualityFail:
		return "fail"
	case QualitySuccess:
		return "success"
	case QualityPerfect:
		return "perfect"
	default:
		return "unknown"
	}
}

// NoHit is the HitTime reported when the window timed out or was cancelled.
const NoHit time.Duration = -1

// Window describes the sampled parameters of one session.
type Window struct {
	RequiredKey input.Key
	StartTime   time.Duration
	Duration    time.Duration
	// Center, SuccessHalf and PerfectHalf are fractions of the track.
	Center      float64
	SuccessHalf float64
	PerfectHalf float64
}

// SuccessBand returns the success interval clamped to [0, 1].
func (w Window) SuccessBand() (lo, hi float64) {
	return dice.Clamp01(w.Center - w.SuccessHalf), dice.Clamp01(w.Center + w.SuccessHalf)
}

// PerfectBand returns the perfect interval clamped to [0, 1].
func (w Window) PerfectBand() (lo, hi float64) {
	return dice.Clamp01(w.Center - w.PerfectHalf), dice.Clamp01(w.Center + w.PerfectHalf)
}

// Classify returns the quality of a press at track position p.
func (w Window) Classify(p float64) Quality {
	s0, s1 := w.SuccessBand()
	if p < s0 || p > s1 {
		return QualityFail
	}
	p0, p1 := w.PerfectBand()
	if p >= p0 && p <= p1 {
		return QualityPerfect
	}
	return QualitySuccess
}

// Accuracy returns 1 at the center falling linearly to 0 at the success band edge.
func (w Window) Accuracy(p float64) float64 {
	d := math.Abs(p - w.Center)
	if w.SuccessHalf <= 0 {
		if d == 0 {
			return 1
		}
		return 0
	}
	return dice.Clamp01(1 - d/w.SuccessHalf)
}

// Result is the single finish notification of a session.
type Result struct {
	Success  bool
	Quality  Quality
	Accuracy float64
	// HitTime is the elapsed time at the press, or NoHit.
	HitTime time.Duration
	State   State
	Window
}

// Engine runs one parry session at a time.
//
// Engine is driven by the host clock through Start and Tick and is not safe
// for concurrent use.
type Engine struct {
	settings settings
	src      dice.Source
	in       input.Source
	logger   *zap.Logger

	state    State
	window   Window
	progress float64
	emitted  bool

	// OnStarted fires once per Start after sampling.
	OnStarted event.Feed[Window]
	// OnProgress fires with the current track position on Start and every running Tick.
	OnProgress event.Feed[float64]
	// OnFinished fires exactly once per session.
	OnFinished event.Feed[Result]
}

// NewEngine creates an idle engine.
//
// Precondition: src must be non-nil. A nil in never reports a press; a nil
// logger discards output.
// Postcondition: State() == StateIdle.
func NewEngine(cfg config.QTEConfig, src dice.Source, in input.Source, logger *zap.Logger) *Engine {
	if in == nil {
		in = input.None{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		settings: newSettings(cfg),
		src:      src,
		in:       in,
		logger:   logger,
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State { return e.state }

// Running reports whether a session is in progress.
func (e *Engine) Running() bool { return e.state == StateRunning }

// RequiredKey returns the key of the current or most recent session.
func (e *Engine) RequiredKey() input.Key { return e.window.RequiredKey }

// Window returns the parameters of the current or most recent session.
func (e *Engine) Window() Window { return e.window }

// Progress returns the last computed track position while running, else 0.
func (e *Engine) Progress() float64 {
	if e.state != StateRunning {
		return 0
	}
	return e.progress
}

// Start begins a new session at host time now. A running session is
// cancelled first.
//
// Postcondition: State() == StateRunning; the success band lies inside
// [0, 1] and starts no earlier than the configured minimum window start,
// unless the configured ranges make that infeasible.
func (e *Engine) Start(now time.Duration) {
	if e.state == StateRunning {
		e.Cancel()
	}

	s := e.settings
	w := Window{StartTime: now}
	w.Duration = s.pickDuration(e.src)
	w.SuccessHalf = s.pickSuccessHalf(e.src)
	w.PerfectHalf = s.pickPerfectHalf(w.SuccessHalf, e.src)
	w.Center = s.pickCenter(w.SuccessHalf, e.src)
	w.RequiredKey = s.pickKey(e.src)

	e.window = w
	e.progress = 0
	e.state = StateRunning
	e.emitted = false

	lo, hi := w.SuccessBand()
	e.logger.Debug("parry window started",
		zap.String("key", string(w.RequiredKey)),
		zap.Duration("duration", w.Duration),
		zap.Float64("center", w.Center),
		zap.Float64("success_lo", lo),
		zap.Float64("success_hi", hi),
	)

	e.OnStarted.Emit(w)
	e.OnProgress.Emit(0)
}

// Tick advances the running session to host time now and polls input.
// A press of the required key is judged before the timeout check, so a
// press on the final tick still counts. Other keys are ignored.
func (e *Engine) Tick(now time.Duration) {
	if e.state != StateRunning {
		return
	}

	elapsed := now - e.window.StartTime
	p := dice.Clamp01(float64(elapsed) / float64(e.window.Duration))
	e.progress = p
	e.OnProgress.Emit(p)
	if e.state != StateRunning {
		return
	}

	if e.in.WasPressed(e.window.RequiredKey) {
		q := e.window.Classify(p)
		if q == QualityFail {
			e.finish(false, q, 0, elapsed)
		} else {
			e.finish(true, q, e.window.Accuracy(p), elapsed)
		}
		return
	}

	if p >= 1 {
		e.finish(false, QualityFail, 0, NoHit)
	}
}

// Cancel aborts a running session. It has no effect otherwise.
//
// Postcondition: if a session was running, State() == StateCancelled and a
// failed result with State StateCancelled was emitted.
func (e *Engine) Cancel() {
	if e.state != StateRunning {
		return
	}
	e.state = StateCancelled
	e.emit(false, QualityFail, 0, NoHit)
}

func (e *Engine) finish(ok bool, q Quality, accuracy float64, hit time.Duration) {
	if ok {
		e.state = StateSucceeded
	} else {
		e.state = StateFailed
	}
	e.emit(ok, q, accuracy, hit)
}

func (e *Engine) emit(ok bool, q Quality, accuracy float64, hit time.Duration) {
	if e.emitted {
		return
	}
	e.emitted = true

	r := Result{
		Success:  ok,
		Quality:  q,
		Accuracy: dice.Clamp01(accuracy),
		HitTime:  hit,
		State:    e.state,
		Window:   e.window,
	}
	e.logger.Debug("parry window finished",
		zap.Stringer("state", r.State),
		zap.Stringer("quality", r.Quality),
		zap.Float64("accuracy", r.Accuracy),
		zap.Duration("hit_time", r.HitTime),
	)
	e.OnFinished.Emit(r)
}
