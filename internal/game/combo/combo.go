// Package combo implements the five-stage damage multiplier streak.
//
// Stages run D, C, B, A, S; each adds +50% outgoing damage (1.0x to 3.0x).
// Damage dealt fills the current stage one unit per point; taking a hit
// resets the streak to D.
package combo

import (
	"math"

	"github.com/cory-johannsen/riposte/internal/game/event"
)

// Stage is a combo tier.
type Stage int

const (
	StageD Stage = iota
	StageC
	StageB
	StageA
	StageS
)

// MaxStage is the highest reachable tier.
const MaxStage = StageS

// String returns the stage letter.
func (s Stage) String() string {
	switch s {
	case StageD:
		return "D"
	case StageC:
		return "C"
	case StageB:
		return "B"
	case StageA:
		return "A"
	case StageS:
		return "S"
	default:
		return "?"
	}
}

// Multiplier returns 1.0 + 0.5*stage.
func (s Stage) Multiplier() float64 {
	return 1 + 0.5*float64(s)
}

// Progress reports the fill of the current stage.
type Progress struct {
	Stage Stage
	// Fill is Units/UnitsPerStage, in [0, 1).
	Fill float64
}

// Tracker holds the combo state for one player.
//
// Invariant: StageD <= Stage() <= MaxStage; 0 <= Units() < UnitsPerStage().
type Tracker struct {
	unitsPerStage int
	stage         Stage
	units         int

	// OnStageChanged fires when the stage letter changes.
	OnStageChanged event.Feed[Stage]
	// OnStageProgressChanged fires after every contribution or reset.
	OnStageProgressChanged event.Feed[Progress]
}

// NewTracker creates a Tracker at stage D.
//
// Precondition: unitsPerStage >= 1; smaller values are raised to 1.
func NewTracker(unitsPerStage int) *Tracker {
	return &Tracker{unitsPerStage: max(1, unitsPerStage)}
}

// Stage returns the current tier.
func (t *Tracker) Stage() Stage { return t.stage }

// Units returns the progress units inside the current stage.
func (t *Tracker) Units() int { return t.units }

// UnitsPerStage returns the units needed to advance one stage.
func (t *Tracker) UnitsPerStage() int { return t.unitsPerStage }

// Multiplier returns the current damage multiplier.
func (t *Tracker) Multiplier() float64 { return t.stage.Multiplier() }

// Fill returns the fraction of the current stage filled.
func (t *Tracker) Fill() float64 {
	return float64(t.units) / float64(t.unitsPerStage)
}

// AddDamageContribution advances the streak by damageDealt units.
//
// Postcondition: For damageDealt <= 0 the state is unchanged. Otherwise whole
// stages are carried while below MaxStage; at MaxStage surplus units are
// discarded so that Units() <= UnitsPerStage()-1. OnStageChanged fires iff the
// letter changed; OnStageProgressChanged always fires.
func (t *Tracker) AddDamageContribution(damageDealt int) {
	if damageDealt <= 0 {
		t.fireProgress()
		return
	}

	stage, units := t.stage, t.units+damageDealt
	for units >= t.unitsPerStage && stage < MaxStage {
		units -= t.unitsPerStage
		stage++
	}
	if stage >= MaxStage {
		stage = MaxStage
		units = min(max(units, 0), t.unitsPerStage-1)
	}

	changed := stage != t.stage
	t.stage, t.units = stage, units
	if changed {
		t.OnStageChanged.Emit(t.stage)
	}
	t.fireProgress()
}

// ResetOnPlayerHit breaks the streak.
//
// Postcondition: Stage() == StageD and Units() == 0. OnStageChanged fires iff
// the stage was not already D; OnStageProgressChanged always fires.
func (t *Tracker) ResetOnPlayerHit() {
	changed := t.stage != StageD
	t.stage, t.units = StageD, 0
	if changed {
		t.OnStageChanged.Emit(t.stage)
	}
	t.fireProgress()
}

// ApplyMultiplier scales baseDamage by the current multiplier.
//
// Rounding is round-half-to-even: 3 at C (4.5) is 4, 5 at C (7.5) is 8.
//
// Postcondition: Returns 0 for baseDamage <= 0, otherwise a non-negative integer.
func (t *Tracker) ApplyMultiplier(baseDamage int) int {
	if baseDamage <= 0 {
		return 0
	}
	scaled := math.RoundToEven(float64(baseDamage) * t.Multiplier())
	return max(0, int(scaled))
}

func (t *Tracker) fireProgress() {
	t.OnStageProgressChanged.Emit(Progress{Stage: t.stage, Fill: t.Fill()})
}
