package character

import "github.com/cory-johannsen/riposte/internal/game/event"

// MaxAPLimit is the hard ceiling for a player's AP capacity.
const MaxAPLimit = 10

// Ability is a player skill occupying one slot of the ability bar.
type Ability struct {
	Name       string
	APCost     int
	Damage     int
	HealAmount int
	// Effect is the visual effect id played on use; empty selects the default.
	Effect string
}

// APEvent reports the AP pool after a change.
type APEvent struct {
	Current int
	Max     int
}

// Player is the character controlled by the user.
//
// Invariant: 0 <= CurrentAP() <= MaxAP() <= MaxAPLimit.
type Player struct {
	Character

	BaseAttackDamage int
	RiposteDamage    int
	APOnParrySuccess int
	APOnParryPerfect int
	// Effect is the visual effect id for base attacks and ripostes.
	Effect string
	// Abilities holds the fixed ability slots; a nil entry is an empty slot.
	Abilities []*Ability

	maxAP     int
	currentAP int

	// OnAPChanged fires whenever CurrentAP or MaxAP changes.
	OnAPChanged event.Feed[APEvent]
}

// NewPlayer creates a Player instance from tmpl.
//
// Precondition: id must be non-empty; tmpl must be non-nil and have passed Validate.
// Postcondition: CurrentHP = clamp(StartingHP, 0, MaxHP) (MaxHP when unset);
// CurrentAP = clamp(StartingAP, 0, MaxAP); every numeric stat is >= 0.
func NewPlayer(id string, tmpl *PlayerTemplate) *Player {
	p := &Player{
		Character:        newCharacter(id, tmpl.Name, tmpl.MaxHP, tmpl.startingHP()),
		BaseAttackDamage: max(0, tmpl.BaseAttackDamage),
		RiposteDamage:    max(0, tmpl.RiposteDamage),
		APOnParrySuccess: max(0, tmpl.APOnParrySuccess),
		APOnParryPerfect: max(0, tmpl.APOnParryPerfect),
		Effect:           tmpl.Effect,
		maxAP:            clamp(tmpl.MaxAP, 0, MaxAPLimit),
	}
	p.currentAP = clamp(tmpl.StartingAP, 0, p.maxAP)
	for _, a := range tmpl.Abilities {
		if a == nil {
			p.Abilities = append(p.Abilities, nil)
			continue
		}
		p.Abilities = append(p.Abilities, &Ability{
			Name:       a.Name,
			APCost:     max(0, a.APCost),
			Damage:     max(0, a.Damage),
			HealAmount: max(0, a.Heal),
			Effect:     a.Effect,
		})
	}
	return p
}

// MaxAP returns the AP capacity.
func (p *Player) MaxAP() int { return p.maxAP }

// CurrentAP returns the AP available to spend.
func (p *Player) CurrentAP() int { return p.currentAP }

// Ability returns the ability in slot, or false when the slot is out of range or empty.
func (p *Player) Ability(slot int) (*Ability, bool) {
	if slot < 0 || slot >= len(p.Abilities) || p.Abilities[slot] == nil {
		return nil, false
	}
	return p.Abilities[slot], true
}

// GainAP adds amount AP, capping at MaxAP.
//
// Postcondition: CurrentAP <= MaxAP; OnAPChanged fired iff CurrentAP changed.
func (p *Player) GainAP(amount int) {
	if amount <= 0 {
		return
	}
	before := p.currentAP
	p.currentAP = clamp(p.currentAP+amount, 0, p.maxAP)
	if p.currentAP != before {
		p.emitAP()
	}
}

// SpendAP removes amount AP atomically.
//
// Postcondition: Returns true for amount <= 0 without mutation. Returns false
// with no mutation when CurrentAP < amount. Otherwise CurrentAP is reduced by
// amount, OnAPChanged fires, and true is returned.
func (p *Player) SpendAP(amount int) bool {
	if amount <= 0 {
		return true
	}
	if p.currentAP < amount {
		return false
	}
	p.currentAP -= amount
	p.emitAP()
	return true
}

// ResetAP empties the AP pool.
func (p *Player) ResetAP() {
	if p.currentAP == 0 {
		return
	}
	p.currentAP = 0
	p.emitAP()
}

// SetMaxAP changes the AP capacity, clamped to [0, MaxAPLimit].
// When clampCurrent is true CurrentAP is clamped into the new range.
//
// Postcondition: OnAPChanged fired iff MaxAP or CurrentAP changed.
func (p *Player) SetMaxAP(newMax int, clampCurrent bool) {
	oldMax, oldCur := p.maxAP, p.currentAP
	p.maxAP = clamp(newMax, 0, MaxAPLimit)
	if clampCurrent {
		p.currentAP = clamp(p.currentAP, 0, p.maxAP)
	}
	if p.maxAP != oldMax || p.currentAP != oldCur {
		p.emitAP()
	}
}

func (p *Player) emitAP() {
	p.OnAPChanged.Emit(APEvent{Current: p.currentAP, Max: p.maxAP})
}
