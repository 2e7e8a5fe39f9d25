// Package character defines the stat and resource model shared by the player
// and enemies: HP pools, AP pools, ability tables, and weighted enemy action
// selection.
package character

import "github.com/cory-johannsen/riposte/internal/game/event"

// HPEvent describes a change to a character's hit points.
type HPEvent struct {
	// Target is the character whose HP changed.
	Target *Character
	// Amount is the damage dealt or the HP actually restored.
	Amount int
}

// Character is the base entity for both combat sides.
//
// Invariant: 0 <= CurrentHP() <= MaxHP(). A character at 0 HP is dead and
// ignores further damage and healing.
type Character struct {
	// ID uniquely identifies this runtime instance.
	ID string
	// Name is the display name.
	Name string

	maxHP     int
	currentHP int

	// OnDamaged fires after damage is applied.
	OnDamaged event.Feed[HPEvent]
	// OnHealed fires after healing is applied, with the post-clamp delta.
	OnHealed event.Feed[HPEvent]
	// OnDied fires exactly once, when CurrentHP transitions from positive to zero.
	OnDied event.Feed[*Character]
}

// newCharacter builds a Character with currentHP = clamp(startingHP, 0, maxHP).
func newCharacter(id, name string, maxHP, startingHP int) Character {
	if maxHP < 0 {
		maxHP = 0
	}
	return Character{
		ID:        id,
		Name:      name,
		maxHP:     maxHP,
		currentHP: clamp(startingHP, 0, maxHP),
	}
}

// MaxHP returns the HP capacity.
func (c *Character) MaxHP() int { return c.maxHP }

// CurrentHP returns the remaining HP.
func (c *Character) CurrentHP() int { return c.currentHP }

// IsDead reports whether the character has no HP left.
func (c *Character) IsDead() bool { return c.currentHP <= 0 }

// TakeDamage subtracts amount from CurrentHP, flooring at zero.
//
// Precondition: none; non-positive amounts and dead characters are ignored.
// Postcondition: CurrentHP >= 0; OnDamaged fired with amount; OnDied fired iff
// this call moved CurrentHP from positive to zero.
func (c *Character) TakeDamage(amount int) {
	if amount <= 0 || c.IsDead() {
		return
	}
	before := c.currentHP
	c.currentHP = max(0, c.currentHP-amount)
	c.OnDamaged.Emit(HPEvent{Target: c, Amount: amount})
	if before > 0 && c.currentHP == 0 {
		c.OnDied.Emit(c)
	}
}

// Heal adds amount to CurrentHP, capping at MaxHP.
//
// Postcondition: CurrentHP <= MaxHP; OnHealed fired with the HP actually
// restored, which may be less than amount (and may be 0 at full health).
func (c *Character) Heal(amount int) {
	if amount <= 0 || c.IsDead() {
		return
	}
	before := c.currentHP
	c.currentHP = min(c.maxHP, c.currentHP+amount)
	c.OnHealed.Emit(HPEvent{Target: c, Amount: c.currentHP - before})
}

// ResetToFull restores CurrentHP to MaxHP without firing events.
// Used during encounter setup only.
func (c *Character) ResetToFull() {
	c.currentHP = c.maxHP
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
