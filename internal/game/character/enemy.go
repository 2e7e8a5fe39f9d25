package character

import "github.com/cory-johannsen/riposte/internal/game/dice"

// EnemyAbility is one weighted entry in an enemy's action table.
type EnemyAbility struct {
	Name   string
	Damage int
	// Weight is the relative selection weight; negative values count as zero.
	Weight int
	// Effect is the visual effect id for the strike; empty selects the default.
	Effect string
}

// ActionKind distinguishes a base attack from an ability.
type ActionKind int

const (
	ActionBase ActionKind = iota
	ActionAbility
)

// String returns a human-readable action kind.
func (k ActionKind) String() string {
	switch k {
	case ActionBase:
		return "base attack"
	case ActionAbility:
		return "ability"
	default:
		return "unknown"
	}
}

// EnemyAction is the outcome of an enemy's action selection.
type EnemyAction struct {
	Kind ActionKind
	// Ability is nil for ActionBase.
	Ability *EnemyAbility
	// Damage is the damage the action deals if not parried.
	Damage int
	// Effect is the visual effect id for the strike.
	Effect string
}

// Name returns the label used in logs.
func (a EnemyAction) Name() string {
	if a.Kind == ActionAbility && a.Ability != nil {
		return a.Ability.Name
	}
	return ActionBase.String()
}

// Enemy is a hostile character occupying one wave slot.
type Enemy struct {
	Character

	BaseAttackDamage int
	// Effect is the visual effect id for base attacks.
	Effect string
	// Abilities is the ordered action table consulted by PickAction.
	Abilities []*EnemyAbility
}

// NewEnemy creates an Enemy instance from tmpl.
//
// Precondition: id must be non-empty; tmpl must be non-nil and have passed Validate.
// Postcondition: CurrentHP = clamp(StartingHP, 0, MaxHP) (MaxHP when unset).
func NewEnemy(id string, tmpl *EnemyTemplate) *Enemy {
	e := &Enemy{
		Character:        newCharacter(id, tmpl.Name, tmpl.MaxHP, tmpl.startingHP()),
		BaseAttackDamage: max(0, tmpl.BaseAttackDamage),
		Effect:           tmpl.Effect,
	}
	for _, a := range tmpl.Abilities {
		if a == nil {
			e.Abilities = append(e.Abilities, nil)
			continue
		}
		e.Abilities = append(e.Abilities, &EnemyAbility{
			Name:   a.Name,
			Damage: max(0, a.Damage),
			Weight: max(0, a.Weight),
			Effect: a.Effect,
		})
	}
	return e
}

// baseAction returns the enemy's base attack.
func (e *Enemy) baseAction() EnemyAction {
	return EnemyAction{Kind: ActionBase, Damage: e.BaseAttackDamage, Effect: e.Effect}
}

// PickAction selects the enemy's next action by weighted sampling.
//
// The base attack carries baseWeight; abilities carry their own weights. With
// total = max(0, baseWeight) + sum(max(0, weight)), a roll is drawn from
// src.Intn(total) and buckets are walked base first, then abilities in table
// order, returning the first whose cumulative upper bound exceeds the roll.
// Nil and zero-weight entries occupy no bucket.
//
// Precondition: src must be non-nil.
// Postcondition: When total <= 0 the base attack is returned and no value is
// drawn from src; otherwise exactly one Intn draw is consumed.
func (e *Enemy) PickAction(src dice.Source, baseWeight int) EnemyAction {
	base := max(0, baseWeight)
	total := base
	for _, a := range e.Abilities {
		if a != nil {
			total += max(0, a.Weight)
		}
	}
	if total <= 0 {
		return e.baseAction()
	}

	roll := src.Intn(total)
	acc := base
	if roll < acc {
		return e.baseAction()
	}
	for _, a := range e.Abilities {
		if a == nil {
			continue
		}
		w := max(0, a.Weight)
		if w == 0 {
			continue
		}
		if roll < acc+w {
			return EnemyAction{Kind: ActionAbility, Ability: a, Damage: a.Damage, Effect: a.Effect}
		}
		acc += w
	}
	return e.baseAction()
}
