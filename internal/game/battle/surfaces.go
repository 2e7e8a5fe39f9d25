package battle

import "github.com/cory-johannsen/riposte/internal/game/character"

// DefaultEffect is played when an attack carries no effect id.
const DefaultEffect = "slash"

// Effects plays fire-and-forget attack effects. Implementations must not
// call back into the controller.
type Effects interface {
	// PlayPlayerEffect plays a player attack landing on target.
	PlayPlayerEffect(effectID string, target *character.Character)
	// PlayEnemyEffect plays an enemy strike landing on target.
	PlayEnemyEffect(effectID string, target *character.Character)
}

// HUD displays the health of the active enemy.
type HUD interface {
	// BindHealth points the health display at c. It is called on every spawn.
	BindHealth(c *character.Character)
}

// NopEffects discards every effect.
type NopEffects struct{}

// PlayPlayerEffect implements Effects.
func (NopEffects) PlayPlayerEffect(string, *character.Character) {}

// PlayEnemyEffect implements Effects.
func (NopEffects) PlayEnemyEffect(string, *character.Character) {}

// NopHUD ignores health bindings.
type NopHUD struct{}

// BindHealth implements HUD.
func (NopHUD) BindHealth(*character.Character) {}

func effectOrDefault(id string) string {
	if id == "" {
		return DefaultEffect
	}
	return id
}
