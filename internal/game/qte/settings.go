package qte

import (
	"time"

	"github.com/cory-johannsen/riposte/internal/config"
	"github.com/cory-johannsen/riposte/internal/game/dice"
	"github.com/cory-johannsen/riposte/internal/game/input"
)

const (
	// MinDurationFloor is the shortest window the engine will run.
	MinDurationFloor = 50 * time.Millisecond
	// MaxSuccessHalf caps the success half-width so the band never covers the whole track.
	MaxSuccessHalf = 0.49
)

// settings is a clamped copy of config.QTEConfig. Every getter here is safe
// to use on unvalidated input.
type settings struct {
	keys                []input.Key
	minDuration         time.Duration
	maxDuration         time.Duration
	randomizeDuration   bool
	successHalfMin      float64
	successHalfMax      float64
	perfectOfSuccessMin float64
	perfectOfSuccessMax float64
	randomizeCenter     bool
	fixedCenter         float64
	randomizeKey        bool
	minWindowStart      float64
}

func newSettings(cfg config.QTEConfig) settings {
	minDur := max(cfg.MinDuration, MinDurationFloor)
	return settings{
		keys:                input.ParseKeys(cfg.AllowedKeys),
		minDuration:         minDur,
		maxDuration:         max(cfg.MaxDuration, minDur),
		randomizeDuration:   cfg.RandomizeDuration,
		successHalfMin:      clamp(cfg.SuccessHalfMin, 0, MaxSuccessHalf),
		successHalfMax:      clamp(cfg.SuccessHalfMax, 0, MaxSuccessHalf),
		perfectOfSuccessMin: dice.Clamp01(cfg.PerfectOfSuccessMin),
		perfectOfSuccessMax: dice.Clamp01(cfg.PerfectOfSuccessMax),
		randomizeCenter:     cfg.RandomizeCenter,
		fixedCenter:         dice.Clamp01(cfg.FixedCenter),
		randomizeKey:        cfg.RandomizeKey,
		minWindowStart:      dice.Clamp01(cfg.MinWindowStart),
	}
}

func (s settings) pickDuration(src dice.Source) time.Duration {
	if !s.randomizeDuration {
		return (s.minDuration + s.maxDuration) / 2
	}
	return time.Duration(dice.Lerp(float64(s.minDuration), float64(s.maxDuration), src.Float64()))
}

func (s settings) pickSuccessHalf(src dice.Source) float64 {
	return clamp(dice.Lerp(s.successHalfMin, s.successHalfMax, src.Float64()), 0, MaxSuccessHalf)
}

func (s settings) pickPerfectHalf(successHalf float64, src dice.Source) float64 {
	mul := dice.Lerp(s.perfectOfSuccessMin, s.perfectOfSuccessMax, src.Float64())
	return clamp(mul*successHalf, 0, successHalf)
}

// pickCenter keeps the whole success band inside [0, 1] and its start at or
// after minWindowStart. When those bounds cross, the midpoint of the two is used.
func (s settings) pickCenter(successHalf float64, src dice.Source) float64 {
	lo := s.minWindowStart + successHalf
	hi := 1 - successHalf
	if hi <= lo {
		return dice.Clamp01((lo + hi) / 2)
	}
	if !s.randomizeCenter {
		return clamp(s.fixedCenter, lo, hi)
	}
	return dice.Lerp(lo, hi, src.Float64())
}

func (s settings) pickKey(src dice.Source) input.Key {
	if len(s.keys) == 0 {
		return input.KeySpace
	}
	if !s.randomizeKey {
		return s.keys[0]
	}
	return s.keys[src.Intn(len(s.keys))]
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
