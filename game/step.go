package game

import (
	"math"
	"math/rand/v2"
)

// timerEpsilon absorbs float drift so an N-tick duration expires on tick N.
const timerEpsilon = 1e-9

// Simulator advances a match. It holds what stays fixed for the match: the
// tuning, the obstacle index and the particle randomness. A Simulator must be
// driven from a single goroutine.
type Simulator struct {
	t       Tuning
	arena   *Arena
	rng     *rand.Rand
	devices uint64
}

// NewSimulator builds a simulator for a match played over obstacles.
func NewSimulator(t Tuning, obstacles []Obstacle, rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = NewRand()
	}
	return &Simulator{t: t, arena: NewArena(t, obstacles), rng: rng}
}

func (s *Simulator) Tuning() Tuning { return s.t }

// Step computes the state one tick after prev. prev is left untouched. When
// the match is not in progress prev is returned as is.
//
// Combatants act in sorted key order. The order only matters when two
// combatants strike each other on the same tick: the first one processed
// lands its hit first and may deactivate the other before it swings.
func (s *Simulator) Step(prev WorldState, intents map[string]Intent) WorldState {
	if prev.Status != StatusInProgress {
		return prev
	}
	dt := s.t.DT()
	next := prev.Clone()
	next.Tick++
	next.Shake = math.Max(0, next.Shake-1)

	for _, id := range next.IDs() {
		c := next.Combatants[id]
		if !c.Active {
			continue
		}
		in, ok := intents[id]
		if !ok {
			in = idleIntent(c)
		}
		s.stepCombatant(&next, &c, in, dt)
		next.Combatants[id] = c
	}

	s.tickDevices(&next, dt)
	s.ageEffects(&next, dt)
	evaluateWin(&next)
	return next
}

func (s *Simulator) stepCombatant(w *WorldState, c *Combatant, in Intent, dt float64) {
	t := s.t

	c.Knockback = c.Knockback.Scale(t.KnockbackDecay)
	if math.Abs(c.Knockback.X) < t.KnockbackSnap {
		c.Knockback.X = 0
	}
	if math.Abs(c.Knockback.Y) < t.KnockbackSnap {
		c.Knockback.Y = 0
	}

	c.AttackCooldown = countdown(c.AttackCooldown, dt)
	c.DodgeCooldown = countdown(c.DodgeCooldown, dt)
	c.SwingTimer = countdown(c.SwingTimer, dt)
	c.DeviceCooldown = countdown(c.DeviceCooldown, dt)

	c.Facing = Bearing(c.Pos, in.Aim)
	c.Blocking = in.Held.Has(KeyBlock) && !c.Attacking && !c.Dodging

	if in.Device && c.DeviceCooldown == 0 {
		c.DeviceCooldown = t.DeviceCooldown
		s.placeDevice(w, c)
	}

	struck := false
	if in.Attack && c.AttackCooldown == 0 && !c.Dodging && !c.Blocking {
		c.Attacking = true
		c.SwingTimer = t.SwingDuration
		c.AttackCooldown = t.StrikeCooldown
		struck = true
		s.resolveStrike(w, c)
	}
	if !struck && !c.Attacking && !c.Dodging {
		s.passiveContact(w, c)
	}
	if c.Attacking && c.SwingTimer == 0 {
		c.Attacking = false
	}

	dir := in.Held.Direction()
	if in.Held.Has(KeyDodge) && !c.Dodging && c.DodgeCooldown == 0 &&
		!c.Blocking && !c.Attacking && !dir.IsZero() {
		c.Dodging = true
		c.DodgeTimer = t.DodgeDuration
		c.DodgeCooldown = t.DodgeCooldown
		c.Vel = dir.Scale(t.DodgeSpeed)
		s.burst(w, c.Pos, ColorDodge, 3, 2)
	}

	if c.Dodging {
		c.DodgeTimer = countdown(c.DodgeTimer, dt)
		if c.DodgeTimer == 0 {
			c.Dodging = false
			c.Vel = Vec2{}
		}
	} else {
		speed := t.Speed
		if c.Blocking {
			speed *= t.BlockSpeedK
		}
		if c.Attacking {
			speed *= t.AttackSpeedK
		}
		c.Vel = dir.Scale(speed)
	}

	cand := c.Pos.Add(c.Vel.Add(c.Knockback).Scale(dt))
	c.Pos = s.arena.Move(c.Pos, cand, c.Radius)
}

// evaluateWin concludes the match once at most one of several combatants is
// left standing. Nobody standing is a draw.
func evaluateWin(w *WorldState) {
	if len(w.Combatants) < 2 {
		return
	}
	var last string
	n := 0
	for id, c := range w.Combatants {
		if c.Active {
			n++
			last = id
		}
	}
	switch n {
	case 0:
		w.Status = StatusConcluded
		w.Winner = ""
	case 1:
		w.Status = StatusConcluded
		w.Winner = last
	}
}

func countdown(v, dt float64) float64 {
	v -= dt
	if v < timerEpsilon {
		return 0
	}
	return v
}
