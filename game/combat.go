package game

import "math"

// resolveStrike applies a swing by a to every other active combatant inside
// the strike range and arc. A target blocking towards a is pushed back with a
// instead of being hurt; a dodging target is untouched.
func (s *Simulator) resolveStrike(w *WorldState, a *Combatant) {
	t := s.t
	for _, id := range w.IDs() {
		if id == a.ID {
			continue
		}
		target := w.Combatants[id]
		if !target.Active || a.Pos.Dist(target.Pos) >= t.StrikeRange {
			continue
		}
		if AngleDiff(Bearing(a.Pos, target.Pos), a.Facing) >= t.StrikeArc/2 {
			continue
		}

		switch {
		case blocks(target, a.Pos, t.BlockArc):
			away := target.Pos.Sub(a.Pos).Normalize()
			target.Knockback = away.Scale(t.BlockPush)
			a.Knockback = away.Scale(-t.BlockPush)
			w.Shake += 5
			s.burst(w, target.Pos, ColorShield, 5, 4)
		case target.Dodging:
			continue
		default:
			target.HP -= t.StrikeDamage
			target.Knockback = strikeKnockback(a, target.Pos, t)
			w.Shake += 10
			s.burst(w, target.Pos, ColorBlood, 10, 8)
			if target.HP <= 0 {
				target.HP = 0
				target.Active = false
				a.Kills++
				w.Shake += 20
				s.burst(w, target.Pos, ColorBlood, 20, 12)
			}
		}
		w.Combatants[id] = target
	}
}

// blocks reports whether c is blocking and faces the point from within its
// block arc.
func blocks(c Combatant, from Vec2, arc float64) bool {
	return c.Blocking && AngleDiff(Bearing(c.Pos, from), c.Facing) < arc/2
}

// strikeKnockback points away from the attacker, bent towards the swing
// direction (the attacker's right-hand side).
func strikeKnockback(a *Combatant, targetPos Vec2, t Tuning) Vec2 {
	away := targetPos.Sub(a.Pos).Normalize()
	swing := Vec2{-math.Sin(a.Facing), math.Cos(a.Facing)}
	return away.Add(swing.Scale(t.SwingTangent)).Normalize().Scale(t.KnockbackForce)
}

// passiveContact pushes anyone touching the idle blade. The push accumulates
// on top of existing knockback and never hurts.
func (s *Simulator) passiveContact(w *WorldState, a *Combatant) {
	t := s.t
	reach := t.StrikeRange * t.PassiveRangeK
	blade := a.Facing + t.PassiveOffset
	for _, id := range w.IDs() {
		if id == a.ID {
			continue
		}
		target := w.Combatants[id]
		if !target.Active || a.Pos.Dist(target.Pos) >= reach {
			continue
		}
		if AngleDiff(Bearing(a.Pos, target.Pos), blade) >= t.PassiveArc {
			continue
		}
		away := target.Pos.Sub(a.Pos).Normalize()
		target.Knockback = target.Knockback.Add(away.Scale(t.PassiveForce))
		w.Combatants[id] = target
	}
}
