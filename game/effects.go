package game

import "math"

// burst emits n particles of one colour radiating from pos.
func (s *Simulator) burst(w *WorldState, pos Vec2, color EffectColor, n int, speedK float64) {
	for i := 0; i < n; i++ {
		angle := s.rng.Float64() * 2 * math.Pi
		speed := s.rng.Float64() * 50 * speedK
		w.Effects = append(w.Effects, Effect{
			Pos:    pos,
			Vel:    FromAngle(angle).Scale(speed),
			Life:   1,
			Decay:  s.rng.Float64()*3 + 2,
			Radius: s.rng.Float64()*3 + 1,
			Color:  color,
		})
	}
}

// ageEffects moves particles and drops the faded ones.
func (s *Simulator) ageEffects(w *WorldState, dt float64) {
	kept := w.Effects[:0]
	for _, e := range w.Effects {
		e.Pos = e.Pos.Add(e.Vel.Scale(dt))
		e.Life -= dt * e.Decay
		if e.Life > 0 {
			kept = append(kept, e)
		}
	}
	w.Effects = kept
}
