package game

import "fmt"

// placeDevice drops an explosive just ahead of c.
func (s *Simulator) placeDevice(w *WorldState, c *Combatant) {
	s.devices++
	w.Devices = append(w.Devices, Device{
		ID:      fmt.Sprintf("dev-%d", s.devices),
		OwnerID: c.ID,
		Pos:     c.Pos.Add(FromAngle(c.Facing).Scale(s.t.DeviceOffset)),
		Fuse:    s.t.DeviceFuse,
		Radius:  s.t.DeviceSize,
	})
}

// tickDevices burns every fuse by one tick and detonates the spent ones.
func (s *Simulator) tickDevices(w *WorldState, dt float64) {
	kept := w.Devices[:0]
	var spent []Device
	for _, d := range w.Devices {
		d.Fuse = countdown(d.Fuse, dt)
		if d.Fuse > 0 {
			kept = append(kept, d)
			continue
		}
		spent = append(spent, d)
	}
	w.Devices = kept
	for _, d := range spent {
		s.detonate(w, d)
	}
}

// detonate hits every active, non-dodging combatant within the blast radius
// once.
func (s *Simulator) detonate(w *WorldState, d Device) {
	t := s.t
	w.Shake += 25
	s.burst(w, d.Pos, ColorExplosion, 30, 8)

	for _, id := range w.IDs() {
		c := w.Combatants[id]
		if !c.Active || c.Dodging || c.Pos.Dist(d.Pos) >= t.DeviceRadius {
			continue
		}
		c.HP -= t.DeviceDamage
		c.Knockback = c.Pos.Sub(d.Pos).Normalize().Scale(t.DeviceKnockback)
		s.burst(w, c.Pos, ColorBlood, 10, 5)
		if c.HP <= 0 {
			c.HP = 0
			c.Active = false
			w.Shake += 10
		}
		w.Combatants[id] = c
		if !c.Active && d.OwnerID != id {
			if owner, ok := w.Combatants[d.OwnerID]; ok {
				owner.Kills++
				w.Combatants[d.OwnerID] = owner
			}
		}
	}
}
