package game

// Keys is the set of held movement and action keys.
type Keys uint8

const (
	KeyUp Keys = 1 << iota
	KeyDown
	KeyLeft
	KeyRight
	KeyBlock
	KeyDodge

	moveKeys = KeyUp | KeyDown | KeyLeft | KeyRight
)

func (k Keys) Has(key Keys) bool { return k&key != 0 }

// Moving reports whether any directional key is held.
func (k Keys) Moving() bool { return k&moveKeys != 0 }

// Direction returns the normalised movement direction of the held keys.
// Opposite keys cancel out.
func (k Keys) Direction() Vec2 {
	var d Vec2
	if k.Has(KeyUp) {
		d.Y--
	}
	if k.Has(KeyDown) {
		d.Y++
	}
	if k.Has(KeyLeft) {
		d.X--
	}
	if k.Has(KeyRight) {
		d.X++
	}
	return d.Normalize()
}

// Intent is one participant's input for the upcoming tick.
type Intent struct {
	Held   Keys `msgpack:"k" json:"keys"`
	Aim    Vec2 `msgpack:"a" json:"aim"`
	Attack bool `msgpack:"m" json:"attack"`
	Device bool `msgpack:"b" json:"device"`
}

// idleIntent stands in for a participant whose input has not arrived yet:
// nothing held, aiming at its own position.
func idleIntent(c Combatant) Intent {
	return Intent{Aim: c.Pos}
}
