package game

import (
	"math"
	"sort"
)

// Status is the match phase.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in-progress"
	StatusConcluded  Status = "concluded"
)

// Combatant is one participant's fighter. Keys in WorldState.Combatants are
// the network identity of the participant and equal ID.
type Combatant struct {
	ID     string  `msgpack:"id" json:"id"`
	Slot   int     `msgpack:"sl" json:"slot"`
	Pos    Vec2    `msgpack:"p" json:"pos"`
	Vel    Vec2    `msgpack:"v" json:"vel"`
	Facing float64 `msgpack:"f" json:"facing"`
	Radius float64 `msgpack:"r" json:"radius"`
	HP     int     `msgpack:"hp" json:"hp"`
	MaxHP  int     `msgpack:"mhp" json:"maxHp"`
	Active bool    `msgpack:"a" json:"active"`
	Kills  int     `msgpack:"k" json:"kills"`

	Blocking       bool    `msgpack:"bl" json:"blocking"`
	Attacking      bool    `msgpack:"at" json:"attacking"`
	SwingTimer     float64 `msgpack:"st" json:"swingTimer"`
	AttackCooldown float64 `msgpack:"ac" json:"attackCooldown"`
	Dodging        bool    `msgpack:"dg" json:"dodging"`
	DodgeTimer     float64 `msgpack:"dt" json:"dodgeTimer"`
	DodgeCooldown  float64 `msgpack:"dc" json:"dodgeCooldown"`
	Knockback      Vec2    `msgpack:"kb" json:"knockback"`
	DeviceCooldown float64 `msgpack:"bc" json:"deviceCooldown"`
}

// ObstacleKind tells impassable terrain from decoration.
type ObstacleKind uint8

const (
	ObstacleFence ObstacleKind = iota // decorative, traversable
	ObstacleWater                     // impassable
)

func (k ObstacleKind) String() string {
	if k == ObstacleWater {
		return "water"
	}
	return "fence"
}

// Obstacle is a static arena rectangle. Obstacles never change during a match.
type Obstacle struct {
	ID   string       `msgpack:"id" json:"id"`
	Kind ObstacleKind `msgpack:"t" json:"kind"`
	Rect Rect         `msgpack:"r" json:"rect"`
}

// Blocks reports whether combatants collide with the obstacle.
func (o Obstacle) Blocks() bool { return o.Kind == ObstacleWater }

// Device is a placed explosive. It does not move.
type Device struct {
	ID      string  `msgpack:"id" json:"id"`
	OwnerID string  `msgpack:"o" json:"ownerId"`
	Pos     Vec2    `msgpack:"p" json:"pos"`
	Fuse    float64 `msgpack:"fu" json:"fuse"`
	Radius  float64 `msgpack:"r" json:"radius"`
}

// EffectColor tags the cue an effect belongs to.
type EffectColor uint8

const (
	ColorBlood EffectColor = iota
	ColorShield
	ColorExplosion
	ColorDodge
)

// Effect is a cosmetic particle. Gameplay never reads effects.
type Effect struct {
	Pos    Vec2        `msgpack:"p" json:"pos"`
	Vel    Vec2        `msgpack:"v" json:"vel"`
	Life   float64     `msgpack:"l" json:"life"`
	Decay  float64     `msgpack:"d" json:"decay"`
	Radius float64     `msgpack:"r" json:"radius"`
	Color  EffectColor `msgpack:"c" json:"color"`
}

// Entity is the closed set of things that live in a WorldState:
// Combatant, Device, Obstacle and Effect.
type Entity interface {
	entity()
}

func (Combatant) entity() {}
func (Device) entity() {}
func (Obstacle) entity() {}
func (Effect) entity() {}

// WorldState is the full authoritative match state. It is a value: Step
// returns a new one and never mutates its input.
type WorldState struct {
	Tick       uint64               `msgpack:"n" json:"tick"`
	Status     Status               `msgpack:"s" json:"status"`
	Winner     string               `msgpack:"w,omitempty" json:"winner,omitempty"`
	Combatants map[string]Combatant `msgpack:"c" json:"combatants"`
	Devices    []Device             `msgpack:"d" json:"devices"`
	Effects    []Effect             `msgpack:"e" json:"effects"`
	Obstacles  []Obstacle           `msgpack:"o" json:"obstacles"`
	Shake      float64              `msgpack:"sh" json:"shake"`
}

// NewWorldState returns an empty lobby over the given arena.
func NewWorldState(obstacles []Obstacle) WorldState {
	return WorldState{
		Status:     StatusWaiting,
		Combatants: make(map[string]Combatant),
		Obstacles:  obstacles,
	}
}

// Clone returns a deep copy. Obstacles are shared since they are immutable.
func (w WorldState) Clone() WorldState {
	out := w
	out.Combatants = make(map[string]Combatant, len(w.Combatants))
	for k, c := range w.Combatants {
		out.Combatants[k] = c
	}
	out.Devices = append([]Device(nil), w.Devices...)
	out.Effects = append([]Effect(nil), w.Effects...)
	return out
}

// IDs returns combatant keys in sorted order.
func (w WorldState) IDs() []string {
	ids := make([]string, 0, len(w.Combatants))
	for id := range w.Combatants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ActiveCount returns the number of combatants still in the fight.
func (w WorldState) ActiveCount() int {
	n := 0
	for _, c := range w.Combatants {
		if c.Active {
			n++
		}
	}
	return n
}

// Entities lists everything a renderer should draw, back to front.
// Inactive combatants are omitted.
func (w WorldState) Entities() []Entity {
	out := make([]Entity, 0, len(w.Obstacles)+len(w.Devices)+len(w.Combatants)+len(w.Effects))
	for _, o := range w.Obstacles {
		out = append(out, o)
	}
	for _, d := range w.Devices {
		out = append(out, d)
	}
	for _, id := range w.IDs() {
		if c := w.Combatants[id]; c.Active {
			out = append(out, c)
		}
	}
	for _, e := range w.Effects {
		out = append(out, e)
	}
	return out
}

// NewCombatant creates a fighter at the spawn point for slot.
func NewCombatant(t Tuning, id string, slot int) Combatant {
	pos, facing := SpawnPoint(t, slot)
	return Combatant{
		ID:     id,
		Slot:   slot,
		Pos:    pos,
		Facing: facing,
		Radius: t.Radius,
		HP:     t.MaxHP,
		MaxHP:  t.MaxHP,
		Active: true,
	}
}

// SpawnPoint returns position and facing for a slot. Slot 0 starts left of
// centre facing right, slot 1 right of centre facing left; further slots
// alternate sides and stack vertically.
func SpawnPoint(t Tuning, slot int) (Vec2, float64) {
	cx, cy := t.WorldWidth/2, t.WorldHeight/2
	side, row := slot%2, slot/2
	dy := float64((row+1)/2) * 120
	if row%2 == 1 {
		dy = -dy
	}
	if side == 0 {
		return Vec2{cx - t.SpawnOffset, cy + dy}, 0
	}
	return Vec2{cx + t.SpawnOffset, cy + dy}, math.Pi
}

// NextSlot returns the lowest slot not used by any combatant.
func NextSlot(w WorldState) int {
	used := make(map[int]bool, len(w.Combatants))
	for _, c := range w.Combatants {
		used[c.Slot] = true
	}
	slot := 0
	for used[slot] {
		slot++
	}
	return slot
}
