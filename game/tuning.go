package game

import "math"

// Tuning holds every gameplay constant. All values are fixed for the lifetime
// of a Simulator; durations are in seconds, distances in world units.
type Tuning struct {
	WorldWidth  float64
	WorldHeight float64
	Margin      float64
	TickRate    int

	MaxHP        int
	Radius       float64
	Speed        float64
	BlockSpeedK  float64 // speed multiplier while blocking
	AttackSpeedK float64 // speed multiplier while swinging

	StrikeDamage   int
	StrikeRange    float64
	StrikeArc      float64
	StrikeCooldown float64
	SwingDuration  float64
	SwingTangent   float64 // weight of the swing direction in strike knockback

	BlockArc  float64
	BlockPush float64

	DodgeSpeed    float64
	DodgeDuration float64
	DodgeCooldown float64

	KnockbackForce float64
	KnockbackDecay float64
	KnockbackSnap  float64

	DeviceFuse      float64
	DeviceDamage    int
	DeviceRadius    float64 // blast radius
	DeviceKnockback float64
	DeviceCooldown  float64
	DeviceOffset    float64
	DeviceSize      float64

	PassiveForce  float64
	PassiveArc    float64 // half-width of the cone around the blade
	PassiveOffset float64 // arc centre relative to facing
	PassiveRangeK float64 // fraction of StrikeRange

	ObstacleCount   int
	ObstacleMinSize float64
	ObstacleMaxSize float64
	WaterChance     float64
	SpawnGap        float64 // horizontal distance of each spawn anchor from the centre
	SpawnSafeRadius float64
	SpawnOffset     float64 // distance of the first two spawns from the centre
}

// DefaultTuning returns the stock arena tuning.
func DefaultTuning() Tuning {
	return Tuning{
		WorldWidth:  4000,
		WorldHeight: 3000,
		Margin:      96,
		TickRate:    60,

		MaxHP:        100,
		Radius:       16,
		Speed:        150,
		BlockSpeedK:  0.4,
		AttackSpeedK: 0.2,

		StrikeDamage:   25,
		StrikeRange:    200,
		StrikeArc:      math.Pi / 1.5,
		StrikeCooldown: 0.6,
		SwingDuration:  0.2,
		SwingTangent:   0.6,

		BlockArc:  math.Pi / 1.2,
		BlockPush: 400,

		DodgeSpeed:    1200,
		DodgeDuration: 0.5,
		DodgeCooldown: 5.0,

		KnockbackForce: 1800,
		KnockbackDecay: 0.9,
		KnockbackSnap:  5,

		DeviceFuse:      1.6,
		DeviceDamage:    50,
		DeviceRadius:    250,
		DeviceKnockback: 3000,
		DeviceCooldown:  5,
		DeviceOffset:    40,
		DeviceSize:      12,

		PassiveForce:  60,
		PassiveArc:    math.Pi / 5,
		PassiveOffset: math.Pi / 4,
		PassiveRangeK: 0.9,

		ObstacleCount:   40,
		ObstacleMinSize: 100,
		ObstacleMaxSize: 300,
		WaterChance:     0.4,
		SpawnGap:        200,
		SpawnSafeRadius: 400,
		SpawnOffset:     300,
	}
}

// DT is the fixed simulation delta.
func (t Tuning) DT() float64 { return 1 / float64(t.TickRate) }

// Bounds is the whole world rectangle.
func (t Tuning) Bounds() Rect { return Rect{W: t.WorldWidth, H: t.WorldHeight} }

// SpawnAnchors are the two points kept clear of obstacles.
func (t Tuning) SpawnAnchors() [2]Vec2 {
	cy := t.WorldHeight / 2
	return [2]Vec2{
		{t.WorldWidth/2 - t.SpawnGap, cy},
		{t.WorldWidth/2 + t.SpawnGap, cy},
	}
}
