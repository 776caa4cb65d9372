package game

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRand() *rand.Rand { return rand.New(rand.NewPCG(7, 11)) }

// newDuel puts two combatants 50 units apart on an open field, already
// fighting. IDs sort defender first, so the defender has acted before the
// striker swings.
func newDuel(t *testing.T) (*Simulator, WorldState) {
	t.Helper()
	tu := DefaultTuning()
	sim := NewSimulator(tu, nil, testRand())
	w := NewWorldState(nil)
	w.Status = StatusInProgress

	d := NewCombatant(tu, "defender", 0)
	d.Pos = Vec2{1000, 1000}
	s := NewCombatant(tu, "striker", 1)
	s.Pos = Vec2{1050, 1000}
	w.Combatants[d.ID] = d
	w.Combatants[s.ID] = s
	return sim, w
}

func strike(w WorldState) Intent {
	return Intent{Aim: w.Combatants["defender"].Pos, Attack: true}
}

func TestStrikeHitsUnguardedTarget(t *testing.T) {
	sim, w := newDuel(t)
	next := sim.Step(w, map[string]Intent{
		"defender": {Aim: w.Combatants["striker"].Pos},
		"striker":  strike(w),
	})

	d := next.Combatants["defender"]
	assert.Equal(t, 75, d.HP)
	assert.True(t, d.Active)
	assert.InDelta(t, sim.Tuning().KnockbackForce, d.Knockback.Len(), 1e-9)
	assert.True(t, next.Combatants["striker"].Attacking)
	assert.Equal(t, StatusInProgress, next.Status)
	assert.Greater(t, next.Shake, 0.0)
}

func TestStrikeKnockbackBendsToSwingSide(t *testing.T) {
	sim, w := newDuel(t)
	next := sim.Step(w, map[string]Intent{"striker": strike(w)})

	// Striker faces -X, so its right-hand side is -Y.
	kb := next.Combatants["defender"].Knockback
	assert.Less(t, kb.X, 0.0)
	assert.Less(t, kb.Y, 0.0)
}

func TestBlockedStrikePushesBoth(t *testing.T) {
	sim, w := newDuel(t)
	next := sim.Step(w, map[string]Intent{
		"defender": {Held: KeyBlock, Aim: w.Combatants["striker"].Pos},
		"striker":  strike(w),
	})

	d, s := next.Combatants["defender"], next.Combatants["striker"]
	assert.Equal(t, 100, d.HP)
	assert.True(t, d.Blocking)
	push := sim.Tuning().BlockPush
	assert.InDelta(t, push, d.Knockback.Len(), 1e-9)
	assert.InDelta(t, push, s.Knockback.Len(), 1e-9)
	assert.Less(t, d.Knockback.X, 0.0, "defender pushed away from striker")
	assert.Greater(t, s.Knockback.X, 0.0, "striker pushed away from defender")
}

func TestBlockFacingAwayDoesNotProtect(t *testing.T) {
	sim, w := newDuel(t)
	next := sim.Step(w, map[string]Intent{
		"defender": {Held: KeyBlock, Aim: Vec2{0, 1000}},
		"striker":  strike(w),
	})
	assert.Equal(t, 75, next.Combatants["defender"].HP)
}

func TestDodgingTargetIsImmune(t *testing.T) {
	sim, w := newDuel(t)
	next := sim.Step(w, map[string]Intent{
		"defender": {Held: KeyDodge | KeyUp, Aim: w.Combatants["striker"].Pos},
		"striker":  strike(w),
	})

	d := next.Combatants["defender"]
	require.True(t, d.Dodging)
	assert.Equal(t, 100, d.HP)
	assert.True(t, d.Knockback.IsZero())
	assert.InDelta(t, sim.Tuning().DodgeCooldown, d.DodgeCooldown, 1e-9)
}

func TestStrikeOutOfArcMisses(t *testing.T) {
	sim, w := newDuel(t)
	next := sim.Step(w, map[string]Intent{
		"striker": {Aim: Vec2{1050, 0}, Attack: true},
	})
	assert.Equal(t, 100, next.Combatants["defender"].HP)
}

func TestLethalStrikeConcludesMatch(t *testing.T) {
	sim, w := newDuel(t)
	d := w.Combatants["defender"]
	d.HP = 25
	w.Combatants["defender"] = d

	next := sim.Step(w, map[string]Intent{"striker": strike(w)})

	d = next.Combatants["defender"]
	assert.False(t, d.Active)
	assert.Equal(t, 0, d.HP)
	assert.Equal(t, StatusConcluded, next.Status)
	assert.Equal(t, "striker", next.Winner)
	assert.Equal(t, 1, next.Combatants["striker"].Kills)

	// A concluded match no longer advances.
	again := sim.Step(next, nil)
	assert.Equal(t, next.Tick, again.Tick)
}

func TestStepIsNoopOutsidePlay(t *testing.T) {
	sim, w := newDuel(t)
	w.Status = StatusWaiting
	next := sim.Step(w, map[string]Intent{"striker": strike(w)})
	if diff := cmp.Diff(w, next); diff != "" {
		t.Errorf("waiting state changed (-want +got):\n%s", diff)
	}
}

func TestStepLeavesInputUntouched(t *testing.T) {
	sim, w := newDuel(t)
	before := w.Clone()
	_ = sim.Step(w, map[string]Intent{"striker": strike(w)})
	if diff := cmp.Diff(before, w); diff != "" {
		t.Errorf("Step mutated its input (-want +got):\n%s", diff)
	}
}

func TestPassiveContactPushesWithoutDamage(t *testing.T) {
	tu := DefaultTuning()
	deg := math.Pi / 180

	// The idle blade rests 45 degrees off the holder's facing (+X) and pushes
	// anything within PassiveArc (36 degrees) of it.
	tests := []struct {
		name   string
		offset float64
		pushed bool
	}{
		{"on the blade", 0, true},
		{"well inside", 27 * deg, true},
		{"just inside", 35 * deg, true},
		{"just inside, other side", -35 * deg, true},
		{"just outside", 37 * deg, false},
		{"just outside, other side", -37 * deg, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewSimulator(tu, nil, testRand())
			w := NewWorldState(nil)
			w.Status = StatusInProgress

			holder := NewCombatant(tu, "z", 0)
			holder.Pos = Vec2{1000, 1000}
			target := NewCombatant(tu, "m", 1)
			target.Pos = holder.Pos.Add(FromAngle(math.Pi/4 + tt.offset).Scale(100))
			w.Combatants[holder.ID] = holder
			w.Combatants[target.ID] = target

			next := sim.Step(w, map[string]Intent{
				"z": {Aim: Vec2{2000, 1000}},
				"m": {Aim: holder.Pos},
			})

			got := next.Combatants["m"]
			assert.Equal(t, 100, got.HP)
			if tt.pushed {
				assert.InDelta(t, tu.PassiveForce, got.Knockback.Len(), 1e-9)
			} else {
				assert.True(t, got.Knockback.IsZero(), "knockback %+v", got.Knockback)
			}
		})
	}
}

func countEffects(w WorldState, color EffectColor) int {
	n := 0
	for _, e := range w.Effects {
		if e.Color == color {
			n++
		}
	}
	return n
}

func TestStrikeCues(t *testing.T) {
	sim, w := newDuel(t)
	next := sim.Step(w, map[string]Intent{"striker": strike(w)})
	assert.Equal(t, 10.0, next.Shake)
	assert.Equal(t, 10, countEffects(next, ColorBlood))

	// A lethal hit shows the hit cue and the kill cue on top of it.
	sim, w = newDuel(t)
	d := w.Combatants["defender"]
	d.HP = 25
	w.Combatants["defender"] = d
	next = sim.Step(w, map[string]Intent{"striker": strike(w)})
	require.False(t, next.Combatants["defender"].Active)
	assert.Equal(t, 30.0, next.Shake)
	assert.Equal(t, 30, countEffects(next, ColorBlood))
}

func TestDodgeTrailEmittedOnce(t *testing.T) {
	sim, w := newDuel(t)
	dodge := map[string]Intent{"defender": {Held: KeyDodge | KeyLeft}}

	w = sim.Step(w, dodge)
	require.True(t, w.Combatants["defender"].Dodging)
	assert.Equal(t, 3, countEffects(w, ColorDodge))

	w = sim.Step(w, dodge)
	require.True(t, w.Combatants["defender"].Dodging)
	assert.Equal(t, 3, countEffects(w, ColorDodge), "no new trail while the dodge runs")
}

func TestDeviceDetonatesAfterFuse(t *testing.T) {
	tu := DefaultTuning()
	sim := NewSimulator(tu, nil, testRand())
	w := NewWorldState(nil)
	w.Status = StatusInProgress

	owner := NewCombatant(tu, "a", 0)
	owner.Pos = Vec2{1000, 1000}
	other := NewCombatant(tu, "b", 1)
	other.Pos = Vec2{1100, 1040}
	w.Combatants[owner.ID] = owner
	w.Combatants[other.ID] = other

	// Facing straight down drops the device at (1000, 1040).
	w = sim.Step(w, map[string]Intent{"a": {Aim: Vec2{1000, 1100}, Device: true}})
	require.Len(t, w.Devices, 1)
	assert.Equal(t, Vec2{1000, 1040}, w.Devices[0].Pos)
	assert.Equal(t, "a", w.Devices[0].OwnerID)

	fuseTicks := int(math.Round(tu.DeviceFuse * float64(tu.TickRate)))
	for i := 2; i < fuseTicks; i++ {
		w = sim.Step(w, nil)
	}
	require.Len(t, w.Devices, 1, "device must not detonate before its fuse runs out")
	assert.Equal(t, 100, w.Combatants["a"].HP)
	assert.Equal(t, 100, w.Combatants["b"].HP)

	w = sim.Step(w, nil)
	assert.Empty(t, w.Devices)
	assert.Equal(t, 50, w.Combatants["a"].HP)
	assert.Equal(t, 50, w.Combatants["b"].HP)
	assert.InDelta(t, tu.DeviceKnockback, w.Combatants["b"].Knockback.Len(), 1e-9)

	// Detonation happens once.
	w = sim.Step(w, nil)
	assert.Equal(t, 50, w.Combatants["b"].HP)
}

func TestDeviceSparesDodgers(t *testing.T) {
	tu := DefaultTuning()
	sim := NewSimulator(tu, nil, testRand())
	w := NewWorldState(nil)
	w.Status = StatusInProgress

	a := NewCombatant(tu, "a", 0)
	a.Pos = Vec2{1000, 1000}
	b := NewCombatant(tu, "b", 1)
	b.Pos = Vec2{1100, 1000}
	b.Dodging = true
	b.DodgeTimer = 10
	w.Combatants[a.ID] = a
	w.Combatants[b.ID] = b
	w.Devices = []Device{{ID: "d", OwnerID: "a", Pos: Vec2{1050, 1000}, Fuse: 1e-3}}

	next := sim.Step(w, nil)
	assert.Empty(t, next.Devices)
	assert.Equal(t, 100, next.Combatants["b"].HP)
	assert.Equal(t, 50, next.Combatants["a"].HP)
}

func TestMutualBlastIsDraw(t *testing.T) {
	tu := DefaultTuning()
	sim := NewSimulator(tu, nil, testRand())
	w := NewWorldState(nil)
	w.Status = StatusInProgress
	for i, id := range []string{"a", "b"} {
		c := NewCombatant(tu, id, i)
		c.Pos = Vec2{1000 + float64(i)*50, 1000}
		c.HP = 40
		w.Combatants[id] = c
	}
	w.Devices = []Device{{ID: "d", OwnerID: "a", Pos: Vec2{1025, 1000}, Fuse: 1e-3}}

	next := sim.Step(w, nil)
	assert.Equal(t, 0, next.ActiveCount())
	assert.Equal(t, StatusConcluded, next.Status)
	assert.Empty(t, next.Winner)
}

func TestKnockbackDecaysToZero(t *testing.T) {
	tu := DefaultTuning()
	sim := NewSimulator(tu, nil, testRand())
	w := NewWorldState(nil)
	w.Status = StatusInProgress
	for i, id := range []string{"a", "b"} {
		c := NewCombatant(tu, id, i)
		w.Combatants[id] = c
	}
	a := w.Combatants["a"]
	a.Knockback = Vec2{100, 0}
	w.Combatants["a"] = a

	prev := 100.0
	for i := 0; i < 200; i++ {
		w = sim.Step(w, nil)
		kb := w.Combatants["a"].Knockback.X
		if kb == 0 {
			assert.Less(t, prev*tu.KnockbackDecay, tu.KnockbackSnap)
			break
		}
		assert.InDelta(t, prev*tu.KnockbackDecay, kb, 1e-9)
		prev = kb
	}
	require.Zero(t, w.Combatants["a"].Knockback.X)

	w = sim.Step(w, nil)
	assert.True(t, w.Combatants["a"].Knockback.IsZero())
}

func TestMovementSlowedWhileBlocking(t *testing.T) {
	sim, w := newDuel(t)
	next := sim.Step(w, map[string]Intent{
		"defender": {Held: KeyUp | KeyBlock, Aim: Vec2{1000, 0}},
	})
	tu := sim.Tuning()
	assert.InDelta(t, tu.Speed*tu.BlockSpeedK, next.Combatants["defender"].Vel.Len(), 1e-9)
}

func TestDodgeNeedsMovementKey(t *testing.T) {
	sim, w := newDuel(t)
	next := sim.Step(w, map[string]Intent{"defender": {Held: KeyDodge}})
	assert.False(t, next.Combatants["defender"].Dodging)

	next = sim.Step(w, map[string]Intent{"defender": {Held: KeyDodge | KeyLeft}})
	d := next.Combatants["defender"]
	require.True(t, d.Dodging)
	assert.InDelta(t, -sim.Tuning().DodgeSpeed, d.Vel.X, 1e-9)
}

func TestMissingIntentDefaultsToIdle(t *testing.T) {
	sim, w := newDuel(t)
	next := sim.Step(w, map[string]Intent{})
	for _, id := range []string{"defender", "striker"} {
		c := next.Combatants[id]
		assert.True(t, c.Vel.IsZero(), id)
		assert.False(t, c.Attacking || c.Blocking || c.Dodging, id)
	}
}

// TestRandomPlayStaysConsistent drives several combatants with random intents and
// checks the properties that must hold on every tick.
func TestRandomPlayStaysConsistent(t *testing.T) {
	tu := DefaultTuning()
	rng := testRand()
	obstacles := GenerateObstacles(tu, rng)
	sim := NewSimulator(tu, obstacles, rng)
	arena := NewArena(tu, obstacles)

	w := NewWorldState(obstacles)
	for i, id := range []string{"a", "b", "c", "d"} {
		w, _ = Join(w, tu, id)
		c := w.Combatants[id]
		c.Pos = Vec2{1800 + float64(i%2)*120, 1400 + float64(i/2)*120}
		w.Combatants[id] = c
	}
	w, err := Start(w)
	require.NoError(t, err)

	hpSum := func(w WorldState) int {
		n := 0
		for _, c := range w.Combatants {
			if c.Active {
				n += c.HP
			}
		}
		return n
	}

	for tick := 0; tick < 1200 && w.Status == StatusInProgress; tick++ {
		intents := make(map[string]Intent)
		for id, c := range w.Combatants {
			intents[id] = Intent{
				Held:   Keys(rng.IntN(64)),
				Aim:    c.Pos.Add(Vec2{rng.Float64()*400 - 200, rng.Float64()*400 - 200}),
				Attack: rng.IntN(3) == 0,
				Device: rng.IntN(40) == 0,
			}
		}
		before := hpSum(w)
		next := sim.Step(w, intents)
		require.LessOrEqual(t, hpSum(next), before, "tick %d", tick)

		for id, c := range next.Combatants {
			flags := 0
			for _, f := range []bool{c.Attacking, c.Dodging, c.Blocking} {
				if f {
					flags++
				}
			}
			require.LessOrEqual(t, flags, 1, "%s on tick %d", id, tick)
			require.GreaterOrEqual(t, c.HP, 0)
			if !c.Active {
				continue
			}
			if !arena.Collides(w.Combatants[id].Pos, c.Radius) {
				require.False(t, arena.Collides(c.Pos, c.Radius), "%s walked into water on tick %d", id, tick)
			}
		}
		w = next
	}
}
