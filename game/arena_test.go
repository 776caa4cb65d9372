package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func wallArena() *Arena {
	return NewArena(DefaultTuning(), []Obstacle{
		{ID: "pond", Kind: ObstacleWater, Rect: Rect{X: 1100, Y: 900, W: 200, H: 200}},
		{ID: "fence", Kind: ObstacleFence, Rect: Rect{X: 500, Y: 500, W: 200, H: 200}},
	})
}

func TestArenaCollidesOnlyWithWater(t *testing.T) {
	a := wallArena()
	assert.True(t, a.Collides(Vec2{1090, 1000}, 16))
	assert.True(t, a.Collides(Vec2{1200, 1000}, 16))
	assert.False(t, a.Collides(Vec2{1080, 1000}, 16))
	assert.False(t, a.Collides(Vec2{1084, 1000}, 16), "touching is not overlapping")
	assert.False(t, a.Collides(Vec2{600, 600}, 16), "fences are traversable")
}

func TestArenaMatchesBruteForce(t *testing.T) {
	tu := DefaultTuning()
	rng := testRand()
	obstacles := GenerateObstacles(tu, rng)
	a := NewArena(tu, obstacles)

	for i := 0; i < 2000; i++ {
		inset := tu.Margin + tu.Radius
		p := Vec2{
			inset + rng.Float64()*(tu.WorldWidth-2*inset),
			inset + rng.Float64()*(tu.WorldHeight-2*inset),
		}
		want := false
		for _, o := range obstacles {
			if o.Blocks() && CircleRectOverlap(p, tu.Radius, o.Rect) {
				want = true
				break
			}
		}
		assert.Equal(t, want, a.Collides(p, tu.Radius), "point %+v", p)
	}
}

func TestArenaMoveSlidesAlongWall(t *testing.T) {
	a := wallArena()
	cur := Vec2{1080, 1000}

	// Heading into the pond's left face diagonally keeps only the vertical part.
	got := a.Move(cur, Vec2{1090, 1010}, 16)
	assert.Equal(t, Vec2{1080, 1010}, got)

	// Straight into the wall goes nowhere.
	got = a.Move(cur, Vec2{1090, 1000}, 16)
	assert.Equal(t, cur, got)
}

func TestArenaMoveSlidesFromContact(t *testing.T) {
	a := wallArena()
	// Resting exactly against the pond's left face.
	cur := Vec2{1084, 1000}

	got := a.Move(cur, Vec2{1090, 1010}, 16)
	assert.Equal(t, Vec2{1084, 1010}, got)
}

func TestArenaMoveNeverCommitsBlockedCorner(t *testing.T) {
	a := wallArena()
	// Up and left of the pond's top-left corner; each axis alone is clear but
	// the diagonal clips the corner.
	cur := Vec2{1080, 880}
	cand := Vec2{1094, 894}
	assert.False(t, a.Collides(Vec2{cand.X, cur.Y}, 16))
	assert.False(t, a.Collides(Vec2{cur.X, cand.Y}, 16))
	assert.True(t, a.Collides(cand, 16))

	got := a.Move(cur, cand, 16)
	assert.NotEqual(t, cand, got)
	assert.False(t, a.Collides(got, 16))
	assert.Equal(t, Vec2{1094, 880}, got)
}

func TestArenaClampsToBounds(t *testing.T) {
	tu := DefaultTuning()
	a := NewArena(tu, nil)
	got := a.Move(Vec2{200, 200}, Vec2{-500, 5000}, 16)
	assert.Equal(t, Vec2{tu.Margin + 16, tu.WorldHeight - tu.Margin - 16}, got)
}
