package game

import (
	"math"

	"github.com/solarlune/resolv"
)

const (
	tagWater  = "water"
	arenaCell = 64
)

// Arena answers movement queries against the world bounds and the impassable
// obstacles of one match. A resolv space buckets the obstacles so a query only
// runs the exact circle test against rectangles near the mover.
//
// Arena reuses a single probe object and is not safe for concurrent use.
type Arena struct {
	bounds Rect
	margin float64
	space  *resolv.Space
	probe  *resolv.Object
	rects  map[*resolv.Object]Rect
}

// NewArena indexes the blocking obstacles.
func NewArena(t Tuning, obstacles []Obstacle) *Arena {
	a := &Arena{
		bounds: t.Bounds(),
		margin: t.Margin,
		space:  resolv.NewSpace(cellSpan(t.WorldWidth), cellSpan(t.WorldHeight), arenaCell, arenaCell),
		rects:  make(map[*resolv.Object]Rect),
	}
	for _, o := range obstacles {
		if !o.Blocks() {
			continue
		}
		r := clipRect(o.Rect, a.bounds)
		if r.W <= 0 || r.H <= 0 {
			continue
		}
		obj := resolv.NewObject(r.X, r.Y, r.W, r.H, tagWater)
		obj.SetShape(resolv.NewRectangle(0, 0, r.W, r.H))
		a.space.Add(obj)
		a.rects[obj] = o.Rect
	}
	a.probe = resolv.NewObject(0, 0, 1, 1)
	a.space.Add(a.probe)
	return a
}

// Collides reports whether a circle at pos overlaps any impassable obstacle.
func (a *Arena) Collides(pos Vec2, radius float64) bool {
	if len(a.rects) == 0 {
		return false
	}
	// Inflate by one unit so rectangles the circle only grazes still land in
	// the candidate set; the exact test below decides.
	a.probe.X = pos.X - radius - 1
	a.probe.Y = pos.Y - radius - 1
	a.probe.W = 2*radius + 2
	a.probe.H = 2*radius + 2
	a.probe.Update()

	check := a.probe.Check(0, 0, tagWater)
	if check == nil {
		return false
	}
	for _, obj := range check.ObjectsByTags(tagWater) {
		if CircleRectOverlap(pos, radius, a.rects[obj]) {
			return true
		}
	}
	return false
}

// ClampToBounds keeps a circle inside the playable area.
func (a *Arena) ClampToBounds(p Vec2, radius float64) Vec2 {
	inset := a.margin + radius
	return Vec2{
		X: Clamp(p.X, a.bounds.X+inset, a.bounds.X+a.bounds.W-inset),
		Y: Clamp(p.Y, a.bounds.Y+inset, a.bounds.Y+a.bounds.H-inset),
	}
}

// Move returns where a circle travelling from cur towards cand ends up.
// The candidate is clamped to bounds; if it overlaps an obstacle each axis is
// tried on its own from cur and a free one is kept, which makes movers slide
// along walls. When both single-axis moves are free (a diagonal run into a
// corner) only the longer one is taken, since taking both is the blocked
// candidate.
func (a *Arena) Move(cur, cand Vec2, radius float64) Vec2 {
	cand = a.ClampToBounds(cand, radius)
	if !a.Collides(cand, radius) {
		return cand
	}
	alongX := Vec2{cand.X, cur.Y}
	alongY := Vec2{cur.X, cand.Y}
	freeX := !a.Collides(alongX, radius)
	freeY := !a.Collides(alongY, radius)
	switch {
	case freeX && freeY:
		if math.Abs(cand.Y-cur.Y) > math.Abs(cand.X-cur.X) {
			return alongY
		}
		return alongX
	case freeX:
		return alongX
	case freeY:
		return alongY
	}
	return cur
}

// cellSpan rounds a world extent up to a whole number of cells so the space
// covers the far edge.
func cellSpan(extent float64) int {
	return int(math.Ceil(extent/arenaCell)) * arenaCell
}

func clipRect(r, bounds Rect) Rect {
	x0 := Clamp(r.X, bounds.X, bounds.X+bounds.W)
	y0 := Clamp(r.Y, bounds.Y, bounds.Y+bounds.H)
	x1 := Clamp(r.X+r.W, bounds.X, bounds.X+bounds.W)
	y1 := Clamp(r.Y+r.H, bounds.Y, bounds.Y+bounds.H)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}
