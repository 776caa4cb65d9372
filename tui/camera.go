package tui

import (
	"math"

	"github.com/IvanchikIvanov/newwave/game"
)

// World units per terminal cell. Cells are about twice as tall as wide.
const (
	DefaultScaleX = 16.0
	DefaultScaleY = 32.0
)

// Camera maps world coordinates onto a grid of terminal cells.
type Camera struct {
	Center game.Vec2
	Cols   int
	Rows   int
	ScaleX float64
	ScaleY float64
	World  game.Rect
}

func NewCamera(world game.Rect, cols, rows int) Camera {
	return Camera{
		Center: world.Center(),
		Cols:   cols,
		Rows:   rows,
		ScaleX: DefaultScaleX,
		ScaleY: DefaultScaleY,
		World:  world,
	}
}

// Follow centres the view on p, keeping it inside the world. An axis wider
// than the world stays centred on it.
func (c *Camera) Follow(p game.Vec2) {
	halfW := float64(c.Cols) * c.ScaleX / 2
	halfH := float64(c.Rows) * c.ScaleY / 2
	c.Center.X = follow(p.X, halfW, c.World.X, c.World.W)
	c.Center.Y = follow(p.Y, halfH, c.World.Y, c.World.H)
}

func follow(p, half, origin, extent float64) float64 {
	if 2*half >= extent {
		return origin + extent/2
	}
	return game.Clamp(p, origin+half, origin+extent-half)
}

func (c Camera) origin() game.Vec2 {
	return game.Vec2{
		X: c.Center.X - float64(c.Cols)*c.ScaleX/2,
		Y: c.Center.Y - float64(c.Rows)*c.ScaleY/2,
	}
}

// WorldToScreen returns the cell containing p. The result may lie off screen.
func (c Camera) WorldToScreen(p game.Vec2) (int, int) {
	o := c.origin()
	return int(math.Floor((p.X - o.X) / c.ScaleX)), int(math.Floor((p.Y - o.Y) / c.ScaleY))
}

// ScreenToWorld returns the world point at the centre of a cell.
func (c Camera) ScreenToWorld(x, y int) game.Vec2 {
	o := c.origin()
	return game.Vec2{
		X: o.X + (float64(x)+0.5)*c.ScaleX,
		Y: o.Y + (float64(y)+0.5)*c.ScaleY,
	}
}

// OnScreen reports whether a cell lies inside the grid.
func (c Camera) OnScreen(x, y int) bool {
	return x >= 0 && y >= 0 && x < c.Cols && y < c.Rows
}
