package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io/fs"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/lafriks/go-tiled"
)

// NewRand returns a generator seeded from system entropy. Arena layouts are
// meant to differ every match.
func NewRand() *rand.Rand {
	var seed [16]byte
	crand.Read(seed[:])
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:])))
}

// GenerateObstacles scatters t.ObstacleCount candidate rectangles over the
// playable area and keeps those clear of both spawn anchors. Rejected
// candidates are not retried, so the result usually holds fewer obstacles than
// requested. Accepted obstacles may overlap each other.
func GenerateObstacles(t Tuning, rng *rand.Rand) []Obstacle {
	anchors := t.SpawnAnchors()
	out := make([]Obstacle, 0, t.ObstacleCount)
	for i := 0; i < t.ObstacleCount; i++ {
		w := t.ObstacleMinSize + rng.Float64()*(t.ObstacleMaxSize-t.ObstacleMinSize)
		h := t.ObstacleMinSize + rng.Float64()*(t.ObstacleMaxSize-t.ObstacleMinSize)
		x := t.Margin + rng.Float64()*(t.WorldWidth-2*t.Margin-w)
		y := t.Margin + rng.Float64()*(t.WorldHeight-2*t.Margin-h)
		kind := ObstacleFence
		if rng.Float64() < t.WaterChance {
			kind = ObstacleWater
		}
		r := Rect{X: x, Y: y, W: w, H: h}
		if nearSpawn(r, anchors, t.SpawnSafeRadius) {
			continue
		}
		out = append(out, Obstacle{ID: fmt.Sprintf("ob-%d", i), Kind: kind, Rect: r})
	}
	return out
}

func nearSpawn(r Rect, anchors [2]Vec2, safe float64) bool {
	c := r.Center()
	reach := safe + math.Max(r.W, r.H)/2
	for _, a := range anchors {
		if c.Dist(a) < reach {
			return true
		}
	}
	return false
}

// LoadArenaTMX reads an authored arena from a Tiled map. Every object in an
// object group named "water" or "fence" becomes an obstacle of that kind; an
// object's "kind" string property overrides its group.
func LoadArenaTMX(fsys fs.FS, path string) ([]Obstacle, error) {
	m, err := tiled.LoadFile(path, tiled.WithFileSystem(fsys))
	if err != nil {
		return nil, fmt.Errorf("load arena %s: %w", path, err)
	}

	var out []Obstacle
	for _, og := range m.ObjectGroups {
		for _, o := range og.Objects {
			name := o.Properties.GetString("kind")
			if name == "" {
				name = og.Name
			}
			var kind ObstacleKind
			switch strings.ToLower(name) {
			case "water":
				kind = ObstacleWater
			case "fence":
				kind = ObstacleFence
			default:
				continue
			}
			if o.Width <= 0 || o.Height <= 0 {
				return nil, fmt.Errorf("arena %s: object %d has no area", path, o.ID)
			}
			out = append(out, Obstacle{
				ID:   fmt.Sprintf("tmx-%d", o.ID),
				Kind: kind,
				Rect: Rect{X: o.X, Y: o.Y, W: o.Width, H: o.Height},
			})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("arena %s: no water or fence objects", path)
	}
	return out, nil
}
