package tui

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/IvanchikIvanov/newwave/game"
)

// View is what the renderer shows besides the world itself.
type View struct {
	LocalID string
	Role    string
	Peer    string
	Status  game.Status
	Players int
	Active  int
	Winner  string
	Menu    bool
	Error   string
	Invite  string
}

var (
	styleDefault  = tcell.StyleDefault
	styleHUD      = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver)
	styleError    = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorMaroon)
	styleWater    = tcell.StyleDefault.Foreground(tcell.ColorAqua).Background(tcell.ColorNavy)
	styleFence    = tcell.StyleDefault.Foreground(tcell.ColorOlive)
	styleSelf     = tcell.StyleDefault.Foreground(tcell.ColorLime).Bold(true)
	styleOther    = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleBlocking = tcell.StyleDefault.Foreground(tcell.ColorBlue).Bold(true)
	styleDodging  = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleSwing    = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleDevice   = tcell.StyleDefault.Foreground(tcell.ColorFuchsia).Bold(true)
	styleBorder   = tcell.StyleDefault.Foreground(tcell.ColorDarkGray)
)

var effectStyles = map[game.EffectColor]tcell.Style{
	game.ColorBlood:     tcell.StyleDefault.Foreground(tcell.ColorRed),
	game.ColorShield:    tcell.StyleDefault.Foreground(tcell.ColorAqua),
	game.ColorExplosion: tcell.StyleDefault.Foreground(tcell.ColorOrange),
	game.ColorDodge:     tcell.StyleDefault.Foreground(tcell.ColorGray),
}

// Screen renders world snapshots to a terminal and collects the local
// player's input from it.
type Screen struct {
	scr     tcell.Screen
	actions chan Action
	now     func() time.Time

	mu        sync.Mutex
	cam       Camera
	localPos  game.Vec2
	lastDir   game.Vec2
	held      map[game.Keys]time.Time
	attackAt  time.Time
	deviceAt  time.Time
	mouseSeen bool
	mouseX    int
	mouseY    int
	buttons   tcell.ButtonMask
}

// NewScreen initialises scr and takes it over until Fini.
func NewScreen(scr tcell.Screen, world game.Rect) (*Screen, error) {
	if err := scr.Init(); err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}
	scr.EnableMouse(tcell.MouseMotionEvents)
	scr.HideCursor()
	cols, rows := scr.Size()
	return &Screen{
		scr:     scr,
		actions: make(chan Action, 8),
		now:     time.Now,
		cam:     NewCamera(world, cols, rows-2),
		lastDir: game.Vec2{X: 1},
		held:    make(map[game.Keys]time.Time),
	}, nil
}

// Listen polls terminal events until Fini.
func (s *Screen) Listen() {
	go func() {
		for {
			ev := s.scr.PollEvent()
			if ev == nil {
				return
			}
			s.handleEvent(ev)
		}
	}()
}

// Fini restores the terminal.
func (s *Screen) Fini() {
	s.scr.Fini()
}

// Render draws one frame: the world below a status line and above a help or
// error line.
func (s *Screen) Render(w game.WorldState, v View) {
	cols, rows := s.scr.Size()
	s.scr.Clear()

	local, hasLocal := w.Combatants[v.LocalID]
	s.mu.Lock()
	s.cam.Cols, s.cam.Rows = cols, max(rows-2, 0)
	if hasLocal {
		s.localPos = local.Pos
		s.cam.Follow(local.Pos)
	}
	cam := s.cam
	s.mu.Unlock()

	if w.Shake > 0 {
		jitter := 1.0
		if w.Tick%2 == 0 {
			jitter = -1
		}
		cam.Center.X += jitter * math.Min(w.Shake, 3) * cam.ScaleX / 3
	}

	if !v.Menu {
		s.drawBorder(cam)
		for _, e := range w.Entities() {
			switch e := e.(type) {
			case game.Obstacle:
				s.drawObstacle(cam, e)
			case game.Device:
				s.drawDevice(cam, e, w.Tick)
			case game.Combatant:
				s.drawCombatant(cam, e, e.ID == v.LocalID)
			case game.Effect:
				s.drawEffect(cam, e)
			}
		}
	}

	s.drawText(0, 0, cols, statusLine(w, v, local, hasLocal), styleHUD)
	if v.Error != "" {
		s.drawText(0, rows-1, cols, v.Error, styleError)
	} else {
		s.drawText(0, rows-1, cols, helpLine(v), styleHUD)
	}
	s.scr.Show()
}

func (s *Screen) put(cam Camera, x, y int, r rune, style tcell.Style) {
	if !cam.OnScreen(x, y) {
		return
	}
	s.scr.SetContent(x, y+1, r, nil, style)
}

func (s *Screen) drawBorder(cam Camera) {
	x0, y0 := cam.WorldToScreen(game.Vec2{X: cam.World.X, Y: cam.World.Y})
	x1, y1 := cam.WorldToScreen(game.Vec2{X: cam.World.X + cam.World.W, Y: cam.World.Y + cam.World.H})
	for x := x0; x <= x1; x++ {
		s.put(cam, x, y0, '-', styleBorder)
		s.put(cam, x, y1, '-', styleBorder)
	}
	for y := y0; y <= y1; y++ {
		s.put(cam, x0, y, '|', styleBorder)
		s.put(cam, x1, y, '|', styleBorder)
	}
}

func (s *Screen) drawObstacle(cam Camera, o game.Obstacle) {
	x0, y0 := cam.WorldToScreen(game.Vec2{X: o.Rect.X, Y: o.Rect.Y})
	x1, y1 := cam.WorldToScreen(game.Vec2{X: o.Rect.X + o.Rect.W, Y: o.Rect.Y + o.Rect.H})
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, cam.Cols-1), min(y1, cam.Rows-1)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if o.Blocks() {
				s.put(cam, x, y, '~', styleWater)
			} else if y == y0 || y == y1 || x == x0 || x == x1 {
				s.put(cam, x, y, '#', styleFence)
			}
		}
	}
}

func (s *Screen) drawDevice(cam Camera, d game.Device, tick uint64) {
	x, y := cam.WorldToScreen(d.Pos)
	r := '*'
	// Blink faster as the fuse burns down.
	period := uint64(2 + int(d.Fuse*10))
	if (tick/period)%2 == 1 {
		r = 'o'
	}
	s.put(cam, x, y, r, styleDevice)
}

func (s *Screen) drawCombatant(cam Camera, c game.Combatant, self bool) {
	x, y := cam.WorldToScreen(c.Pos)
	style := styleOther
	if self {
		style = styleSelf
	}
	body := '@'
	switch {
	case c.Dodging:
		style = styleDodging
	case c.Blocking:
		style, body = styleBlocking, '0'
	}
	s.put(cam, x, y, body, style)

	// Facing marker, or the blade while swinging.
	dx, dy := facingCell(c.Facing)
	mark, markStyle := facingRune(dx, dy), style
	if c.Attacking {
		mark, markStyle = '+', styleSwing
	}
	s.put(cam, x+dx, y+dy, mark, markStyle)
}

func (s *Screen) drawEffect(cam Camera, e game.Effect) {
	x, y := cam.WorldToScreen(e.Pos)
	r := '.'
	if e.Life > 0.6 {
		r = '*'
	}
	s.put(cam, x, y, r, effectStyles[e.Color])
}

func (s *Screen) drawText(x, y, width int, text string, style tcell.Style) {
	col := x
	for _, r := range text {
		if col >= x+width {
			break
		}
		s.scr.SetContent(col, y, r, nil, style)
		col++
	}
	for ; col < x+width; col++ {
		s.scr.SetContent(col, y, ' ', nil, style)
	}
}

// facingCell returns the neighbouring cell a heading points at.
func facingCell(facing float64) (int, int) {
	octant := int(math.Round(game.NormalizeAngle(facing)/(math.Pi/4))) & 7
	dirs := [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	d := dirs[octant]
	return d[0], d[1]
}

func facingRune(dx, dy int) rune {
	switch {
	case dy == 0:
		return '-'
	case dx == 0:
		return '|'
	case dx == dy:
		return '\\'
	}
	return '/'
}

func statusLine(w game.WorldState, v View, local game.Combatant, hasLocal bool) string {
	if v.Menu {
		return fmt.Sprintf(" %s | menu", v.Role)
	}
	line := fmt.Sprintf(" %s | %s | players %d active %d", v.Role, v.Status, v.Players, v.Active)
	if hasLocal {
		line += fmt.Sprintf(" | HP %d/%d kills %d", local.HP, local.MaxHP, local.Kills)
		if local.DodgeCooldown > 0 {
			line += fmt.Sprintf(" dodge %.1fs", local.DodgeCooldown)
		}
		if local.DeviceCooldown > 0 {
			line += fmt.Sprintf(" device %.1fs", local.DeviceCooldown)
		}
		if !local.Active && w.Status == game.StatusInProgress {
			line += " | down"
		}
	}
	switch {
	case w.Status == game.StatusConcluded && v.Winner == "":
		line += " | draw"
	case w.Status == game.StatusConcluded && v.Winner == v.LocalID:
		line += " | you win"
	case w.Status == game.StatusConcluded:
		line += " | winner " + v.Winner
	}
	return line
}

func helpLine(v View) string {
	switch {
	case v.Menu:
		return " q quit"
	case v.Status == game.StatusWaiting && v.Role == "host":
		if v.Invite != "" {
			return " enter start | invite " + v.Invite
		}
		return " enter start | q quit"
	case v.Status == game.StatusWaiting:
		return " waiting for the host to start | q quit"
	case v.Status == game.StatusConcluded && v.Role == "host":
		return " r rematch | q quit"
	}
	return " wasd move | mouse aim | click/j strike | space block | tab dodge | k device | q quit"
}
