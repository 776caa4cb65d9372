package tui

import (
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/IvanchikIvanov/newwave/game"
)

// Terminals report key presses, never releases. A key counts as held until
// this long after its last press or auto-repeat.
const holdWindow = 250 * time.Millisecond

// Action is a menu command typed by the player.
type Action int

const (
	ActionStart Action = iota + 1
	ActionRematch
	ActionQuit
)

var runeKeys = map[rune]game.Keys{
	'w': game.KeyUp,
	'a': game.KeyLeft,
	's': game.KeyDown,
	'd': game.KeyRight,
	' ': game.KeyBlock,
}

// handleEvent records one terminal event. It runs on the poll goroutine.
func (s *Screen) handleEvent(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		s.handleKey(ev)
	case *tcell.EventMouse:
		x, y := ev.Position()
		s.mu.Lock()
		s.mouseSeen = true
		s.mouseX, s.mouseY = x, y
		s.buttons = ev.Buttons()
		s.mu.Unlock()
	case *tcell.EventResize:
		s.scr.Sync()
	}
}

func (s *Screen) handleKey(ev *tcell.EventKey) {
	now := s.now()
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		s.act(ActionQuit)
		return
	case tcell.KeyEnter:
		s.act(ActionStart)
		return
	case tcell.KeyTab:
		s.press(game.KeyDodge, now)
		return
	case tcell.KeyRune:
	default:
		return
	}

	r := ev.Rune()
	if r >= 'A' && r <= 'Z' {
		r += 'a' - 'A'
	}
	if k, ok := runeKeys[r]; ok {
		s.press(k, now)
		return
	}
	switch r {
	case 'j':
		s.mu.Lock()
		s.attackAt = now
		s.mu.Unlock()
	case 'k':
		s.mu.Lock()
		s.deviceAt = now
		s.mu.Unlock()
	case 'r':
		s.act(ActionRematch)
	case 'q':
		s.act(ActionQuit)
	}
}

func (s *Screen) press(k game.Keys, now time.Time) {
	s.mu.Lock()
	s.held[k] = now
	s.mu.Unlock()
}

func (s *Screen) act(a Action) {
	select {
	case s.actions <- a:
	default:
	}
}

// Actions delivers menu commands.
func (s *Screen) Actions() <-chan Action { return s.actions }

// Sample returns the local player's intent for this tick. Call it from the
// goroutine that calls Render.
func (s *Screen) Sample() game.Intent {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	var in game.Intent
	for k, at := range s.held {
		if now.Sub(at) <= holdWindow {
			in.Held |= k
		} else {
			delete(s.held, k)
		}
	}
	in.Attack = s.buttons&tcell.Button1 != 0 || now.Sub(s.attackAt) <= holdWindow
	in.Device = s.buttons&tcell.Button3 != 0 || now.Sub(s.deviceAt) <= holdWindow
	if s.buttons&tcell.Button2 != 0 {
		in.Held |= game.KeyBlock
	}

	if dir := in.Held.Direction(); !dir.IsZero() {
		s.lastDir = dir
	}
	if s.mouseSeen {
		// Row 0 is the status line.
		in.Aim = s.cam.ScreenToWorld(s.mouseX, s.mouseY-1)
	} else {
		in.Aim = s.localPos.Add(s.lastDir.Scale(100))
	}
	return in
}
