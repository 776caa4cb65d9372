package main

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/IvanchikIvanov/newwave/game"
	"github.com/IvanchikIvanov/newwave/tui"
)

// Renderer draws one frame of the world.
type Renderer interface {
	Render(w game.WorldState, v tui.View)
}

// InputSource supplies the local player's intent once per tick, and menu
// commands as they are typed.
type InputSource interface {
	Sample() game.Intent
	Actions() <-chan tui.Action
}

// frontend couples a session to a renderer and an input source. Its tick runs
// on the loop goroutine.
type frontend struct {
	sess *Session
	in   InputSource
	out  Renderer
	quit func()
	log  zerolog.Logger
}

func (f *frontend) tick(now time.Time) TickResult {
	for pending := true; pending; {
		select {
		case a := <-f.in.Actions():
			if a == tui.ActionQuit {
				f.quit()
				return TickResult{}
			}
			if err := f.sess.Command(now, commandFor(a)); err != nil {
				f.log.Debug().Err(err).Msg("command refused")
			}
		default:
			pending = false
		}
	}

	in := f.in.Sample()
	res := f.sess.Tick(now, &in)
	f.out.Render(f.sess.State(), viewOf(f.sess))
	return res
}

func commandFor(a tui.Action) Command {
	switch a {
	case tui.ActionStart:
		return CmdStart
	case tui.ActionRematch:
		return CmdRematch
	case tui.ActionQuit:
		return CmdQuit
	}
	return CmdNone
}

func viewOf(sess *Session) tui.View {
	sum := sess.Summary()
	return tui.View{
		LocalID: sess.ID(),
		Role:    sess.Role().String(),
		Peer:    sess.PeerState().String(),
		Status:  sum.Status,
		Players: sum.Players,
		Active:  sum.Active,
		Winner:  sum.Winner,
		Menu:    sum.Menu,
		Error:   sum.Error,
		Invite:  sess.Invite(),
	}
}
