package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/IvanchikIvanov/newwave/game"
	"github.com/IvanchikIvanov/newwave/tui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := LoadConfig(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	// The terminal UI owns the screen, so logs go to a file unless headless.
	if !cfg.Headless && cfg.LogFile == "" {
		cfg.LogFile = AppName + ".log"
	}
	log, closer, err := NewLogger(cfg.LogLevel, cfg.LogFile, cfg.LogJSON)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer closer.Close()

	store, err := OpenPrefsStore()
	var prefs Prefs
	if err != nil {
		log.Warn().Err(err).Msg("prefs unavailable, using a throwaway identity")
		prefs.Identity = NewIdentity()
	} else if prefs, err = LoadPrefs(store); err != nil {
		log.Warn().Err(err).Msg("could not save prefs")
	}
	if cfg.Identity == "" {
		cfg.Identity = prefs.Identity
	}
	if cfg.Mode == ModeJoin && cfg.Target == "" {
		cfg.Target = prefs.LastJoin
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sess *Session
	switch cfg.Mode {
	case ModeHost:
		sess, err = CreateSession(ctx, cfg, log)
	case ModeJoin:
		sess, err = JoinSession(ctx, cfg, cfg.Target, log)
		if err == nil && store != nil {
			prefs.LastJoin = cfg.Target
			if err := SavePrefs(store, prefs); err != nil {
				log.Warn().Err(err).Msg("could not save prefs")
			}
		}
	}
	if err != nil {
		log.Error().Err(err).Str("mode", cfg.Mode).Msg("session failed")
		fmt.Fprintln(os.Stderr, UserMessage(err))
		return 1
	}
	defer sess.Close()

	if sess.Role() == RoleHost {
		fmt.Fprintf(os.Stderr, "hosting on %s\ninvite: %s\n", sess.Addr(), sess.Invite())
		if cfg.Headless {
			if qr, err := InviteTerminal(sess.Invite()); err == nil {
				fmt.Fprint(os.Stderr, qr)
			}
		}
	}

	loop := NewLoop(cfg.Tuning.TickRate, log)
	if cfg.Headless {
		loop.Run(ctx, func(now time.Time) TickResult {
			return sess.Tick(now, nil)
		})
		return 0
	}
	return runTerminal(ctx, stop, sess, loop, cfg.Tuning, log)
}

// runTerminal plays the session in the terminal until the player quits or the
// process is signalled.
func runTerminal(ctx context.Context, stop context.CancelFunc, sess *Session, loop *Loop, t game.Tuning, log zerolog.Logger) int {
	scr, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	screen, err := tui.NewScreen(scr, t.Bounds())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer screen.Fini()
	screen.Listen()

	f := &frontend{sess: sess, in: screen, out: screen, quit: stop, log: log}
	loop.Run(ctx, f.tick)
	return 0
}
