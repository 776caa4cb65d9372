package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Loop drives a tick function at a fixed rate on one goroutine.
type Loop struct {
	interval time.Duration
	throttle *logThrottle
	log      zerolog.Logger
}

func NewLoop(tickRate int, log zerolog.Logger) *Loop {
	if tickRate <= 0 {
		tickRate = 60
	}
	return &Loop{
		interval: time.Second / time.Duration(tickRate),
		throttle: newLogThrottle(2 * time.Second),
		log:      log.With().Str("component", "loop").Logger(),
	}
}

// Run calls tick on every timer fire until ctx is cancelled. A failing or
// panicking tick is logged and the loop carries on.
func (l *Loop) Run(ctx context.Context, tick func(now time.Time) TickResult) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.log.Info().Dur("interval", l.interval).Msg("loop started")
	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("loop stopped")
			return
		case now := <-ticker.C:
			l.report(now, l.safeTick(tick, now))
		}
	}
}

func (l *Loop) safeTick(tick func(time.Time) TickResult, now time.Time) (res TickResult) {
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("tick: panic: %v", r)
		}
	}()
	return tick(now)
}

func (l *Loop) report(now time.Time, res TickResult) {
	if res.Err != nil {
		if ok, n := l.throttle.Allow("err", now); ok {
			l.log.Error().Err(res.Err).Uint64("tick", res.Tick).Int("suppressed", n).Msg("tick failed")
		}
	}
	if res.Dropped > 0 {
		if ok, n := l.throttle.Allow("dropped", now); ok {
			l.log.Debug().Int("dropped", res.Dropped).Int("sent", res.Sent).Uint64("tick", res.Tick).Int("suppressed", n).Msg("frames dropped")
		}
	}
}
