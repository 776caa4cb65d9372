package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// NewLogger builds the process logger. Console output is used on a terminal
// unless json is set; file, when non-empty, redirects everything there so the
// terminal UI keeps the screen.
func NewLogger(level, file string, json bool) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("log level %q: %w", level, err)
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	} else if !json && isatty.IsTerminal(os.Stderr.Fd()) {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return logger, closer, nil
}

// logThrottle rate limits repeated log lines per key. It is handed to the
// components that may log on every tick or every frame so a flapping peer
// cannot flood the log.
type logThrottle struct {
	mu         sync.Mutex
	every      time.Duration
	limiters   map[string]*rate.Limiter
	suppressed map[string]int
}

func newLogThrottle(every time.Duration) *logThrottle {
	return &logThrottle{
		every:      every,
		limiters:   make(map[string]*rate.Limiter),
		suppressed: make(map[string]int),
	}
}

// Allow reports whether a line for key may be written at now, and how many
// lines for that key were dropped since the last one written.
func (t *logThrottle) Allow(key string, now time.Time) (bool, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	lim, ok := t.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(t.every), 1)
		t.limiters[key] = lim
	}
	if !lim.AllowN(now, 1) {
		t.suppressed[key]++
		return false, 0
	}
	n := t.suppressed[key]
	delete(t.suppressed, key)
	return true, n
}

// Forget drops the state for key, typically once a connection is gone.
func (t *logThrottle) Forget(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.limiters, key)
	delete(t.suppressed, key)
}
