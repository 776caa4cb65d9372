package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/IvanchikIvanov/newwave/game"
)

// Role is what this process is in the current session.
type Role int

const (
	RoleNone Role = iota
	RoleHost
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleClient:
		return "client"
	}
	return "none"
}

// PeerState tracks a participant's connection lifecycle.
type PeerState int

const (
	PeerIdle PeerState = iota
	PeerConnecting
	PeerConnected
	PeerDisconnected
	PeerFailed
)

func (s PeerState) String() string {
	switch s {
	case PeerIdle:
		return "idle"
	case PeerConnecting:
		return "connecting"
	case PeerConnected:
		return "connected"
	case PeerDisconnected:
		return "disconnected"
	case PeerFailed:
		return "failed"
	}
	return fmt.Sprintf("PeerState(%d)", int(s))
}

// CanTransition reports whether next may follow s. Any state may return to
// idle when the session is torn down.
func (s PeerState) CanTransition(next PeerState) bool {
	if next == PeerIdle {
		return true
	}
	switch s {
	case PeerIdle, PeerDisconnected, PeerFailed:
		return next == PeerConnecting
	case PeerConnecting:
		return next == PeerConnected || next == PeerFailed
	case PeerConnected:
		return next == PeerDisconnected || next == PeerFailed
	}
	return false
}

// Command is a menu action issued by the local player.
type Command int

const (
	CmdNone Command = iota
	CmdStart
	CmdRematch
	CmdQuit
)

// Session is one running role: a host with its HTTP endpoint, or a client
// with its joiner.
type Session struct {
	role   Role
	id     string
	tuning game.Tuning
	log    zerolog.Logger

	host     *Host
	server   *http.Server
	hub      *Hub
	auth     *Auth
	db       *DB
	recorder *Recorder
	addr     string
	invite   string

	joiner *Joiner

	closeOnce sync.Once
}

// CreateSession starts hosting: it builds the arena, opens the listener and
// issues an invite.
func CreateSession(ctx context.Context, cfg Config, log zerolog.Logger) (_ *Session, err error) {
	s := &Session{
		role:   RoleHost,
		id:     cfg.Identity,
		tuning: cfg.Tuning,
		log:    log.With().Str("role", "host").Logger(),
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if cfg.DBPath != "" {
		if s.db, err = OpenDB(cfg.DBPath); err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		s.recorder = NewRecorder(s.db, log)
	}

	if s.auth, err = NewAuth(s.db, cfg.Password, cfg.InviteTTL, log); err != nil {
		return nil, err
	}

	codec, err := CodecByName(cfg.Wire)
	if err != nil {
		return nil, err
	}
	sessionID := GenerateID(8)
	s.host, err = NewHost(s.id, HostConfig{
		SessionID:   sessionID,
		Tuning:      cfg.Tuning,
		BroadcastHz: cfg.BroadcastHz,
		MinPlayers:  cfg.MinPlayers,
		Codec:       codec,
		Arena:       arenaSource(cfg),
		Recorder:    s.recorder,
	}, log)
	if err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	s.addr = ln.Addr().String()

	advertise := cfg.Advertise
	if advertise == "" {
		advertise = s.addr
	}
	token, err := s.auth.IssueInvite(sessionID, time.Now())
	if err != nil {
		ln.Close()
		return nil, err
	}
	s.invite = InviteURL(advertise, token)

	s.hub = NewHub(cfg.MaxConns, cfg.MaxConnsPerIP)
	s.server = &http.Server{
		Handler:           SetupRoutes(s.hub, s.host, s.auth, s.db, s.invite, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http server stopped")
		}
	}()

	s.log.Info().Str("addr", s.addr).Str("session", sessionID).Str("id", s.id).Msg("hosting")
	return s, nil
}

// JoinSession connects to the host at target as a client.
func JoinSession(ctx context.Context, cfg Config, target string, log zerolog.Logger) (*Session, error) {
	codec, err := CodecByName(cfg.Wire)
	if err != nil {
		return nil, err
	}
	s := &Session{
		role:   RoleClient,
		id:     cfg.Identity,
		tuning: cfg.Tuning,
		log:    log.With().Str("role", "client").Logger(),
		joiner: NewJoiner(cfg.Identity, codec, log),
	}
	header := http.Header{}
	if cfg.Password != "" {
		header.Set(passwordHeader, cfg.Password)
	}
	if err := s.joiner.Connect(ctx, target, header); err != nil {
		return nil, err
	}
	return s, nil
}

func arenaSource(cfg Config) func() ([]game.Obstacle, error) {
	if cfg.ArenaFile == "" {
		return nil
	}
	dir, name := filepath.Split(cfg.ArenaFile)
	if dir == "" {
		dir = "."
	}
	fsys := os.DirFS(dir)
	return func() ([]game.Obstacle, error) {
		return game.LoadArenaTMX(fsys, name)
	}
}

func (s *Session) Role() Role { return s.role }

func (s *Session) ID() string { return s.id }

// Addr is the host's listen address, empty for clients.
func (s *Session) Addr() string { return s.addr }

// Invite is the URL a client joins with, empty for clients.
func (s *Session) Invite() string { return s.invite }

// Tick advances the session by one loop iteration.
func (s *Session) Tick(now time.Time, in *game.Intent) TickResult {
	if s.role == RoleHost {
		return s.host.Tick(now, in)
	}
	var intent game.Intent
	if in != nil {
		intent = *in
	}
	return s.joiner.Tick(now, intent)
}

// Command applies a menu action. Call it from the loop goroutine.
func (s *Session) Command(now time.Time, cmd Command) error {
	switch cmd {
	case CmdStart:
		if s.role != RoleHost {
			return ErrNotHost
		}
		return s.host.Start(now)
	case CmdRematch:
		if s.role != RoleHost {
			return ErrNotHost
		}
		return s.host.Rematch(now)
	}
	return nil
}

// State is the snapshot to render. Loop goroutine only.
func (s *Session) State() game.WorldState {
	if s.role == RoleHost {
		return s.host.State()
	}
	return s.joiner.State()
}

func (s *Session) Summary() Summary {
	if s.role == RoleHost {
		return s.host.Summary()
	}
	return s.joiner.Summary()
}

// PeerState is the local connection state; a host is always connected.
func (s *Session) PeerState() PeerState {
	if s.role == RoleHost {
		return PeerConnected
	}
	return s.joiner.PeerState()
}

// Close tears down every connection and releases all combatants. The loop
// must have stopped.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := s.server.Shutdown(ctx); err != nil {
				s.log.Debug().Err(err).Msg("http shutdown")
			}
			cancel()
		}
		if s.host != nil {
			s.host.Close()
		}
		if s.joiner != nil {
			s.joiner.Close()
		}
		if s.recorder != nil {
			s.recorder.Stop()
		}
		if s.db != nil {
			s.db.Close()
		}
		s.log.Info().Msg("session closed")
	})
}
