package main

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/IvanchikIvanov/newwave/game"
)

const (
	DefaultBroadcastHz = 30
	hostInboxSize      = 256
)

// Summary is what a participant displays about a match without rendering it.
type Summary struct {
	Status  game.Status `json:"status"`
	Players int         `json:"players"`
	Active  int         `json:"active"`
	Winner  string      `json:"winner,omitempty"`
	Tick    uint64      `json:"tick"`
	Menu    bool        `json:"menu,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SummarizeState derives the displayed summary from a snapshot.
func SummarizeState(w game.WorldState) Summary {
	return Summary{
		Status:  w.Status,
		Players: len(w.Combatants),
		Active:  w.ActiveCount(),
		Winner:  w.Winner,
		Tick:    w.Tick,
	}
}

// TickResult reports what one loop iteration did. The loop logs it and moves
// on regardless of its content.
type TickResult struct {
	Tick      uint64
	Stepped   bool
	Broadcast bool
	Sent      int
	Dropped   int
	Err       error
}

// HostConfig configures a Host.
type HostConfig struct {
	SessionID   string
	Tuning      game.Tuning
	BroadcastHz float64
	MinPlayers  int // start automatically once this many are connected; 0 disables
	Codec       Codec
	Arena       func() ([]game.Obstacle, error)
	Recorder    *Recorder
	Rand        *rand.Rand
}

// Inbox commands posted by connection goroutines.
type peerJoined struct {
	peer Peer
}

type peerLeft struct {
	peer Peer
	err  error
}

type peerInput struct {
	id     string
	seq    uint64
	intent game.Intent
}

// Host owns the authoritative WorldState. Everything but the inbox and the
// published summary is touched only by the goroutine calling Tick.
type Host struct {
	id        string
	cfg       HostConfig
	sim       *game.Simulator
	state     game.WorldState
	intents   map[string]game.Intent
	gates     map[string]*seqGate
	peers     map[string]Peer
	seq       uint64
	startedAt time.Time
	inbox     chan any
	done      chan struct{}
	closeOnce sync.Once
	broadcast *rate.Limiter
	throttle  *logThrottle
	log       zerolog.Logger

	mu      sync.RWMutex
	summary Summary
}

// NewHost creates a host whose own combatant is keyed by localID.
func NewHost(localID string, cfg HostConfig, log zerolog.Logger) (*Host, error) {
	if cfg.BroadcastHz <= 0 {
		cfg.BroadcastHz = DefaultBroadcastHz
	}
	if cfg.Codec == nil {
		cfg.Codec = msgpackCodec{}
	}
	if cfg.Rand == nil {
		cfg.Rand = game.NewRand()
	}
	if cfg.Arena == nil {
		tuning, rng := cfg.Tuning, cfg.Rand
		cfg.Arena = func() ([]game.Obstacle, error) {
			return game.GenerateObstacles(tuning, rng), nil
		}
	}
	obstacles, err := cfg.Arena()
	if err != nil {
		return nil, fmt.Errorf("build arena: %w", err)
	}

	h := &Host{
		id:        localID,
		cfg:       cfg,
		sim:       game.NewSimulator(cfg.Tuning, obstacles, cfg.Rand),
		state:     game.NewWorldState(obstacles),
		intents:   make(map[string]game.Intent),
		gates:     make(map[string]*seqGate),
		peers:     make(map[string]Peer),
		inbox:     make(chan any, hostInboxSize),
		done:      make(chan struct{}),
		broadcast: rate.NewLimiter(rate.Limit(cfg.BroadcastHz), 1),
		throttle:  newLogThrottle(5 * time.Second),
		log:       log.With().Str("component", "host").Logger(),
	}
	h.state, _ = game.Join(h.state, cfg.Tuning, localID)
	h.publish()
	return h, nil
}

func (h *Host) ID() string { return h.id }

// SessionID identifies this hosting run; invites name it.
func (h *Host) SessionID() string { return h.cfg.SessionID }

// Summary is safe to call from any goroutine.
func (h *Host) Summary() Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.summary
}

// State returns the current snapshot. Call it from the Tick goroutine only.
func (h *Host) State() game.WorldState { return h.state }

// Connect registers a newly opened connection. It is processed on the next
// tick.
func (h *Host) Connect(p Peer) {
	select {
	case <-h.done:
		p.Close()
		return
	default:
	}
	select {
	case h.inbox <- peerJoined{peer: p}:
	case <-h.done:
		p.Close()
	}
}

// OnData implements ConnHandler for host-side connections.
func (h *Host) OnData(c *Conn, env Envelope, codec Codec, data []byte) {
	if env.Kind != KindInput {
		return
	}
	in, err := DecodePayload[game.Intent](codec, data)
	if err != nil {
		if ok, n := h.throttle.Allow("decode:"+c.ID(), time.Now()); ok {
			h.log.Debug().Err(err).Str("peer", c.ID()).Int("suppressed", n).Msg("bad input")
		}
		return
	}
	select {
	case h.inbox <- peerInput{id: c.ID(), seq: env.Seq, intent: in}:
	default:
		// Inputs are superseded by the next one; losing one is harmless.
	}
}

// OnClose implements ConnHandler for host-side connections.
func (h *Host) OnClose(c *Conn, err error) {
	select {
	case h.inbox <- peerLeft{peer: c, err: err}:
	case <-h.done:
	}
}

// Tick runs one loop iteration: gather intents, step, maybe broadcast.
// local is the host player's own intent; nil leaves it idle.
func (h *Host) Tick(now time.Time, local *game.Intent) (res TickResult) {
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("host tick %d: panic: %v", h.state.Tick, r)
		}
	}()

	h.drain(now)
	if local != nil {
		h.intents[h.id] = *local
	}

	if h.state.Status == game.StatusWaiting && h.cfg.MinPlayers > 1 && len(h.state.Combatants) >= h.cfg.MinPlayers {
		if err := h.Start(now); err == nil {
			h.log.Info().Int("players", len(h.state.Combatants)).Msg("match auto-started")
		}
	}

	before := h.state.Status
	h.state = h.sim.Step(h.state, h.intents)
	res.Stepped = before == game.StatusInProgress
	if before == game.StatusInProgress && h.state.Status == game.StatusConcluded {
		h.concluded(now)
	}

	if h.broadcast.AllowN(now, 1) {
		res.Broadcast = true
		res.Sent, res.Dropped = h.broadcastState(now)
	}
	h.publish()
	res.Tick = h.state.Tick
	return res
}

// Start begins the match. Call from the Tick goroutine.
func (h *Host) Start(now time.Time) error {
	next, err := game.Start(h.state)
	if err != nil {
		return err
	}
	h.state = next
	h.startedAt = now
	h.log.Info().Int("players", len(next.Combatants)).Msg("match started")
	h.pushAll(now)
	return nil
}

// Rematch restarts everyone connected on a fresh arena. Call from the Tick
// goroutine.
func (h *Host) Rematch(now time.Time) error {
	obstacles, err := h.cfg.Arena()
	if err != nil {
		return fmt.Errorf("build arena: %w", err)
	}
	next, err := game.Rematch(h.state, h.cfg.Tuning, obstacles)
	if err != nil {
		return err
	}
	h.sim = game.NewSimulator(h.cfg.Tuning, obstacles, h.cfg.Rand)
	h.state = next
	h.startedAt = now
	for id := range h.intents {
		if id != h.id {
			delete(h.intents, id)
		}
	}
	h.log.Info().Int("players", len(next.Combatants)).Int("obstacles", len(obstacles)).Msg("rematch")
	h.pushAll(now)
	return nil
}

// Close drops every connection and releases all combatants. The loop driving
// Tick must have stopped.
func (h *Host) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		for id, p := range h.peers {
			p.Close()
			delete(h.peers, id)
		}
		h.intents = make(map[string]game.Intent)
		h.gates = make(map[string]*seqGate)
		h.state = game.NewWorldState(h.state.Obstacles)
		h.publish()
	})
}

func (h *Host) drain(now time.Time) {
	for n := len(h.inbox); n > 0; n-- {
		switch cmd := (<-h.inbox).(type) {
		case peerJoined:
			h.join(cmd.peer, now)
		case peerLeft:
			h.leave(cmd.peer, cmd.err)
		case peerInput:
			h.input(cmd)
		}
	}
}

func (h *Host) join(p Peer, now time.Time) {
	id := p.ID()
	if id == h.id {
		h.log.Warn().Str("peer", id).Msg("peer claims the host identity, rejecting")
		p.Close()
		return
	}
	if old, ok := h.peers[id]; ok && old != p {
		// Same identity reconnected; the new connection takes over.
		old.Close()
	}
	h.peers[id] = p
	h.gates[id] = &seqGate{}

	var created bool
	h.state, created = game.Join(h.state, h.cfg.Tuning, id)
	h.log.Info().Str("peer", id).Bool("resumed", !created).Int("players", len(h.state.Combatants)).Msg("peer joined")
	h.push(p, now)
}

func (h *Host) leave(p Peer, cause error) {
	id := p.ID()
	if cur, ok := h.peers[id]; !ok || cur != p {
		return
	}
	delete(h.peers, id)
	delete(h.intents, id)
	delete(h.gates, id)
	h.throttle.Forget("send:" + id)
	h.state = game.Leave(h.state, id)

	ev := h.log.Info()
	if cause != nil {
		ev = h.log.Warn().Err(cause)
	}
	ev.Str("peer", id).Int("players", len(h.state.Combatants)).Msg("peer left")
}

func (h *Host) input(cmd peerInput) {
	gate, ok := h.gates[cmd.id]
	if !ok {
		return
	}
	if !gate.Accept(cmd.seq) {
		return
	}
	h.intents[cmd.id] = cmd.intent
}

// broadcastState sends the current state to every peer. Frames are encoded
// once per codec.
func (h *Host) broadcastState(now time.Time) (sent, dropped int) {
	if len(h.peers) == 0 {
		return 0, 0
	}
	h.seq++
	frames := make(map[string][]byte, 2)
	for id, p := range h.peers {
		codec := p.Codec()
		data, ok := frames[codec.Name()]
		if !ok {
			var err error
			data, err = EncodeState(codec, h.seq, h.state)
			if err != nil {
				h.log.Error().Err(err).Str("codec", codec.Name()).Msg("encode state")
				continue
			}
			frames[codec.Name()] = data
		}
		if err := p.Send(data); err != nil {
			dropped++
			if ok, n := h.throttle.Allow("send:"+id, now); ok {
				h.log.Debug().Err(err).Str("peer", id).Int("suppressed", n).Msg("state dropped")
			}
			continue
		}
		sent++
	}
	return sent, dropped
}

// push sends the current state to a single peer right away.
func (h *Host) push(p Peer, now time.Time) {
	h.seq++
	data, err := EncodeState(p.Codec(), h.seq, h.state)
	if err != nil {
		h.log.Error().Err(err).Msg("encode state")
		return
	}
	if err := p.Send(data); err != nil {
		if ok, n := h.throttle.Allow("send:"+p.ID(), now); ok {
			h.log.Debug().Err(err).Str("peer", p.ID()).Int("suppressed", n).Msg("state dropped")
		}
	}
}

// pushAll broadcasts outside the rate limit, for phase changes.
func (h *Host) pushAll(now time.Time) {
	h.broadcastState(now)
}

func (h *Host) concluded(now time.Time) {
	h.log.Info().Str("winner", h.state.Winner).Uint64("tick", h.state.Tick).Msg("match concluded")
	h.pushAll(now)
	if h.cfg.Recorder == nil {
		return
	}
	h.cfg.Recorder.Track(NewMatchResult(h.cfg.SessionID, h.startedAt, now, h.state))
}

func (h *Host) publish() {
	s := SummarizeState(h.state)
	h.mu.Lock()
	h.summary = s
	h.mu.Unlock()
}
