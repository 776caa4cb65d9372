package main

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanchikIvanov/newwave/game"
)

type fakePeer struct {
	id    string
	codec Codec

	mu     sync.Mutex
	frames [][]byte
	full   bool
	closed bool
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id, codec: msgpackCodec{}}
}

func (p *fakePeer) ID() string { return p.id }
func (p *fakePeer) Codec() Codec { return p.codec }

func (p *fakePeer) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrConnClosed
	}
	if p.full {
		return ErrSendQueueFull
	}
	p.frames = append(p.frames, data)
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) setFull(full bool) {
	p.mu.Lock()
	p.full = full
	p.mu.Unlock()
}

// last decodes the newest frame the peer received.
func (p *fakePeer) last(t *testing.T) (Envelope, game.WorldState) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.frames, "peer %s received nothing", p.id)
	data := p.frames[len(p.frames)-1]
	env, err := DecodeEnvelope(p.codec, data)
	require.NoError(t, err)
	w, err := DecodePayload[game.WorldState](p.codec, data)
	require.NoError(t, err)
	return env, w
}

func (p *fakePeer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

type fakeStore struct {
	mu      sync.Mutex
	results []MatchResult
}

func (s *fakeStore) RecordMatches(_ context.Context, results []MatchResult) error {
	s.mu.Lock()
	s.results = append(s.results, results...)
	s.mu.Unlock()
	return nil
}

func testHostConfig() HostConfig {
	return HostConfig{
		SessionID: "test-session",
		Tuning:    game.DefaultTuning(),
		Rand:      rand.New(rand.NewPCG(7, 11)),
		Arena:     func() ([]game.Obstacle, error) { return nil, nil },
	}
}

func newTestHost(t *testing.T, cfg HostConfig) *Host {
	t.Helper()
	h, err := NewHost("host", cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func tickAt(n int) time.Time {
	return t0.Add(time.Duration(n) * time.Second / 60)
}

func TestHostStartsWithOwnCombatant(t *testing.T) {
	h := newTestHost(t, testHostConfig())

	w := h.State()
	require.Contains(t, w.Combatants, "host")
	assert.Equal(t, game.StatusWaiting, w.Status)
	assert.Equal(t, Summary{Status: game.StatusWaiting, Players: 1, Active: 1}, h.Summary())
}

func TestHostConnectCreatesCombatantAndPushesState(t *testing.T) {
	h := newTestHost(t, testHostConfig())
	p := newFakePeer("alice")

	h.Connect(p)
	h.Tick(tickAt(0), nil)

	require.Contains(t, h.State().Combatants, "alice")
	_, w := p.last(t)
	assert.Len(t, w.Combatants, 2)
	assert.Equal(t, game.StatusWaiting, w.Status)
	assert.Equal(t, 2, h.Summary().Players)
}

func TestHostReconnectResumesCombatant(t *testing.T) {
	h := newTestHost(t, testHostConfig())
	first := newFakePeer("alice")
	h.Connect(first)
	h.Tick(tickAt(0), nil)
	slot := h.State().Combatants["alice"].Slot

	second := newFakePeer("alice")
	h.Connect(second)
	h.Tick(tickAt(1), nil)

	assert.True(t, first.isClosed(), "replaced connection is closed")
	assert.Len(t, h.State().Combatants, 2)
	assert.Equal(t, slot, h.State().Combatants["alice"].Slot)

	// The replaced connection's close arrives late and must not evict alice.
	h.inbox <- peerLeft{peer: first}
	h.Tick(tickAt(2), nil)
	assert.Contains(t, h.State().Combatants, "alice")
	assert.Greater(t, second.count(), 0)
}

func TestHostDisconnectRemovesCombatantAndIntent(t *testing.T) {
	h := newTestHost(t, testHostConfig())
	p := newFakePeer("alice")
	h.Connect(p)
	h.Tick(tickAt(0), nil)
	h.inbox <- peerInput{id: "alice", seq: 1, intent: game.Intent{Held: game.KeyUp}}
	h.Tick(tickAt(1), nil)
	require.Contains(t, h.intents, "alice")

	h.inbox <- peerLeft{peer: p, err: ErrConnectionLost}
	h.Tick(tickAt(2), nil)

	assert.NotContains(t, h.State().Combatants, "alice")
	assert.NotContains(t, h.intents, "alice")
	assert.NotContains(t, h.peers, "alice")
	assert.Equal(t, 1, h.Summary().Players)
}

func TestHostRejectsPeerClaimingHostIdentity(t *testing.T) {
	h := newTestHost(t, testHostConfig())
	impostor := newFakePeer("host")

	h.Connect(impostor)
	h.Tick(tickAt(0), nil)

	assert.True(t, impostor.isClosed())
	assert.Len(t, h.State().Combatants, 1)
	assert.Equal(t, 0, impostor.count())
}

func TestHostInputLastWriteWinsAndDropsStaleSeq(t *testing.T) {
	h := newTestHost(t, testHostConfig())
	h.Connect(newFakePeer("alice"))
	h.Tick(tickAt(0), nil)

	h.inbox <- peerInput{id: "alice", seq: 5, intent: game.Intent{Held: game.KeyRight}}
	h.inbox <- peerInput{id: "alice", seq: 3, intent: game.Intent{Held: game.KeyLeft}}
	h.Tick(tickAt(1), nil)
	assert.Equal(t, game.KeyRight, h.intents["alice"].Held, "older frame ignored")

	h.inbox <- peerInput{id: "alice", seq: 6, intent: game.Intent{Held: game.KeyUp}}
	h.inbox <- peerInput{id: "alice", seq: 7, intent: game.Intent{Held: game.KeyDown}}
	h.Tick(tickAt(2), nil)
	assert.Equal(t, game.KeyDown, h.intents["alice"].Held, "newest frame wins")

	h.inbox <- peerInput{id: "alice", seq: 0, intent: game.Intent{Held: game.KeyLeft}}
	h.Tick(tickAt(3), nil)
	assert.Equal(t, game.KeyLeft, h.intents["alice"].Held, "unsequenced frame accepted")

	// Input from someone never connected is ignored.
	h.inbox <- peerInput{id: "mallory", seq: 1, intent: game.Intent{Held: game.KeyUp}}
	h.Tick(tickAt(4), nil)
	assert.NotContains(t, h.intents, "mallory")
}

func TestHostAppliesRemoteIntent(t *testing.T) {
	h := newTestHost(t, testHostConfig())
	h.Connect(newFakePeer("alice"))
	h.Tick(tickAt(0), nil)
	require.NoError(t, h.Start(tickAt(0)))
	before := h.State().Combatants["alice"].Pos

	for i := 1; i <= 30; i++ {
		h.inbox <- peerInput{id: "alice", seq: uint64(i), intent: game.Intent{Held: game.KeyUp, Aim: before}}
		h.Tick(tickAt(i), nil)
	}

	after := h.State().Combatants["alice"].Pos
	assert.Less(t, after.Y, before.Y)
	assert.InDelta(t, before.X, after.X, 1e-9)
}

func TestHostBroadcastIsRateLimited(t *testing.T) {
	cfg := testHostConfig()
	cfg.BroadcastHz = 30
	h := newTestHost(t, cfg)
	h.Connect(newFakePeer("alice"))

	broadcasts := 0
	for i := 0; i < 60; i++ {
		if h.Tick(tickAt(i), nil).Broadcast {
			broadcasts++
		}
	}
	assert.InDelta(t, 30, broadcasts, 1)
}

func TestHostStateSeqIncreases(t *testing.T) {
	h := newTestHost(t, testHostConfig())
	p := newFakePeer("alice")
	h.Connect(p)

	var last uint64
	for i := 0; i < 10; i++ {
		h.Tick(tickAt(i), nil)
		env, _ := p.last(t)
		assert.GreaterOrEqual(t, env.Seq, last)
		last = env.Seq
	}
	assert.Greater(t, last, uint64(1))
}

func TestHostToleratesFullSendQueue(t *testing.T) {
	h := newTestHost(t, testHostConfig())
	p := newFakePeer("alice")
	h.Connect(p)
	h.Tick(tickAt(0), nil)
	require.NoError(t, h.Start(tickAt(0)))

	p.setFull(true)
	var dropped int
	for i := 1; i <= 10; i++ {
		res := h.Tick(tickAt(i), nil)
		require.NoError(t, res.Err)
		dropped += res.Dropped
	}
	assert.Greater(t, dropped, 0)
	assert.Equal(t, uint64(10), h.State().Tick, "simulation keeps running")
	assert.Contains(t, h.State().Combatants, "alice", "a slow peer is not evicted")
}

func TestHostAutoStart(t *testing.T) {
	cfg := testHostConfig()
	cfg.MinPlayers = 3
	h := newTestHost(t, cfg)

	h.Connect(newFakePeer("alice"))
	h.Tick(tickAt(0), nil)
	assert.Equal(t, game.StatusWaiting, h.State().Status)

	h.Connect(newFakePeer("bob"))
	h.Tick(tickAt(1), nil)
	assert.Equal(t, game.StatusInProgress, h.State().Status)
}

func TestHostStartNeedsTwo(t *testing.T) {
	h := newTestHost(t, testHostConfig())
	assert.ErrorIs(t, h.Start(tickAt(0)), game.ErrNotEnoughPlayers)
}

func TestHostConclusionIsRecorded(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, zerolog.Nop())
	cfg := testHostConfig()
	cfg.Recorder = rec
	h := newTestHost(t, cfg)
	p := newFakePeer("alice")
	h.Connect(p)
	h.Tick(tickAt(0), nil)
	require.NoError(t, h.Start(tickAt(0)))

	alice := h.state.Combatants["alice"]
	alice.Active = false
	h.state.Combatants["alice"] = alice
	h.Tick(t0.Add(1500*time.Millisecond), nil)

	require.Equal(t, game.StatusConcluded, h.State().Status)
	assert.Equal(t, "host", h.Summary().Winner)
	_, w := p.last(t)
	assert.Equal(t, game.StatusConcluded, w.Status, "conclusion pushed immediately")

	rec.Stop()
	require.Len(t, store.results, 1)
	res := store.results[0]
	assert.Equal(t, "test-session", res.SessionID)
	assert.Equal(t, "host", res.Winner)
	assert.Equal(t, 1500*time.Millisecond, res.Duration())
	assert.Len(t, res.Participants, 2)
}

func TestHostRematchRespawnsEveryone(t *testing.T) {
	arenas := 0
	cfg := testHostConfig()
	cfg.Arena = func() ([]game.Obstacle, error) {
		arenas++
		return nil, nil
	}
	h := newTestHost(t, cfg)
	h.Connect(newFakePeer("alice"))
	h.Tick(tickAt(0), nil)
	require.NoError(t, h.Start(tickAt(0)))

	alice := h.state.Combatants["alice"]
	alice.Active = false
	alice.HP = 0
	h.state.Combatants["alice"] = alice
	h.Tick(tickAt(1), nil)
	require.Equal(t, game.StatusConcluded, h.State().Status)

	require.NoError(t, h.Rematch(tickAt(2)))
	w := h.State()
	assert.Equal(t, game.StatusInProgress, w.Status)
	assert.Empty(t, w.Winner)
	for id, c := range w.Combatants {
		assert.True(t, c.Active, id)
		assert.Equal(t, c.MaxHP, c.HP, id)
	}
	assert.Equal(t, 2, arenas, "rematch builds a fresh arena")
}

func TestHostCloseReleasesEverything(t *testing.T) {
	h := newTestHost(t, testHostConfig())
	p := newFakePeer("alice")
	h.Connect(p)
	h.Tick(tickAt(0), nil)

	h.Close()

	assert.True(t, p.isClosed())
	assert.Empty(t, h.State().Combatants)
	assert.Empty(t, h.intents)

	late := newFakePeer("bob")
	h.Connect(late)
	assert.True(t, late.isClosed(), "connections after close are refused")
}
