package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/IvanchikIvanov/newwave/game"
)

const joinTimeout = 10 * time.Second

// Joiner is the client side of a session: one outbound connection to the
// host, a latest-wins snapshot slot filled by the read goroutine, and the
// local copy of the world the loop renders from.
type Joiner struct {
	id      string
	codec   Codec
	dialer  *websocket.Dialer
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	state   PeerState
	lastErr error
	conn    *Conn
	closing bool
	summary Summary
	gate    seqGate

	// Filled by the read goroutine, drained by Tick.
	snapshots chan game.WorldState

	// Loop goroutine only.
	local    game.WorldState
	seq      uint64
	throttle *logThrottle
}

// NewJoiner creates an idle joiner identified by id.
func NewJoiner(id string, codec Codec, log zerolog.Logger) *Joiner {
	if codec == nil {
		codec = msgpackCodec{}
	}
	return &Joiner{
		id:    id,
		codec: codec,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: joinTimeout,
		},
		timeout:   joinTimeout,
		log:       log.With().Str("component", "joiner").Logger(),
		snapshots: make(chan game.WorldState, 1),
		throttle:  newLogThrottle(5 * time.Second),
		summary:   Summary{Menu: true},
	}
}

// Connect dials the host at target. target may be a full invite URL or a
// bare host:port.
func (j *Joiner) Connect(ctx context.Context, target string, header http.Header) error {
	if err := j.transition(PeerConnecting, nil); err != nil {
		return err
	}
	u, err := joinURL(target, j.id, j.codec)
	if err != nil {
		j.transition(PeerFailed, err)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	ws, resp, err := j.dialer.DialContext(ctx, u, header)
	if err != nil {
		err = dialError(ctx, resp, err)
		j.log.Warn().Err(err).Str("target", target).Msg("join failed")
		j.transition(PeerFailed, err)
		return err
	}

	c := NewConn(ws, "host", ws.RemoteAddr().String(), j.codec, j, j.log)

	j.mu.Lock()
	j.conn = c
	j.closing = false
	j.gate.Reset()
	j.mu.Unlock()
	if err := j.transition(PeerConnected, nil); err != nil {
		c.Close()
		return err
	}

	go c.WritePump()
	go c.ReadPump()
	j.log.Info().Str("target", target).Str("wire", j.codec.Name()).Msg("joined host")
	return nil
}

// OnData implements ConnHandler. Only STATE frames are meaningful to a client.
func (j *Joiner) OnData(c *Conn, env Envelope, codec Codec, data []byte) {
	if env.Kind != KindState {
		return
	}
	j.mu.Lock()
	fresh := j.conn == c && j.gate.Accept(env.Seq)
	j.mu.Unlock()
	if !fresh {
		return
	}
	w, err := DecodePayload[game.WorldState](codec, data)
	if err != nil {
		if ok, n := j.throttle.Allow("decode", time.Now()); ok {
			j.log.Debug().Err(err).Int("suppressed", n).Msg("bad state")
		}
		return
	}
	select {
	case <-j.snapshots:
	default:
	}
	j.snapshots <- w
}

// OnClose implements ConnHandler.
func (j *Joiner) OnClose(c *Conn, err error) {
	j.mu.Lock()
	if j.conn != c {
		j.mu.Unlock()
		return
	}
	j.conn = nil
	closing := j.closing
	j.mu.Unlock()

	if closing {
		return
	}
	next := PeerDisconnected
	if err != nil {
		next = PeerFailed
	} else {
		err = ErrConnectionLost
	}
	j.log.Warn().Err(err).Msg("connection to host closed")
	j.transition(next, err)
}

// Tick adopts the newest snapshot and sends this tick's intent while the
// match is running.
func (j *Joiner) Tick(now time.Time, in game.Intent) (res TickResult) {
	select {
	case w := <-j.snapshots:
		j.local = w
		res.Stepped = true
	default:
	}
	res.Tick = j.local.Tick

	j.mu.Lock()
	state, lastErr, conn := j.state, j.lastErr, j.conn
	j.mu.Unlock()

	if state == PeerFailed || state == PeerDisconnected {
		j.setSummary(Summary{Menu: true, Error: UserMessage(lastErr)})
		return res
	}
	j.setSummary(SummarizeState(j.local))

	if conn == nil || j.local.Status != game.StatusInProgress {
		return res
	}
	j.seq++
	data, err := EncodeInput(j.codec, j.seq, in)
	if err != nil {
		res.Err = err
		return res
	}
	if err := conn.Send(data); err != nil {
		res.Dropped++
		if ok, n := j.throttle.Allow("send", now); ok {
			j.log.Debug().Err(err).Int("suppressed", n).Msg("input dropped")
		}
		return res
	}
	res.Sent++
	return res
}

// State returns the last adopted snapshot. Loop goroutine only.
func (j *Joiner) State() game.WorldState { return j.local }

func (j *Joiner) ID() string { return j.id }

func (j *Joiner) Summary() Summary {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.summary
}

func (j *Joiner) PeerState() PeerState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the error behind the last failure, if any.
func (j *Joiner) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

// Close drops the connection and forgets the match.
func (j *Joiner) Close() {
	j.mu.Lock()
	j.closing = true
	c := j.conn
	j.conn = nil
	j.state = PeerIdle
	j.summary = Summary{Menu: true}
	j.mu.Unlock()

	if c != nil {
		c.Close()
	}
	select {
	case <-j.snapshots:
	default:
	}
	j.local = game.WorldState{}
}

func (j *Joiner) setSummary(s Summary) {
	j.mu.Lock()
	j.summary = s
	j.mu.Unlock()
}

func (j *Joiner) transition(next PeerState, cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.state.CanTransition(next) {
		return fmt.Errorf("joiner: %s -> %s not allowed", j.state, next)
	}
	j.state = next
	if next == PeerConnecting || next == PeerConnected {
		j.lastErr = nil
	} else if cause != nil {
		j.lastErr = cause
	}
	return nil
}

// joinURL builds the websocket URL for target, adding the joiner identity
// and wire codec.
func joinURL(target, id string, codec Codec) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", fmt.Errorf("%w: empty address", ErrPeerUnavailable)
	}
	if !strings.Contains(target, "://") {
		target = "ws://" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPeerUnavailable, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	q := u.Query()
	q.Set("id", id)
	q.Set("wire", codec.Name())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// dialError classifies a failed handshake.
func dialError(ctx context.Context, resp *http.Response, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrConnectTimeout, err)
	}
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return ErrInvalidInvite
		case http.StatusForbidden:
			return ErrBadPassword
		case http.StatusServiceUnavailable, http.StatusTooManyRequests:
			return ErrSessionFull
		}
		return fmt.Errorf("%w: handshake status %d", ErrPeerUnavailable, resp.StatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrConnectTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrPeerUnavailable, err)
}
