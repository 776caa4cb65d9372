package main

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 256 << 10 // a full arena snapshot with effects
	sendBufSize       = 32
	maxMessagesPerSec = 120
	messageBurst      = 30
)

// Peer is the host's view of one remote participant.
type Peer interface {
	ID() string
	Codec() Codec
	Send(data []byte) error
	Close() error
}

// ConnHandler receives what arrives on a Conn. Both callbacks run on the
// connection's read goroutine.
type ConnHandler interface {
	OnData(c *Conn, env Envelope, codec Codec, data []byte)
	OnClose(c *Conn, err error)
}

// Conn is one websocket connection with a read pump, a write pump and a
// bounded outbound queue. Sending never blocks: when the queue is full the
// frame is dropped and the next snapshot supersedes it.
type Conn struct {
	ws       *websocket.Conn
	id       string
	addr     string
	codec    Codec
	handler  ConnHandler
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	limiter  *rate.Limiter
	throttle *logThrottle
	log      zerolog.Logger
}

// NewConn wraps an established websocket. id is the remote participant's
// identity, addr its network address.
func NewConn(ws *websocket.Conn, id, addr string, codec Codec, handler ConnHandler, log zerolog.Logger) *Conn {
	return &Conn{
		ws:       ws,
		id:       id,
		addr:     addr,
		codec:    codec,
		handler:  handler,
		send:     make(chan []byte, sendBufSize),
		done:     make(chan struct{}),
		limiter:  rate.NewLimiter(maxMessagesPerSec, messageBurst),
		throttle: newLogThrottle(5 * time.Second),
		log:      log.With().Str("peer", id).Str("addr", addr).Logger(),
	}
}

func (c *Conn) ID() string { return c.id }
func (c *Conn) Addr() string { return c.addr }
func (c *Conn) Codec() Codec { return c.codec }

// Open reports whether the connection still accepts frames.
func (c *Conn) Open() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Send queues a frame for the write pump.
func (c *Conn) Send(data []byte) error {
	if !c.Open() {
		return ErrConnClosed
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendQueueFull
	}
}

// Close asks both pumps to stop. The read pump reports the close to the
// handler once it exits.
func (c *Conn) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.ws.SetReadDeadline(time.Now())
	})
	return nil
}

// ReadPump reads frames until the connection fails or is closed.
func (c *Conn) ReadPump() {
	var cause error
	defer func() {
		c.Close()
		c.handler.OnClose(c, cause)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.ws.ReadMessage()
		if err != nil {
			if !c.Open() {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				cause = fmt.Errorf("%w: %v", ErrConnectionLost, err)
				c.log.Warn().Err(err).Msg("ws read failed")
			} else if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				cause = fmt.Errorf("%w: %v", ErrConnectionLost, err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.log.Warn().Msg("message rate exceeded, disconnecting")
			cause = errors.New("message rate exceeded")
			return
		}

		codec := CodecForMessage(msgType)
		env, err := DecodeEnvelope(codec, message)
		if err != nil {
			if ok, dropped := c.throttle.Allow("decode", time.Now()); ok {
				c.log.Debug().Err(err).Int("suppressed", dropped).Msg("bad frame")
			}
			continue
		}
		c.handler.OnData(c, env, codec, message)
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	msgType := c.codec.MessageType()
	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(msgType, message); err != nil {
				c.log.Debug().Err(err).Msg("ws write failed")
				c.Close()
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
