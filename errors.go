package main

import (
	"context"
	"errors"
	"net"
)

var (
	ErrPeerUnavailable = errors.New("peer unavailable")
	ErrConnectTimeout  = errors.New("connect timed out")
	ErrConnectionLost  = errors.New("connection lost")
	ErrSessionFull     = errors.New("session full")
	ErrInvalidInvite   = errors.New("invalid invite")
	ErrBadPassword     = errors.New("wrong room password")
	ErrSendQueueFull   = errors.New("send queue full")
	ErrConnClosed      = errors.New("connection closed")
	ErrNotConnected    = errors.New("not connected")
	ErrNoDatabase      = errors.New("no database configured")
	ErrNotHost         = errors.New("only the host can do that")
)

// UserMessage turns a transport or session error into the status line shown
// to the player.
func UserMessage(err error) string {
	var netErr net.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConnectTimeout), errors.Is(err, context.DeadlineExceeded):
		return "Connection timed out. Check the host address and try again."
	case errors.Is(err, ErrInvalidInvite):
		return "This invite is invalid or has expired. Ask the host for a new one."
	case errors.Is(err, ErrBadPassword):
		return "Wrong room password."
	case errors.Is(err, ErrSessionFull):
		return "The host is not accepting more players."
	case errors.Is(err, ErrConnectionLost):
		return "Connection to the host was lost."
	case errors.Is(err, ErrPeerUnavailable):
		return "Host not found. Make sure the host is running and the address is correct."
	case errors.As(err, &netErr) && netErr.Timeout():
		return "Connection timed out. Check the host address and try again."
	}
	return "Network error: " + err.Error()
}
