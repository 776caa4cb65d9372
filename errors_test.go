package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }
func (timeoutErr) Temporary() bool { return true }

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("dial: %w", ErrConnectTimeout), "Connection timed out. Check the host address and try again."},
		{context.DeadlineExceeded, "Connection timed out. Check the host address and try again."},
		{timeoutErr{}, "Connection timed out. Check the host address and try again."},
		{ErrInvalidInvite, "This invite is invalid or has expired. Ask the host for a new one."},
		{ErrBadPassword, "Wrong room password."},
		{ErrSessionFull, "The host is not accepting more players."},
		{ErrConnectionLost, "Connection to the host was lost."},
		{fmt.Errorf("%w: refused", ErrPeerUnavailable), "Host not found. Make sure the host is running and the address is correct."},
		{errors.New("boom"), "Network error: boom"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UserMessage(tt.err), "%v", tt.err)
	}
}
