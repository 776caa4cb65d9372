package main

import (
	"flag"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(nil, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, ModeHost, cfg.Mode)
	assert.Equal(t, ":7777", cfg.Addr)
	assert.Equal(t, "msgpack", cfg.Wire)
	assert.Equal(t, float64(DefaultBroadcastHz), cfg.BroadcastHz)
	assert.Equal(t, defaultInviteTTL, cfg.InviteTTL)
	assert.Equal(t, 60, cfg.Tuning.TickRate)
}

func TestLoadConfigJoinPositional(t *testing.T) {
	cfg, err := LoadConfig([]string{"-wire", "json", "join", "10.0.0.5:7777"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, ModeJoin, cfg.Mode)
	assert.Equal(t, "10.0.0.5:7777", cfg.Target)
	assert.Equal(t, "json", cfg.Wire)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("NEWWAVE_ADDR", "127.0.0.1:9000")
	t.Setenv("NEWWAVE_BROADCAST_HZ", "20")
	t.Setenv("NEWWAVE_MIN_PLAYERS", "2")
	t.Setenv("NEWWAVE_INVITE_TTL", "90m")
	t.Setenv("NEWWAVE_HEADLESS", "true")

	cfg, err := LoadConfig(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, 20.0, cfg.BroadcastHz)
	assert.Equal(t, 2, cfg.MinPlayers)
	assert.Equal(t, 90*time.Minute, cfg.InviteTTL)
	assert.True(t, cfg.Headless)

	// Flags win over the environment.
	cfg, err = LoadConfig([]string{"-addr", ":8000"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Addr)
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown mode", []string{"spectate"}},
		{"unknown wire", []string{"-wire", "xml"}},
		{"zero broadcast", []string{"-broadcast-hz", "0"}},
		{"broadcast above tick rate", []string{"-broadcast-hz", "120"}},
		{"negative min players", []string{"-min-players", "-1"}},
		{"bad identity", []string{"-id", "bad id!"}},
		{"unknown flag", []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.args, io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigHelp(t *testing.T) {
	_, err := LoadConfig([]string{"-h"}, io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)
}
