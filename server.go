package main

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SetupRoutes configures the host's HTTP surface. db may be nil.
func SetupRoutes(hub *Hub, host *Host, auth *Auth, db *DB, invite string, log zerolog.Logger) *http.ServeMux {
	log = log.With().Str("component", "http").Logger()
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		q := r.URL.Query()

		if !auth.AllowJoin(ip, time.Now()) {
			http.Error(w, "too many join attempts", http.StatusTooManyRequests)
			return
		}
		sid, err := auth.ValidateInvite(q.Get("token"))
		if err != nil || sid != host.SessionID() {
			http.Error(w, "invalid invite", http.StatusUnauthorized)
			return
		}
		if err := auth.CheckPassword(r.Header.Get(passwordHeader)); err != nil {
			http.Error(w, "wrong password", http.StatusForbidden)
			return
		}
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		id := q.Get("id")
		if id == "" {
			id = NewIdentity()
		} else if !validIdentity(id) {
			http.Error(w, "bad identity", http.StatusBadRequest)
			return
		}
		codec, err := CodecByName(q.Get("wire"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Str("ip", ip).Msg("upgrade failed")
			return
		}

		hub.TrackConnect(ip)
		c := NewConn(ws, id, ip, codec, trackedHandler{ConnHandler: host, hub: hub, ip: ip}, log)
		host.Connect(c)

		go c.WritePump()
		go c.ReadPump()
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, host.Summary())
	})

	mux.HandleFunc("/invite.png", func(w http.ResponseWriter, r *http.Request) {
		png, err := InvitePNG(invite, 256)
		if err != nil {
			log.Error().Err(err).Msg("invite qr")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(png)
	})

	mux.HandleFunc("/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			http.Error(w, ErrNoDatabase.Error(), http.StatusNotFound)
			return
		}
		rows, err := db.WinCounts(r.Context(), 20)
		if err != nil {
			log.Error().Err(err).Msg("leaderboard query")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []WinCount{}
		}
		writeJSON(w, rows)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// trackedHandler releases the hub slot once a connection's read pump exits.
type trackedHandler struct {
	ConnHandler
	hub *Hub
	ip  string
}

func (t trackedHandler) OnClose(c *Conn, err error) {
	t.hub.TrackDisconnect(t.ip)
	t.ConnHandler.OnClose(c, err)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(v)
}
