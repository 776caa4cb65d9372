package main

import "sync"

const (
	defaultMaxConnsPerIP = 4
	defaultMaxTotalConns = 32
)

// Hub tracks open websocket connections so the host can refuse new ones past
// its caps. It is touched from HTTP handlers and read pumps.
type Hub struct {
	mu         sync.Mutex
	ipConns    map[string]int
	totalConns int
	maxTotal   int
	maxPerIP   int
}

// NewHub creates a hub. Non-positive limits fall back to the defaults.
func NewHub(maxTotal, maxPerIP int) *Hub {
	if maxTotal <= 0 {
		maxTotal = defaultMaxTotalConns
	}
	if maxPerIP <= 0 {
		maxPerIP = defaultMaxConnsPerIP
	}
	return &Hub{
		ipConns:  make(map[string]int),
		maxTotal: maxTotal,
		maxPerIP: maxPerIP,
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.totalConns >= h.maxTotal {
		return false
	}
	return h.ipConns[ip] < h.maxPerIP
}

func (h *Hub) TrackConnect(ip string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// TotalConns returns the tracked connection count.
func (h *Hub) TotalConns() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totalConns
}
