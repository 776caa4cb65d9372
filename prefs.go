package main

import (
	"encoding/json"
	"fmt"

	"github.com/quasilyte/gdata"
)

const (
	AppName  = "newwave"
	prefsKey = "prefs"
)

// Prefs is what a peer remembers between runs.
type Prefs struct {
	Identity string `json:"identity"`
	LastJoin string `json:"lastJoin,omitempty"`
	Wire     string `json:"wire,omitempty"`
}

// itemStore is the part of gdata.Manager prefs need.
type itemStore interface {
	LoadItem(key string) ([]byte, error)
	SaveItem(key string, data []byte) error
}

// OpenPrefsStore opens the per-user data directory.
func OpenPrefsStore() (itemStore, error) {
	m, err := gdata.Open(gdata.Config{AppName: AppName})
	if err != nil {
		return nil, fmt.Errorf("open prefs: %w", err)
	}
	return m, nil
}

// LoadPrefs reads the saved prefs. A missing or unreadable item yields fresh
// prefs with a newly minted identity, which is saved right away so the
// identity stays stable across runs.
func LoadPrefs(store itemStore) (Prefs, error) {
	var p Prefs
	data, err := store.LoadItem(prefsKey)
	if err == nil && len(data) > 0 {
		if jerr := json.Unmarshal(data, &p); jerr != nil {
			p = Prefs{}
		}
	}
	if p.Identity != "" && validIdentity(p.Identity) {
		return p, nil
	}
	p.Identity = NewIdentity()
	if err := SavePrefs(store, p); err != nil {
		return p, err
	}
	return p, nil
}

func SavePrefs(store itemStore, p Prefs) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := store.SaveItem(prefsKey, data); err != nil {
		return fmt.Errorf("save prefs: %w", err)
	}
	return nil
}
