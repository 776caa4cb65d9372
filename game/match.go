package game

import (
	"errors"
	"sort"
)

var (
	ErrNotEnoughPlayers = errors.New("game: at least two combatants are needed")
	ErrMatchRunning     = errors.New("game: match already in progress")
)

// Join adds a combatant for id unless one exists already, in which case the
// existing one is kept so a reconnecting participant resumes. The bool is
// true when a combatant was created.
func Join(w WorldState, t Tuning, id string) (WorldState, bool) {
	if _, ok := w.Combatants[id]; ok {
		return w, false
	}
	next := w.Clone()
	next.Combatants[id] = NewCombatant(t, id, NextSlot(w))
	return next, true
}

// Leave removes id's combatant. A departure is a forfeit.
func Leave(w WorldState, id string) WorldState {
	if _, ok := w.Combatants[id]; !ok {
		return w
	}
	next := w.Clone()
	delete(next.Combatants, id)
	return next
}

// Start moves a lobby into play.
func Start(w WorldState) (WorldState, error) {
	if w.Status == StatusInProgress {
		return w, ErrMatchRunning
	}
	if len(w.Combatants) < 2 {
		return w, ErrNotEnoughPlayers
	}
	next := w.Clone()
	next.Status = StatusInProgress
	next.Winner = ""
	return next, nil
}

// Rematch builds a fresh in-progress match over a new arena for everyone in
// w. Combatants are respawned in their previous slot order.
func Rematch(w WorldState, t Tuning, obstacles []Obstacle) (WorldState, error) {
	if len(w.Combatants) < 2 {
		return w, ErrNotEnoughPlayers
	}
	ids := w.IDs()
	byslot := make([]Combatant, 0, len(ids))
	for _, id := range ids {
		byslot = append(byslot, w.Combatants[id])
	}
	sort.SliceStable(byslot, func(i, j int) bool { return byslot[i].Slot < byslot[j].Slot })

	next := NewWorldState(obstacles)
	next.Status = StatusInProgress
	for i, c := range byslot {
		next.Combatants[c.ID] = NewCombatant(t, c.ID, i)
	}
	return next, nil
}
