package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/IvanchikIvanov/newwave/game"
)

const (
	recorderQueue     = 64
	recorderBatch     = 16
	recorderFlushTime = 5 * time.Second
)

// ParticipantResult is one combatant's line in a match result.
type ParticipantResult struct {
	ID       string
	Slot     int
	HP       int
	Kills    int
	Survived bool
}

// MatchResult describes a concluded match.
type MatchResult struct {
	SessionID    string
	Winner       string
	Ticks        uint64
	StartedAt    time.Time
	EndedAt      time.Time
	Participants []ParticipantResult
}

func (r MatchResult) Duration() time.Duration { return r.EndedAt.Sub(r.StartedAt) }

// NewMatchResult captures the final state of a match.
func NewMatchResult(sessionID string, start, end time.Time, w game.WorldState) MatchResult {
	r := MatchResult{
		SessionID: sessionID,
		Winner:    w.Winner,
		Ticks:     w.Tick,
		StartedAt: start,
		EndedAt:   end,
	}
	for _, id := range w.IDs() {
		c := w.Combatants[id]
		r.Participants = append(r.Participants, ParticipantResult{
			ID:       id,
			Slot:     c.Slot,
			HP:       c.HP,
			Kills:    c.Kills,
			Survived: c.Active,
		})
	}
	return r
}

// matchStore is where the recorder writes batches.
type matchStore interface {
	RecordMatches(ctx context.Context, results []MatchResult) error
}

// Recorder persists match results off the tick goroutine.
type Recorder struct {
	store   matchStore
	events  chan MatchResult
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	log     zerolog.Logger
	dropped int
	mu      sync.Mutex
}

// NewRecorder starts the background writer.
func NewRecorder(store matchStore, log zerolog.Logger) *Recorder {
	r := &Recorder{
		store:  store,
		events: make(chan MatchResult, recorderQueue),
		stop:   make(chan struct{}),
		log:    log.With().Str("component", "recorder").Logger(),
	}
	r.wg.Add(1)
	go r.writer()
	return r
}

// Track enqueues a result. It never blocks the caller.
func (r *Recorder) Track(res MatchResult) {
	select {
	case r.events <- res:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		r.log.Warn().Str("session", res.SessionID).Msg("recorder queue full, result dropped")
	}
}

// Dropped returns how many results were discarded because the queue was full.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Stop flushes what is queued and waits for the writer to exit.
func (r *Recorder) Stop() {
	r.once.Do(func() {
		close(r.stop)
		r.wg.Wait()
	})
}

func (r *Recorder) writer() {
	defer r.wg.Done()

	batch := make([]MatchResult, 0, recorderBatch)
	ticker := time.NewTicker(recorderFlushTime)
	defer ticker.Stop()

	for {
		select {
		case res := <-r.events:
			batch = append(batch, res)
			if len(batch) >= recorderBatch {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-r.stop:
			for {
				select {
				case res := <-r.events:
					batch = append(batch, res)
				default:
					r.flush(batch)
					return
				}
			}
		}
	}
}

func (r *Recorder) flush(batch []MatchResult) {
	if r.store == nil || len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.store.RecordMatches(ctx, batch); err != nil {
		r.log.Error().Err(err).Int("results", len(batch)).Msg("record matches")
		return
	}
	r.log.Debug().Int("results", len(batch)).Msg("matches recorded")
}
