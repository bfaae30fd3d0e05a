// Package window tracks each user's recent evaluation probabilities in a
// bounded FIFO and derives the cumulative-exposure intervention signal.
package window

import (
	"math"
	"sync"

	"github.com/rs/zerolog"
)

// Config sets the window bounds. Zero fields fall back to the calibrated
// defaults (size 5, probability floor 0.5, intervention threshold 1.8).
type Config struct {
	Size                  int
	MinProb               float64
	InterventionThreshold float64
}

func (c Config) withDefaults() Config {
	if c.Size <= 0 {
		c.Size = 5
	}
	if c.MinProb == 0 {
		c.MinProb = 0.5
	}
	if c.InterventionThreshold == 0 {
		c.InterventionThreshold = 1.8
	}
	return c
}

// Decision is the triple returned for every push: the window contents after
// the push, the cumulative sum of entries above the floor, and whether the
// intervention threshold has been crossed.
type Decision struct {
	Window       []float64 `json:"window"`
	Cumulative   float64   `json:"cumulative"`
	Intervention bool      `json:"intervention"`
}

type userWindow struct {
	mu     sync.Mutex
	values []float64
}

// Store keeps one bounded window per user key. Entries are created lazily on
// first push and live for the process lifetime unless reset. Pushes for
// different users never contend on the same lock; the registry lock is held
// only long enough to look up or create an entry.
type Store struct {
	mu     sync.Mutex
	users  map[string]*userWindow
	cfg    Config
	logger zerolog.Logger
}

// NewStore constructs an empty window store.
func NewStore(cfg Config, logger zerolog.Logger) *Store {
	return &Store{
		users:  make(map[string]*userWindow),
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "exposure_window").Logger(),
	}
}

func (s *Store) entry(userID string) *userWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.users[userID]
	if !ok {
		w = &userWindow{}
		s.users[userID] = w
	}
	return w
}

// Push appends a probability to the user's window and returns the resulting
// decision. Non-finite values are silently discarded but the current decision
// is still computed and returned. Append, eviction, and the cumulative
// recomputation form one critical section per user.
func (s *Store) Push(userID string, prob float64) Decision {
	w := s.entry(userID)

	w.mu.Lock()
	defer w.mu.Unlock()

	if math.IsNaN(prob) || math.IsInf(prob, 0) {
		s.logger.Debug().Str("user_id", userID).Msg("discarding non-finite probability")
	} else {
		w.values = append(w.values, prob)
		if len(w.values) > s.cfg.Size {
			w.values = w.values[len(w.values)-s.cfg.Size:]
		}
	}

	return s.decide(w.values)
}

// Decide computes the decision for the user's current window without
// mutating it. Used as the fallback when an evaluation fails before a
// probability exists.
func (s *Store) Decide(userID string) Decision {
	w := s.entry(userID)
	w.mu.Lock()
	defer w.mu.Unlock()
	return s.decide(w.values)
}

// Snapshot returns a copy of the user's window, oldest first. Unseen users
// yield an empty slice and no entry is created for them.
func (s *Store) Snapshot(userID string) []float64 {
	s.mu.Lock()
	w, ok := s.users[userID]
	s.mu.Unlock()
	if !ok {
		return []float64{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]float64, len(w.values))
	copy(out, w.values)
	return out
}

// Reset clears one user's window.
func (s *Store) Reset(userID string) {
	s.mu.Lock()
	w, ok := s.users[userID]
	if ok {
		delete(s.users, userID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	// Let an in-flight push on the old entry finish before it is dropped.
	w.mu.Lock()
	w.values = nil
	w.mu.Unlock()
}

func (s *Store) decide(values []float64) Decision {
	out := make([]float64, len(values))
	copy(out, values)

	var cumulative float64
	for _, v := range out {
		if v > s.cfg.MinProb {
			cumulative += v
		}
	}

	return Decision{
		Window:       out,
		Cumulative:   cumulative,
		Intervention: cumulative > s.cfg.InterventionThreshold,
	}
}
