package client

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/diagnobuddy/backend/internal/model/chat"
	"github.com/diagnobuddy/backend/pkg/utils"
)

// GreetingTurn builds the bot's opening turn.
func GreetingTurn(text string, at time.Time) chat.Turn {
	return chat.Turn{
		ID:     uuid.NewString(),
		Sender: BotName,
		Text:   text,
		Time:   utils.FormatTime(at),
		Status: chat.TurnResolved,
	}
}

// Store is the ordered list of turns one chat window shows.
type Store struct {
	mu    sync.RWMutex
	turns []chat.Turn
}

// NewStore creates a store holding seed, typically the bot greeting.
func NewStore(seed ...chat.Turn) *Store {
	turns := make([]chat.Turn, len(seed))
	copy(turns, seed)
	return &Store{turns: turns}
}

// Append adds a turn at the end.
func (s *Store) Append(turn chat.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
}

// RemoveLast drops the most recent turn and returns it.
func (s *Store) RemoveLast() (chat.Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) == 0 {
		return chat.Turn{}, false
	}
	last := s.turns[len(s.turns)-1]
	s.turns = s.turns[:len(s.turns)-1]
	return last, true
}

// Resolve rewrites the turn with id in place. It reports false when no turn
// carries that id.
func (s *Store) Resolve(id, text, at string, status chat.TurnStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].ID != id {
			continue
		}
		s.turns[i].Text = text
		s.turns[i].Time = at
		s.turns[i].Status = status
		return true
	}
	return false
}

// Snapshot returns a copy of the turns in insertion order.
func (s *Store) Snapshot() []chat.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len reports the number of turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// HasPending reports whether a placeholder still waits for a reply.
func (s *Store) HasPending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.turns {
		if t.Pending() {
			return true
		}
	}
	return false
}
