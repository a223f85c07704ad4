package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/diagnobuddy/backend/internal/model/chat"
)

var (
	ErrEmailRequired = errors.New("email is required")
	ErrNoHistory     = errors.New("no chat history for email")
)

// Store is a per-email chat history backend.
type Store interface {
	Append(ctx context.Context, email, message string, response json.RawMessage) (chat.HistoryEntry, error)
	History(ctx context.Context, email string) []chat.HistoryEntry
	Delete(ctx context.Context, email string) error
	Emails() []string
}

var (
	_ Store = (*Service)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// Service keeps per-email chat history in process memory. Nothing is
// persisted; a restart loses every conversation.
type Service struct {
	mu      sync.RWMutex
	history map[string][]chat.HistoryEntry
	now     func() time.Time
}

// NewService creates an empty history store.
func NewService() *Service {
	return &Service{
		history: make(map[string][]chat.HistoryEntry),
		now:     time.Now,
	}
}

// Append records one exchange for email and returns the stored entry.
func (s *Service) Append(_ context.Context, email, message string, response json.RawMessage) (chat.HistoryEntry, error) {
	email = normalizeEmail(email)
	if email == "" {
		return chat.HistoryEntry{}, ErrEmailRequired
	}

	entry := chat.HistoryEntry{
		ID:        uuid.NewString(),
		Message:   message,
		Response:  append(json.RawMessage(nil), response...),
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.history[email] = append(s.history[email], entry)
	s.mu.Unlock()

	return entry, nil
}

// History returns a copy of the stored entries for email, oldest first. An
// unknown email yields an empty slice.
func (s *Service) History(_ context.Context, email string) []chat.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[normalizeEmail(email)]
	copied := make([]chat.HistoryEntry, len(entries))
	copy(copied, entries)
	return copied
}

// Delete drops every entry for email.
func (s *Service) Delete(_ context.Context, email string) error {
	email = normalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.history[email]; !ok {
		return ErrNoHistory
	}
	delete(s.history, email)
	return nil
}

// Emails lists the addresses that currently have history, sorted.
func (s *Service) Emails() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emails := make([]string, 0, len(s.history))
	for email := range s.history {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	return emails
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
