package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/diagnobuddy/backend/internal/model/chat"
	"github.com/diagnobuddy/backend/internal/service/ai"
	"github.com/diagnobuddy/backend/pkg/apperror"
)

const (
	// NoEmailMessage is returned when a request carries no email.
	NoEmailMessage = "No email provided"
	// EmptyMessageMessage is returned when the user sent nothing to answer.
	EmptyMessageMessage = "I apologize for any confusion, but I'm unable to provide any assistance without a clear description of your symptoms or health concerns. If you're experiencing any specific symptoms or have any health-related questions, please let me know, and I'll do my best to help you."
	// UpstreamFailureMessage is the user-facing text for completion failures.
	UpstreamFailureMessage = "The assistant is unavailable right now"
)

// HistoryStore is the part of the chat history service the relay needs.
type HistoryStore interface {
	Append(ctx context.Context, email, message string, response json.RawMessage) (chat.HistoryEntry, error)
	History(ctx context.Context, email string) []chat.HistoryEntry
}

// Service forwards user messages to the completion provider and records each
// successful exchange.
type Service struct {
	completer ai.Completer
	history   HistoryStore
}

// NewService wires the relay to its collaborators.
func NewService(completer ai.Completer, history HistoryStore) (*Service, error) {
	if completer == nil {
		return nil, errors.New("relay: completer must not be nil")
	}
	if history == nil {
		return nil, errors.New("relay: history store must not be nil")
	}
	return &Service{completer: completer, history: history}, nil
}

// Handle answers message for email. The completion payload is returned as the
// upstream produced it.
func (s *Service) Handle(ctx context.Context, email, message string) (chat.Completion, error) {
	if err := ValidateInput(email, message); err != nil {
		return chat.Completion{}, err
	}

	completion, err := s.completer.Complete(ctx, ai.Request{
		Email:   email,
		Message: message,
		History: s.history.History(ctx, email),
	})
	if err != nil {
		log.Printf("[relay] completion failed for %s: %v", email, err)
		return chat.Completion{}, apperror.Upstream(UpstreamFailureMessage, err)
	}

	if _, err := s.history.Append(ctx, email, message, completion.Payload()); err != nil {
		// The user already has an answer; losing the history line is logged only.
		log.Printf("[relay] failed to record history for %s: %v", email, err)
	} else {
		log.Printf("[relay] history for %s now holds %d entries", email, len(s.history.History(ctx, email)))
	}

	return completion, nil
}

// ValidateInput rejects a request without an email or without a message, in
// that order.
func ValidateInput(email, message string) error {
	if strings.TrimSpace(email) == "" {
		return apperror.Validation(NoEmailMessage)
	}
	if strings.TrimSpace(message) == "" {
		return apperror.Validation(EmptyMessageMessage)
	}
	return nil
}
