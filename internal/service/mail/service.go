package mail

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/diagnobuddy/backend/internal/model/chat"
	"github.com/diagnobuddy/backend/internal/service/ai"
	"github.com/diagnobuddy/backend/pkg/apperror"
)

const (
	Subject = "DiagnoBuddy Chats"
	Intro   = "See below your chat session with Us."

	EmailNotProvidedMessage = "email not provided"
	NoChatHistoryMessage    = "No chat to send"
	FieldsRequiredMessage   = "all fields are required"
	SendFailedMessage       = "problem sending chat"
	SentMessage             = "Chat successfully sent, check mailbox"
)

// Message is one outbound email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Sender delivers an email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// HistoryReader is the part of the chat history service the mailer needs.
type HistoryReader interface {
	History(ctx context.Context, email string) []chat.HistoryEntry
}

// Service mails a user's chat history to them.
type Service struct {
	from    string
	sender  Sender
	history HistoryReader
}

// NewService creates the mailer. from is the AUTH_EMAIL sender identity.
func NewService(from string, sender Sender, history HistoryReader) (*Service, error) {
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("mail: sender address must not be empty")
	}
	if sender == nil {
		return nil, errors.New("mail: sender must not be nil")
	}
	if history == nil {
		return nil, errors.New("mail: history reader must not be nil")
	}
	return &Service{from: from, sender: sender, history: history}, nil
}

// SendChat emails the stored history for email and returns a confirmation.
func (s *Service) SendChat(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", apperror.Validation(EmailNotProvidedMessage)
	}

	entries := s.history.History(ctx, email)
	if len(entries) == 0 {
		return "", apperror.Validation(NoChatHistoryMessage)
	}

	msg := Message{
		From:    s.from,
		To:      email,
		Subject: Subject,
		HTML:    renderHistory(Intro, entries),
	}
	if msg.To == "" || msg.Subject == "" || msg.HTML == "" {
		return "", apperror.Validation(FieldsRequiredMessage)
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		log.Printf("[mail] sending history to %s failed: %v", email, err)
		return "", apperror.Network(SendFailedMessage, err)
	}

	log.Printf("[mail] sent %d history entries to %s", len(entries), email)
	return SentMessage, nil
}

func renderHistory(intro string, entries []chat.HistoryEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(intro))
	b.WriteString("<ol>\n")
	for _, entry := range entries {
		reply := string(entry.Response)
		if completion, err := ai.DecodeCompletion(entry.Response); err == nil {
			reply = completion.AIOut
		}
		fmt.Fprintf(&b, "<li><p><strong>You:</strong> %s</p><p><strong>DiagnoBuddy:</strong> %s</p></li>\n",
			html.EscapeString(entry.Message),
			strings.ReplaceAll(html.EscapeString(reply), "\n", "<br>"),
		)
	}
	b.WriteString("</ol>")
	return b.String()
}
