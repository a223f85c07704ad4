package client

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/diagnobuddy/backend/internal/model/chat"
	"github.com/diagnobuddy/backend/pkg/apperror"
	"github.com/diagnobuddy/backend/pkg/utils"
)

const (
	// BotName is the sender shown on bot turns.
	BotName = "DiagnoBuddy"
	// PlaceholderText is shown while a reply is on its way.
	PlaceholderText = "Typing…"
	// FallbackText replaces the placeholder when a send fails for any reason.
	FallbackText = "Sorry, I could not get a response right now. Please try again."
	// TokenTTL is the client-side lifetime of an issued session token.
	TokenTTL = 5 * time.Minute

	minMessageLength = 3
)

// Transport is the server surface the controller needs.
type Transport interface {
	IssueToken(ctx context.Context, email, message string) (chat.SessionToken, error)
	SendChat(ctx context.Context, token, email, message string) (chat.Completion, error)
}

// Controller runs one chat turn at a time: it records the user turn, shows a
// placeholder, obtains a session token when needed, relays the message and
// resolves the placeholder with the reply or the fallback text.
type Controller struct {
	store     *Store
	tokens    *TokenCache
	transport Transport
	userName  string
	email     string

	// OnChange runs after every completed submit, e.g. to scroll to the latest turn.
	OnChange func()

	mu   sync.Mutex
	busy bool
	now  func() time.Time
}

// NewController binds the controller to one user.
func NewController(store *Store, tokens *TokenCache, transport Transport, userName, email string) *Controller {
	return &Controller{
		store:     store,
		tokens:    tokens,
		transport: transport,
		userName:  userName,
		email:     email,
		now:       time.Now,
	}
}

// Busy reports whether a send is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Submit sends raw as the next user turn. It returns false without touching
// the store or the network when the trimmed text is shorter than three
// characters or another send is still in flight.
func (c *Controller) Submit(ctx context.Context, raw string) bool {
	if len([]rune(strings.TrimSpace(raw))) < minMessageLength {
		return false
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return false
	}
	c.busy = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
		if c.OnChange != nil {
			c.OnChange()
		}
	}()

	now := utils.FormatTime(c.now())
	c.store.Append(chat.Turn{
		ID:     uuid.NewString(),
		Sender: c.userName,
		Text:   raw,
		Time:   now,
		IsUser: true,
		Status: chat.TurnResolved,
	})

	placeholderID := uuid.NewString()
	c.store.Append(chat.Turn{
		ID:     placeholderID,
		Sender: BotName,
		Text:   PlaceholderText,
		Time:   now,
		Status: chat.TurnPending,
	})

	completion, err := c.send(ctx, raw)
	if err != nil {
		log.Printf("[client] send failed for %s: %v", c.email, err)
		c.store.Resolve(placeholderID, FallbackText, utils.FormatTime(c.now()), chat.TurnFailed)
		return true
	}

	c.store.Resolve(placeholderID, completion.AIOut, utils.FormatTime(c.now()), chat.TurnResolved)
	return true
}

func (c *Controller) send(ctx context.Context, message string) (chat.Completion, error) {
	token, err := c.resolveToken(ctx, message)
	if err != nil {
		return chat.Completion{}, err
	}

	completion, err := c.transport.SendChat(ctx, token, c.email, message)
	if err != nil {
		if apperror.IsKind(err, apperror.KindSession) {
			if clearErr := c.tokens.Clear(); clearErr != nil {
				log.Printf("[client] clear token cache: %v", clearErr)
			}
		}
		return chat.Completion{}, err
	}
	return completion, nil
}

// resolveToken returns the cached token, issuing a new one when there is none
// or it has expired.
func (c *Controller) resolveToken(ctx context.Context, message string) (string, error) {
	if !c.tokens.IsExpired() {
		if cached, ok := c.tokens.Get(); ok {
			return cached.Token, nil
		}
	}

	issued, err := c.transport.IssueToken(ctx, c.email, message)
	if err != nil {
		return "", err
	}
	if err := c.tokens.Put(issued.Token, TokenTTL); err != nil {
		log.Printf("[client] persist token: %v", err)
	}
	return issued.Token, nil
}
