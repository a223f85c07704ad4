package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	chat "github.com/diagnobuddy/backend/internal/service/chat"
)

func TestServiceAppendAndHistory(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	if _, err := svc.Append(ctx, "A@B.com", "headache", json.RawMessage(`{"AI_out":"rest"}`)); err != nil {
		t.Fatalf("Append err: %v", err)
	}
	if _, err := svc.Append(ctx, "a@b.com ", "fever", json.RawMessage(`{"AI_out":"fluids"}`)); err != nil {
		t.Fatalf("Append err: %v", err)
	}

	history := svc.History(ctx, "a@b.com")
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].Message != "headache" || history[1].Message != "fever" {
		t.Fatalf("unexpected order: %+v", history)
	}
	if string(history[1].Response) != `{"AI_out":"fluids"}` {
		t.Fatalf("unexpected response: %s", history[1].Response)
	}
	if history[0].ID == "" || history[0].CreatedAt.IsZero() {
		t.Fatal("entry must carry id and timestamp")
	}
}

func TestServiceAppendRequiresEmail(t *testing.T) {
	svc := chat.NewService()
	if _, err := svc.Append(context.Background(), "  ", "hi", nil); !errors.Is(err, chat.ErrEmailRequired) {
		t.Fatalf("expected ErrEmailRequired, got %v", err)
	}
}

func TestServiceHistoryIsCopy(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	svc.Append(ctx, "a@b.com", "cough", nil)

	history := svc.History(ctx, "a@b.com")
	history[0].Message = "mutated"

	if svc.History(ctx, "a@b.com")[0].Message != "cough" {
		t.Fatal("History must return a copy")
	}
}

func TestServiceDelete(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	if err := svc.Delete(ctx, "nobody@b.com"); !errors.Is(err, chat.ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}

	svc.Append(ctx, "a@b.com", "cough", nil)
	if err := svc.Delete(ctx, "a@b.com"); err != nil {
		t.Fatalf("Delete err: %v", err)
	}
	if len(svc.History(ctx, "a@b.com")) != 0 {
		t.Fatal("history should be empty after delete")
	}
	if len(svc.Emails()) != 0 {
		t.Fatal("email should be gone after delete")
	}
}

func TestServiceConcurrentAppend(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Append(ctx, "a@b.com", "ping", nil)
		}()
	}
	wg.Wait()

	if got := len(svc.History(ctx, "a@b.com")); got != 50 {
		t.Fatalf("lost updates: got %d entries", got)
	}
}
