package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/diagnobuddy/backend/internal/model/chat"
)

type fakeServer struct {
	mu         sync.Mutex
	calls      []string
	tokens     []string
	chatStatus int
	reply      string
	nullReply  bool
	chatGate   chan struct{}
	chatSeen   chan struct{}
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.URL.Path)
	f.tokens = append(f.tokens, r.Header.Get("X-Session-Id"))
	status := f.chatStatus
	gate := f.chatGate
	seen := f.chatSeen
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/session":
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"sessionId": "issued-token",
			"expiresAt": time.Now().Add(time.Minute).UnixMilli(),
		})
	case "/api/chat":
		if seen != nil {
			seen <- struct{}{}
		}
		if gate != nil {
			<-gate
		}
		if status != 0 && status != http.StatusOK {
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]string{"error": "upstream broke"})
			return
		}
		data := map[string]any{"AI_out": f.reply}
		if f.nullReply {
			data["AI_out"] = nil
		}
		json.NewEncoder(w).Encode(map[string]any{
			"sessionId": r.Header.Get("X-Session-Id"),
			"data":      data,
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeServer) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

type harness struct {
	server     *fakeServer
	store      *Store
	cache      *TokenCache
	controller *Controller
	changes    int
}

func newHarness(t *testing.T, server *fakeServer) *harness {
	t.Helper()
	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)

	api, err := NewAPIClient(srv.URL)
	require.NoError(t, err)

	h := &harness{
		server: server,
		store:  NewStore(GreetingTurn("Hello!", time.Now())),
		cache:  NewTokenCache(NewMemoryStorage()),
	}
	h.controller = NewController(h.store, h.cache, api, "Ada", "ada@example.com")
	h.controller.OnChange = func() { h.changes++ }
	return h
}

func TestSubmitIgnoresShortInput(t *testing.T) {
	h := newHarness(t, &fakeServer{reply: "hi"})

	require.False(t, h.controller.Submit(context.Background(), "ok"))
	require.False(t, h.controller.Submit(context.Background(), "   ok   "))

	require.Equal(t, 1, h.store.Len())
	require.Empty(t, h.server.paths())
	require.Zero(t, h.changes)
}

func TestSubmitResolvesPlaceholderWithReply(t *testing.T) {
	h := newHarness(t, &fakeServer{reply: "Drink water and rest."})

	require.True(t, h.controller.Submit(context.Background(), "I have a headache"))

	turns := h.store.Snapshot()
	require.Len(t, turns, 3)
	require.True(t, turns[1].IsUser)
	require.Equal(t, "Ada", turns[1].Sender)
	require.Equal(t, "I have a headache", turns[1].Text)
	require.Equal(t, "Drink water and rest.", turns[2].Text)
	require.Equal(t, chat.TurnResolved, turns[2].Status)
	require.False(t, h.store.HasPending())
	require.False(t, h.controller.Busy())
	require.Equal(t, 1, h.changes)
	require.Equal(t, []string{"/api/session", "/api/chat"}, h.server.paths())
}

func TestSubmitReusesValidToken(t *testing.T) {
	h := newHarness(t, &fakeServer{reply: "ok then"})
	require.NoError(t, h.cache.Put("cached-token", time.Minute))

	require.True(t, h.controller.Submit(context.Background(), "hello there"))
	require.Equal(t, []string{"/api/chat"}, h.server.paths())
	require.Equal(t, "cached-token", h.server.tokens[0])
}

func TestSubmitReissuesExpiredToken(t *testing.T) {
	h := newHarness(t, &fakeServer{reply: "ok then"})
	require.NoError(t, h.cache.Put("stale-token", time.Minute))
	h.cache.now = func() time.Time { return time.Now().Add(time.Hour) }

	require.True(t, h.controller.Submit(context.Background(), "hello there"))
	require.Equal(t, []string{"/api/session", "/api/chat"}, h.server.paths())
	require.Equal(t, "issued-token", h.server.tokens[1])
}

func TestSubmitUpstreamFailureLeavesOneFallbackTurn(t *testing.T) {
	h := newHarness(t, &fakeServer{chatStatus: http.StatusBadGateway})

	require.True(t, h.controller.Submit(context.Background(), "I have a fever"))

	turns := h.store.Snapshot()
	require.Len(t, turns, 3)
	require.Equal(t, FallbackText, turns[2].Text)
	require.Equal(t, chat.TurnFailed, turns[2].Status)
	require.False(t, h.store.HasPending())
	require.False(t, h.controller.Busy())
	require.Equal(t, 1, h.changes)
}

func TestSubmitNullReplyFallsBack(t *testing.T) {
	h := newHarness(t, &fakeServer{nullReply: true})

	require.True(t, h.controller.Submit(context.Background(), "I have a headache"))

	turns := h.store.Snapshot()
	require.Len(t, turns, 3)
	require.Equal(t, FallbackText, turns[2].Text)
	require.False(t, h.store.HasPending())
}

func TestSubmitUnauthorizedClearsToken(t *testing.T) {
	h := newHarness(t, &fakeServer{chatStatus: http.StatusUnauthorized})
	require.NoError(t, h.cache.Put("revoked", time.Minute))

	require.True(t, h.controller.Submit(context.Background(), "still there?"))

	_, ok := h.cache.Get()
	require.False(t, ok)
	require.Equal(t, FallbackText, h.store.Snapshot()[2].Text)
}

func TestSubmitRejectedWhileBusy(t *testing.T) {
	server := &fakeServer{
		reply:    "done",
		chatGate: make(chan struct{}),
		chatSeen: make(chan struct{}, 1),
	}
	h := newHarness(t, server)

	done := make(chan bool)
	go func() {
		done <- h.controller.Submit(context.Background(), "first message")
	}()

	select {
	case <-server.chatSeen:
	case <-time.After(5 * time.Second):
		t.Fatal("chat request never arrived")
	}

	require.True(t, h.controller.Busy())
	require.False(t, h.controller.Submit(context.Background(), "second message"))

	close(server.chatGate)
	require.True(t, <-done)
	require.Len(t, h.store.Snapshot(), 3)
	require.False(t, h.controller.Busy())
}
