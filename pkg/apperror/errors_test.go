package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := Upstream("completion payload malformed", errors.New("missing AI_out"))
	wrapped := fmt.Errorf("relay: %w", base)

	kind, ok := KindOf(wrapped)
	if !ok || kind != KindUpstream {
		t.Fatalf("expected upstream kind, got %q (ok=%v)", kind, ok)
	}
	if !IsKind(wrapped, KindUpstream) {
		t.Fatal("expected IsKind to match upstream")
	}
	if IsKind(wrapped, KindValidation) {
		t.Fatal("did not expect validation kind")
	}
	if MessageOf(wrapped) != "completion payload malformed" {
		t.Fatalf("unexpected message: %s", MessageOf(wrapped))
	}
}

func TestMessageOfPlainError(t *testing.T) {
	if got := MessageOf(errors.New("boom")); got != "boom" {
		t.Fatalf("unexpected message: %s", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation: http.StatusBadRequest,
		KindSession:    http.StatusUnauthorized,
		KindNetwork:    http.StatusBadGateway,
		KindUpstream:   http.StatusBadGateway,
		Kind("other"):  http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := HTTPStatus(kind); got != want {
			t.Fatalf("kind %s: got %d want %d", kind, got, want)
		}
	}
}
