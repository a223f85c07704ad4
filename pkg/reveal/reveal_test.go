package reveal

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

var fast = Options{MinInterval: time.Millisecond, Budget: 5 * time.Millisecond}

func TestInterval(t *testing.T) {
	cases := []struct {
		text string
		want time.Duration
	}{
		{"", 20 * time.Millisecond},
		{"hi", 500 * time.Millisecond},
		{"abc", 333 * time.Millisecond},
		{strings.Repeat("a", 50), 20 * time.Millisecond},
		{strings.Repeat("a", 500), 20 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := Interval(tc.text, Options{}); got != tc.want {
			t.Fatalf("Interval(len=%d) = %v, want %v", len(tc.text), got, tc.want)
		}
	}
}

func TestIntervalCountsCharactersNotBytes(t *testing.T) {
	if got := Interval("héé", Options{}); got != 333*time.Millisecond {
		t.Fatalf("unexpected interval for multibyte text: %v", got)
	}
}

func TestStreamPrefixesGrowToFullText(t *testing.T) {
	text := "Drink water.\nRest well.\nSee a doctor if it persists."

	var prev string
	var frames []Frame
	for f := range Stream(context.Background(), text, fast) {
		if !strings.HasPrefix(f.Prefix, prev) || len(f.Prefix) <= len(prev) {
			t.Fatalf("prefix did not grow: %q -> %q", prev, f.Prefix)
		}
		prev = f.Prefix
		frames = append(frames, f)
	}

	if len(frames) != len([]rune(text)) {
		t.Fatalf("expected %d frames, got %d", len([]rune(text)), len(frames))
	}
	last := frames[len(frames)-1]
	if !last.Done || last.Prefix != text {
		t.Fatalf("final frame mismatch: %+v", last)
	}

	steps := 0
	for _, f := range frames {
		if f.Step {
			steps++
			if !strings.HasSuffix(f.Prefix, "\n") {
				t.Fatalf("step frame does not end in newline: %q", f.Prefix)
			}
		}
	}
	if steps != 2 {
		t.Fatalf("expected 2 step frames, got %d", steps)
	}
}

func TestStreamEmptyText(t *testing.T) {
	var frames []Frame
	for f := range Stream(context.Background(), "", fast) {
		frames = append(frames, f)
	}
	if len(frames) != 1 || !frames[0].Done || frames[0].Prefix != "" {
		t.Fatalf("unexpected frames for empty text: %+v", frames)
	}
}

func TestStreamStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	frames := Stream(ctx, strings.Repeat("x", 100), fast)

	<-frames
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after cancel")
		}
	}
}

type recorder struct {
	mu        sync.Mutex
	published []string
	steps     []string
}

func (r *recorder) publish(prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, prefix)
}

func (r *recorder) step() {
	r.mu.Lock()
	defer r.mu.Unlock()
	last := ""
	if len(r.published) > 0 {
		last = r.published[len(r.published)-1]
	}
	r.steps = append(r.steps, last)
}

func TestEffectCompletesWithFullText(t *testing.T) {
	text := "line one\nline two"
	rec := &recorder{}
	effect := NewEffect(fast)

	effect.Start(text, rec.publish, rec.step)
	effect.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if got := rec.published[len(rec.published)-1]; got != text {
		t.Fatalf("final prefix %q, want %q", got, text)
	}
	if len(rec.steps) != 2 {
		t.Fatalf("expected newline step plus completion step, got %v", rec.steps)
	}
	if rec.steps[0] != "line one\n" {
		t.Fatalf("newline step fired at %q", rec.steps[0])
	}
	if rec.steps[1] != text {
		t.Fatalf("completion step fired at %q", rec.steps[1])
	}
}

func TestEffectRestartCancelsPrevious(t *testing.T) {
	slow := Options{MinInterval: 5 * time.Millisecond, Budget: 5 * time.Millisecond}
	first := &recorder{}
	second := &recorder{}
	effect := NewEffect(slow)

	effect.Start(strings.Repeat("a", 200), first.publish, first.step)
	time.Sleep(20 * time.Millisecond)
	effect.Start("done", second.publish, second.step)

	first.mu.Lock()
	frozen := len(first.published)
	first.mu.Unlock()

	effect.Wait()

	first.mu.Lock()
	if len(first.published) != frozen {
		t.Fatalf("superseded reveal kept publishing: %d -> %d", frozen, len(first.published))
	}
	if len(first.steps) != 0 {
		t.Fatalf("superseded reveal reported completion")
	}
	first.mu.Unlock()

	second.mu.Lock()
	defer second.mu.Unlock()
	if second.published[len(second.published)-1] != "done" {
		t.Fatalf("second reveal incomplete: %v", second.published)
	}
}

func TestEffectStopIsIdempotent(t *testing.T) {
	effect := NewEffect(fast)
	effect.Stop()
	effect.Start("abc", nil, nil)
	effect.Stop()
	effect.Stop()
	effect.Wait()
}

func TestEffectCancelFromCallback(t *testing.T) {
	effect := NewEffect(fast)
	var published []string

	effect.Start("abcdef", func(prefix string) {
		published = append(published, prefix)
		if prefix == "ab" {
			effect.Cancel()
		}
	}, func() {
		t.Errorf("cancelled reveal reported completion")
	})

	finished := make(chan struct{})
	go func() {
		effect.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("reveal did not exit after Cancel from callback")
	}

	if len(published) != 2 || published[1] != "ab" {
		t.Fatalf("reveal kept publishing after Cancel: %v", published)
	}

	// The effect stays usable.
	effect.Start("xy", nil, nil)
	effect.Stop()
}
