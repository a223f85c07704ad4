// Package reveal exposes a finished bot reply one character at a time, the way
// a typing indicator does. The same cadence drives the terminal client and the
// SSE/WebSocket transports.
package reveal

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultMinInterval is the fastest cadence a reveal ever ticks at.
	DefaultMinInterval = 20 * time.Millisecond
	// DefaultBudget is the time a short reply is spread over.
	DefaultBudget = time.Second
)

// Options tunes the reveal cadence. Zero values fall back to the defaults.
type Options struct {
	MinInterval time.Duration
	Budget      time.Duration
}

func (o Options) withDefaults() Options {
	if o.MinInterval <= 0 {
		o.MinInterval = DefaultMinInterval
	}
	if o.Budget <= 0 {
		o.Budget = DefaultBudget
	}
	return o
}

// Frame is one published step of a reveal.
type Frame struct {
	Prefix string `json:"prefix"`
	Step   bool   `json:"step,omitempty"`
	Done   bool   `json:"done,omitempty"`
}

// Interval returns the per-character delay for text: the budget divided by the
// character count, floored to whole milliseconds, never below the minimum.
func Interval(text string, opts Options) time.Duration {
	opts = opts.withDefaults()
	n := len([]rune(text))
	if n == 0 {
		return opts.MinInterval
	}
	perChar := time.Duration(opts.Budget.Milliseconds()/int64(n)) * time.Millisecond
	if perChar < opts.MinInterval {
		return opts.MinInterval
	}
	return perChar
}

// run ticks through runes and emits one frame per character. It returns false
// when ctx was cancelled before the last frame.
func run(ctx context.Context, text string, opts Options, emit func(Frame) bool) bool {
	runes := []rune(text)
	if len(runes) == 0 {
		return emit(Frame{Done: true})
	}

	ticker := time.NewTicker(Interval(text, opts))
	defer ticker.Stop()

	for cursor := 0; cursor < len(runes); {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		cursor++
		frame := Frame{
			Prefix: string(runes[:cursor]),
			Step:   runes[cursor-1] == '\n',
			Done:   cursor == len(runes),
		}
		if !emit(frame) {
			return false
		}
	}
	return true
}

// Stream reveals text on the returned channel. The channel is closed after the
// final frame or when ctx is cancelled.
func Stream(ctx context.Context, text string, opts Options) <-chan Frame {
	frames := make(chan Frame)
	go func() {
		defer close(frames)
		run(ctx, text, opts, func(f Frame) bool {
			select {
			case frames <- f:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return frames
}

// Effect runs at most one reveal at a time. Starting a new reveal cancels the
// one in flight; Stop tears the current one down.
type Effect struct {
	opts Options

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEffect creates an idle Effect.
func NewEffect(opts Options) *Effect {
	return &Effect{opts: opts}
}

// Start reveals text, calling publish with every growing prefix. onStep fires
// when a newline has just been revealed and once more on completion. Either
// callback may be nil.
//
// Callbacks run on the reveal goroutine and must not call Start or Stop on the
// same Effect, since both wait for that goroutine to exit. Use Cancel instead.
func (e *Effect) Start(text string, publish func(prefix string), onStep func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done

	go func() {
		defer close(done)
		defer cancel()
		run(ctx, text, e.opts, func(f Frame) bool {
			if ctx.Err() != nil {
				return false
			}
			if publish != nil {
				publish(f.Prefix)
			}
			if onStep != nil && f.Step {
				onStep()
			}
			if onStep != nil && f.Done {
				onStep()
			}
			return true
		})
	}()
}

// Stop cancels the running reveal and waits for it to exit, so no callback
// fires after Stop returns.
func (e *Effect) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// Cancel stops the running reveal without waiting for it to exit. It is safe
// to call from publish or onStep; no further callback fires once it returns.
func (e *Effect) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// Wait blocks until the current reveal finishes or is stopped.
func (e *Effect) Wait() {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (e *Effect) stopLocked() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil
}
