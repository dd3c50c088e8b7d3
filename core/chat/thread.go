package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/practicehub/core"
)

// DefaultPollInterval is how often an open thread re-fetches its messages.
const DefaultPollInterval = 3 * time.Second

type Options struct {
	PollInterval time.Duration
	Logger       core.Logger

	// OnUpdate receives every message list applied to the thread.
	// It runs on the polling goroutine and must not call Close.
	OnUpdate func(msgs []Message)
}

// Thread is the message view of one enrollment. While open, it re-fetches the whole list on a
// fixed interval and replaces what it holds with the server's answer.
type Thread struct {
	api          API
	viewer       Viewer
	enrollmentID core.ID
	interval     time.Duration
	logger       core.Logger
	onUpdate     func(msgs []Message)

	mu       sync.Mutex
	messages []Message
	draft    string
	gen      uint64 // bumped by Open and Close; results of older generations are dropped
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewThread(api API, viewer Viewer, enrollmentID core.ID, opts Options) *Thread {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Thread{
		api:          api,
		viewer:       viewer,
		enrollmentID: enrollmentID,
		interval:     interval,
		logger:       logger,
		onUpdate:     opts.OnUpdate,
	}
}

func (t *Thread) EnrollmentID() core.ID { return t.enrollmentID }

// Open loads the thread, marks it read and starts polling until Close or ctx is done.
// A failed initial load is returned and nothing is started.
func (t *Thread) Open(ctx context.Context) error {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return ErrThreadOpen
	}
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	msgs, err := t.api.Messages(ctx, t.enrollmentID)
	if err != nil {
		return errors.Wrapf(err, "loading thread %s", t.enrollmentID)
	}

	t.apply(gen, msgs)

	pctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	if t.gen != gen || t.cancel != nil {
		// closed or reopened while loading
		t.mu.Unlock()
		cancel()
		return nil
	}
	t.cancel = cancel
	t.done = make(chan struct{})
	done := t.done
	go t.poll(pctx, gen, done)
	t.mu.Unlock()

	t.markRead(ctx)
	return nil
}

// Close stops polling and waits for an in-flight tick to finish. It is a no-op on a closed thread.
func (t *Thread) Close() {
	t.mu.Lock()
	t.gen++
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (t *Thread) poll(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msgs, err := t.api.Messages(ctx, t.enrollmentID)
			if err != nil {
				if ctx.Err() == nil {
					t.logger.Warn("chat poll failed", errors.Wrapf(err, "polling thread %s", t.enrollmentID))
				}
				continue
			}
			t.apply(gen, msgs)
		}
	}
}

// Refresh fetches the thread out of band.
func (t *Thread) Refresh(ctx context.Context) error {
	t.mu.Lock()
	gen := t.gen
	t.mu.Unlock()

	msgs, err := t.api.Messages(ctx, t.enrollmentID)
	if err != nil {
		return errors.Wrapf(err, "refreshing thread %s", t.enrollmentID)
	}
	t.apply(gen, msgs)
	return nil
}

// apply replaces the list. The last response to arrive wins, even if it was sent earlier.
func (t *Thread) apply(gen uint64, msgs []Message) {
	t.mu.Lock()
	if t.gen != gen {
		t.mu.Unlock()
		return
	}
	t.messages = msgs
	t.mu.Unlock()

	if t.onUpdate != nil {
		t.onUpdate(copyMessages(msgs))
	}
}

func (t *Thread) markRead(ctx context.Context) {
	if err := t.api.MarkRead(ctx, t.enrollmentID); err != nil {
		t.logger.Warn("marking thread read", errors.Wrapf(err, "marking thread %s read", t.enrollmentID))
	}
}

// Messages returns the last list received from the server.
func (t *Thread) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyMessages(t.messages)
}

func (t *Thread) SetDraft(text string) {
	t.mu.Lock()
	t.draft = text
	t.mu.Unlock()
}

func (t *Thread) Draft() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draft
}

// Send posts the draft. A blank draft sends nothing. On success the draft is cleared and the
// thread refreshed; on failure the draft is kept for a retry.
func (t *Thread) Send(ctx context.Context) error {
	text := strings.TrimSpace(t.Draft())
	if text == "" {
		return nil
	}
	if err := t.api.SendMessage(ctx, t.enrollmentID, text); err != nil {
		return errors.Wrapf(err, "sending to thread %s", t.enrollmentID)
	}
	t.SetDraft("")

	if err := t.Refresh(ctx); err != nil {
		t.logger.Warn("refresh after send failed", err)
	}
	t.markRead(ctx)
	return nil
}

// IsMine reports whether the viewer wrote msg: both the sender type and the sender id must match.
func (t *Thread) IsMine(msg Message) bool {
	s := t.viewer.Current()
	if s.User == nil {
		return false
	}
	sender := SenderFor(s.Role)
	return sender != "" && msg.SenderType == sender && msg.SenderID == s.User.ID
}

func copyMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	return append(make([]Message, 0, len(msgs)), msgs...)
}
