// Package notify carries the short-lived notices ("toasts") the console shows
// after an action. They are data only; the browser renders them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"usermgmt/console/internal/kv"
)

// KeyNotices is where pending notices live in a browser's kv namespace.
const KeyNotices = "notices"

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

type Notice struct {
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Variant     Variant       `json:"variant"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"durationMs,omitempty"`
}

func Info(title, description string) Notice {
	return Notice{Title: title, Description: description, Variant: VariantDefault}
}

func Error(title, description string) Notice {
	return Notice{Title: title, Description: description, Variant: VariantDestructive}
}

// For sets how long the browser keeps the notice up.
func (n Notice) For(d time.Duration) Notice {
	n.Duration = d
	n.DurationMS = d.Milliseconds()
	return n
}

type Sink interface {
	Push(ctx context.Context, n Notice) error
}

// Queue keeps notices pending in the kv store until the next response
// drains them.
type Queue struct {
	store     kv.Store
	namespace string
	mu        sync.Mutex
}

func NewQueue(store kv.Store, namespace string) *Queue {
	return &Queue{store: store, namespace: namespace}
}

func (q *Queue) Push(ctx context.Context, n Notice) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.load(ctx)
	if err != nil {
		return err
	}
	pending = append(pending, n)

	raw, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("notify: encode: %w", err)
	}
	if err := q.store.Set(ctx, q.namespace, KeyNotices, string(raw)); err != nil {
		return fmt.Errorf("notify: write: %w", err)
	}
	return nil
}

// Drain returns the pending notices in push order and forgets them.
func (q *Queue) Drain(ctx context.Context) ([]Notice, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return []Notice{}, nil
	}
	if err := q.store.Remove(ctx, q.namespace, KeyNotices); err != nil {
		return nil, fmt.Errorf("notify: remove: %w", err)
	}
	return pending, nil
}

func (q *Queue) load(ctx context.Context) ([]Notice, error) {
	raw, ok, err := q.store.Get(ctx, q.namespace, KeyNotices)
	if err != nil {
		return nil, fmt.Errorf("notify: read: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var pending []Notice
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		// Unreadable leftovers are dropped rather than blocking new notices.
		return nil, nil
	}
	for i := range pending {
		pending[i].Duration = time.Duration(pending[i].DurationMS) * time.Millisecond
	}
	return pending, nil
}

// Recorder is an in-memory Sink.
type Recorder struct {
	mu      sync.Mutex
	Notices []Notice
}

func (r *Recorder) Push(_ context.Context, n Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notices = append(r.Notices, n)
	return nil
}

func (r *Recorder) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	titles := make([]string, 0, len(r.Notices))
	for _, n := range r.Notices {
		titles = append(titles, n.Title)
	}
	return titles
}

func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Notices) == 0 {
		return Notice{}, false
	}
	return r.Notices[len(r.Notices)-1], true
}
