// Package media takes in avatar files chosen in the browser and keeps them
// staged until the profile or signup form that chose them is submitted.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"usermgmt/console/internal/ids"
	"usermgmt/console/internal/media/sniffer"
	"usermgmt/console/internal/media/svg"
)

// MaxUploadBytes caps a single avatar.
const MaxUploadBytes = 5 << 20

var (
	ErrNotFound    = errors.New("staged file not found")
	ErrTooLarge    = errors.New("file too large")
	ErrEmptyUpload = errors.New("empty upload")
	ErrNotImage    = errors.New("file is not a supported image")
)

// Upload is a file as the browser handed it over.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Staged describes a file held for preview. Data is only filled by Open.
type Staged struct {
	ID        string
	Name      string
	MIME      string
	Size      int64
	CreatedAt time.Time
	Data      []byte
}

type Stager interface {
	Stage(ctx context.Context, up Upload) (Staged, error)
	Open(ctx context.Context, id string) (Staged, error)
	Discard(ctx context.Context, id string) error
	Purge(ctx context.Context, olderThan time.Time) (int, error)
}

// Prepare validates an upload by content and returns it with a trusted
// content type. SVG documents come back sanitised.
func Prepare(up Upload) (Upload, error) {
	if len(up.Data) == 0 {
		return Upload{}, ErrEmptyUpload
	}
	if len(up.Data) > MaxUploadBytes {
		return Upload{}, ErrTooLarge
	}

	res, err := sniffer.Sniff(up.Data)
	if err != nil {
		return Upload{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	data := up.Data
	if res.Type == sniffer.TypeSVG {
		if data, err = svg.Sanitize(data); err != nil {
			return Upload{}, fmt.Errorf("%w: %v", ErrNotImage, err)
		}
	}

	name := up.Name
	if name == "" {
		name = "avatar" + res.Ext()
	}
	return Upload{Name: name, ContentType: res.MIME, Data: data}, nil
}

type MemoryStager struct {
	mu    sync.RWMutex
	files map[string]Staged
	now   func() time.Time
}

func NewMemoryStager() *MemoryStager {
	return &MemoryStager{
		files: make(map[string]Staged),
		now:   time.Now,
	}
}

func (m *MemoryStager) Stage(ctx context.Context, up Upload) (Staged, error) {
	if err := ctx.Err(); err != nil {
		return Staged{}, err
	}
	clean, err := Prepare(up)
	if err != nil {
		return Staged{}, err
	}

	st := Staged{
		ID:        ids.New(),
		Name:      clean.Name,
		MIME:      clean.ContentType,
		Size:      int64(len(clean.Data)),
		CreatedAt: m.now(),
		Data:      bytes.Clone(clean.Data),
	}

	m.mu.Lock()
	m.files[st.ID] = st
	m.mu.Unlock()

	st.Data = nil
	return st, nil
}

func (m *MemoryStager) Open(ctx context.Context, id string) (Staged, error) {
	if err := ctx.Err(); err != nil {
		return Staged{}, err
	}
	m.mu.RLock()
	st, ok := m.files[id]
	m.mu.RUnlock()
	if !ok {
		return Staged{}, ErrNotFound
	}
	st.Data = bytes.Clone(st.Data)
	return st, nil
}

func (m *MemoryStager) Discard(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.files, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStager) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for id, st := range m.files {
		if st.CreatedAt.Before(olderThan) {
			delete(m.files, id)
			purged++
		}
	}
	return purged, nil
}
