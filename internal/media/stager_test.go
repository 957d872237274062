package media

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13}

func TestPrepare(t *testing.T) {
	tests := []struct {
		name     string
		up       Upload
		wantErr  error
		wantMIME string
		wantName string
	}{
		{"png keeps name", Upload{Name: "me.png", ContentType: "text/plain", Data: pngBytes}, nil, "image/png", "me.png"},
		{"unnamed gets extension", Upload{Data: []byte{0xff, 0xd8, 0xff, 0xe0}}, nil, "image/jpeg", "avatar.jpg"},
		{"empty", Upload{Name: "x.png"}, ErrEmptyUpload, "", ""},
		{"text", Upload{Name: "x.png", Data: []byte("hello world")}, ErrNotImage, "", ""},
		{"too large", Upload{Data: make([]byte, MaxUploadBytes+1)}, ErrTooLarge, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Prepare(tt.up)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMIME, got.ContentType)
			assert.Equal(t, tt.wantName, got.Name)
		})
	}
}

func TestPrepare_SanitisesSVG(t *testing.T) {
	got, err := Prepare(Upload{Name: "a.svg", Data: []byte(`<svg onload="x()"><script>x()</script></svg>`)})
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", got.ContentType)
	assert.Equal(t, "<svg></svg>", string(got.Data))
}

func TestMemoryStager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStager()

	st, err := m.Stage(ctx, Upload{Name: "me.png", Data: pngBytes})
	require.NoError(t, err)
	assert.NotEmpty(t, st.ID)
	assert.Nil(t, st.Data)
	assert.Equal(t, int64(len(pngBytes)), st.Size)

	opened, err := m.Open(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, opened.Data)
	assert.Equal(t, "image/png", opened.MIME)

	require.NoError(t, m.Discard(ctx, st.ID))
	_, err = m.Open(ctx, st.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStager_Purge(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStager()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	m.now = func() time.Time { return base }
	old, err := m.Stage(ctx, Upload{Data: pngBytes})
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(2 * time.Hour) }
	fresh, err := m.Stage(ctx, Upload{Data: pngBytes})
	require.NoError(t, err)

	n, err := m.Purge(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = m.Open(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Open(ctx, fresh.ID)
	assert.NoError(t, err)
}
