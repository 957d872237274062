package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("production", &buf)

	logger.Info().Str("user_id", "42").Msg("login succeeded")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "login succeeded", line["message"])
	assert.Equal(t, "production", line["env"])
	assert.Equal(t, "user-console", line["service"])
	assert.Equal(t, "42", line["user_id"])
}

func TestNewWithWriter_DevelopmentIsHumanReadable(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("development", &buf)

	logger.Debug().Msg("sections fetched")

	out := buf.String()
	assert.Contains(t, out, "sections fetched")
	assert.False(t, json.Valid(buf.Bytes()))
}
