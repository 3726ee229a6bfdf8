package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmitsJSONWithServiceFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Environment: "production", ServiceName: "fund-distributions", Version: "1.2.3", Output: &buf})

	log.With("distribution_id", "d-1").Info().Msg("Distribution submitted")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fund-distributions", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Equal(t, "d-1", entry["distribution_id"])
	assert.Equal(t, "info", entry["level"])
}

func TestNewFallsBackToInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "nonsense", Environment: "production", Output: &buf})

	log.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
