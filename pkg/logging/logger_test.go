package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json").With("component", "aggregator")

	logger.Warn("Source failed", "source", "amadeus", "error", errors.New("boom"), "dangling")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "Source failed", entry["message"])
	assert.Equal(t, "aggregator", entry["component"])
	assert.Equal(t, "amadeus", entry["source"])
	assert.Equal(t, "boom", entry["error"])
	assert.NotContains(t, entry, "dangling")
}

func TestNoopLogger(t *testing.T) {
	logger := NewNoopLogger()
	assert.NotPanics(t, func() {
		logger.Info("ignored", "k", "v")
		logger.With("a", 1).Error("ignored")
	})
}
