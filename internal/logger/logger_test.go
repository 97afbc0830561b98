package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerToWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, "release")
	t.Cleanup(func() { Logger = nil })

	Debug("hidden in release mode")
	Info("database connected", "db", "pdf_query_system")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "database connected", entry["msg"])
	assert.Equal(t, "pdf_query_system", entry["db"])
}
