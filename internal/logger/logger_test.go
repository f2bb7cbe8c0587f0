package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{in: ""},
		{in: "info"},
		{in: "DEBUG"},
		{in: "warn"},
		{in: "warning"},
		{in: "error"},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewJSON(&buf, "warn")
	require.NoError(t, err)

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warnf("warn %d", 3)
	l.Errorf("error %d", 4)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Equal(t, "warn 3", entries[0]["message"])
	assert.Equal(t, "error", entries[1]["level"])
}

func TestWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewJSON(&buf, "debug")
	require.NoError(t, err)

	l.WithPrefix("resort").Printf("pass %d done", 7)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "resort", entries[0]["component"])
	assert.Equal(t, "pass 7 done", entries[0]["message"])
}

func TestConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "info")
	require.NoError(t, err)

	l.Warnf("shard %s missing", "file3.txt")
	assert.Contains(t, buf.String(), "shard file3.txt missing")
}

func TestNopLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NopLogger.WithPrefix("x").Errorf("ignored %v", nil)
	})
}
