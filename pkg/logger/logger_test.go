package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithConfig(Config{Level: DEBUG, Output: &buf}).WithField("component", "nsenter")

	log.Info("joined namespace", "ns", "ns/mnt", "err", errors.New("bad fd"))

	line := buf.String()
	assert.Contains(t, line, "[INFO] joined namespace")
	assert.Contains(t, line, `| component=nsenter err="bad fd" ns=ns/mnt`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	root := NewWithConfig(Config{Level: WARN, Output: &buf})
	child := root.WithField("component", "sequencer")

	child.Info("hidden")
	assert.Empty(t, buf.String())

	root.SetLevel(DEBUG)
	child.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithConfig(Config{Level: INFO, Output: &buf, Format: "json"})

	log.Warn("setgroups failed", "attempts", 2, "error", errors.New("EPERM"))

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "setgroups failed", record["msg"])
	assert.Equal(t, "EPERM", record["error"])
	assert.Equal(t, float64(2), record["attempts"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{in: "debug", want: DEBUG},
		{in: "WARNING", want: WARN},
		{in: "", want: INFO},
		{in: "verbose", want: INFO, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
