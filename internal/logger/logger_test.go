package logger

import (
	"bytes"
	"testing"

	"artnetnode/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_BadLevel(t *testing.T) {
	_, err := NewLogger(config.LogConf{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWithWriter_Fields(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter("debug", &buf)
	require.NoError(t, err)
	assert.Equal(t, "debug", log.GetLevel())

	log.With(Fields{"module": "art-net"}).Info("node started")

	out := buf.String()
	assert.Contains(t, out, "node started")
	assert.Contains(t, out, "module=art-net")
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter("warn", &buf)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestDiscard(t *testing.T) {
	log := Discard()
	assert.NotPanics(t, func() {
		log.With(Fields{"module": "test"}).Error("nothing")
	})
}
