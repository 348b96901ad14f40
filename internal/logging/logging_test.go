package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerTeesEntriesIntoBuffer(t *testing.T) {
	buffer := NewBuffer()
	logger, err := New(Config{Level: "info", Format: "json"}, buffer)
	require.NoError(t, err)

	logger.Info("hello there")
	logger.Warn("careful now")

	entries := buffer.Entries()
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0].Message, "hello there")
	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, "WARN", entries[1].Level)
}

func TestBufferIsBoundedToCapacity(t *testing.T) {
	buffer := NewBuffer()
	for i := 0; i < ringCapacity+25; i++ {
		buffer.append(Entry{Message: "x"})
	}
	assert.Len(t, buffer.Entries(), ringCapacity)
}

func TestBufferClearEmptiesEntries(t *testing.T) {
	buffer := NewBuffer()
	buffer.append(Entry{Message: "x"})
	buffer.Clear()
	assert.Empty(t, buffer.Entries())
}

func TestLevelFiltersBelowConfiguredLevel(t *testing.T) {
	buffer := NewBuffer()
	logger, err := New(Config{Level: "warn", Format: "console"}, buffer)
	require.NoError(t, err)

	logger.Info("should be dropped")
	logger.Error("should be kept")

	entries := buffer.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0].Level)
}
