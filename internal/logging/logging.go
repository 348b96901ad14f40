// Package logging builds the gateway's zap logger and maintains a bounded
// in-memory ring of recent log entries for the dashboard's log viewer.
package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ringCapacity mirrors the original dashboard's 100-entry log buffer.
const ringCapacity = 100

// Entry is one record surfaced through the log viewer endpoint.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// Buffer is a fixed-capacity, thread-safe FIFO of recent log entries.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
}

// NewBuffer returns an empty buffer ready to receive entries.
func NewBuffer() *Buffer {
	return &Buffer{entries: make([]Entry, 0, ringCapacity)}
}

func (b *Buffer) append(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	if len(b.entries) > ringCapacity {
		b.entries = b.entries[len(b.entries)-ringCapacity:]
	}
}

// Entries returns a snapshot of the buffered log entries, oldest first.
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = b.entries[:0]
}

// bufferCore is a zapcore.Core that appends every log entry it sees to a
// Buffer, independent of whatever other cores are writing to disk/stdout.
type bufferCore struct {
	zapcore.LevelEnabler
	buffer *Buffer
	fields []zapcore.Field
}

func newBufferCore(buffer *Buffer, enabler zapcore.LevelEnabler) *bufferCore {
	return &bufferCore{LevelEnabler: enabler, buffer: buffer}
}

func (c *bufferCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &bufferCore{LevelEnabler: c.LevelEnabler, buffer: c.buffer, fields: merged}
}

func (c *bufferCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *bufferCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "M",
		ConsoleSeparator: " ",
	})
	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)
	buf, err := enc.EncodeEntry(ent, all)
	if err != nil {
		return err
	}
	defer buf.Free()
	c.buffer.append(Entry{
		Timestamp: ent.Time,
		Level:     ent.Level.CapitalString(),
		Message:   buf.String(),
	})
	return nil
}

func (c *bufferCore) Sync() error { return nil }

// Config controls how the base logger is constructed.
type Config struct {
	Level    string // debug, info, warn, error
	Format   string // "console" or "json"
	FilePath string // optional additional output path, beyond stderr
}

// New builds a *zap.Logger that writes to stderr in the configured format
// and tees every entry into buffer as well, so the dashboard can surface
// recent activity without tailing a file.
func New(cfg Config, buffer *Buffer) (*zap.Logger, error) {
	level := parseLevel(cfg.Level)

	var encoderConfig zapcore.EncoderConfig
	encoding := cfg.Format
	if encoding == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	} else {
		encoding = "json"
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := []string{"stderr"}
	if cfg.FilePath != "" {
		outputPaths = append(outputPaths, cfg.FilePath)
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddCaller(), zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		if buffer == nil {
			return core
		}
		return zapcore.NewTee(core, newBufferCore(buffer, zap.NewAtomicLevelAt(level)))
	}))
	if err != nil {
		return nil, err
	}
	return logger, nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
