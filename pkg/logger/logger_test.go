package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name:    "valid config with info level",
			cfg:     &Config{Level: "info"},
			wantErr: false,
		},
		{
			name:    "valid config with debug level",
			cfg:     &Config{Level: "debug"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     &Config{Level: "invalid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestNewWithFileOutput(t *testing.T) {
	cfg := &Config{
		Level: "info",
		File:  filepath.Join(t.TempDir(), "logs", "igrelay.log"),
	}
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger == nil {
		t.Fatal("New() returned nil logger")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

// newBufferLogger builds a logger writing JSON lines into buf
func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	return &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	t.Run("Debug", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		if !strings.Contains(buf.String(), "debug message") {
			t.Error("Debug message not found in output")
		}
	})

	t.Run("Info", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")
		if !strings.Contains(buf.String(), "info message") {
			t.Error("Info message not found in output")
		}
	})

	t.Run("Warn", func(t *testing.T) {
		buf.Reset()
		logger.Warn("warn message")
		if !strings.Contains(buf.String(), "warn message") {
			t.Error("Warn message not found in output")
		}
	})

	t.Run("Error", func(t *testing.T) {
		buf.Reset()
		logger.Error("error message")
		if !strings.Contains(buf.String(), "error message") {
			t.Error("Error message not found in output")
		}
	})
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	derived := logger.WithFields(map[string]interface{}{
		"username": "natgeo",
		"items":    3,
	})
	derived.Info("forwarding")

	out := buf.String()
	for _, fragment := range []string{"forwarding", "natgeo", `"items":3`} {
		if !strings.Contains(out, fragment) {
			t.Errorf("Output %q missing %q", out, fragment)
		}
	}

	// The parent logger carries no fields
	buf.Reset()
	logger.Info("plain")
	if strings.Contains(buf.String(), "natgeo") {
		t.Error("Parent logger must not inherit derived fields")
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.WithError(errors.New("boom")).Error("delivery failed")
	if !strings.Contains(buf.String(), "boom") {
		t.Error("Error detail not found in output")
	}

	// A nil error is a no-op and returns the same logger
	if logger.WithError(nil) != Logger(logger) {
		t.Error("WithError(nil) should return the receiver")
	}
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.InfoWithFields("typed", map[string]interface{}{
		"str":      "value",
		"int":      42,
		"float":    1.5,
		"bool":     true,
		"duration": 2 * time.Second,
		"list":     []string{"a", "b"},
	})

	out := buf.String()
	for _, fragment := range []string{`"str":"value"`, `"int":42`, `"bool":true`, `"list":["a","b"]`} {
		if !strings.Contains(out, fragment) {
			t.Errorf("Output %q missing %q", out, fragment)
		}
	}
}

func TestGetLoggerFallback(t *testing.T) {
	globalLogger = nil
	if GetLogger() == nil {
		t.Error("GetLogger() must never return nil")
	}
}
