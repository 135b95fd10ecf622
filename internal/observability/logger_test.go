package observability

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLoggerAppliesLevel(t *testing.T) {
	logger, err := NewLogger("warn", false)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("error should be enabled at warn level")
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger("loud", true); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
