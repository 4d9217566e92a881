package logger

import "testing"

func TestGetReturnsSharedLogger(t *testing.T) {
	first := Get()
	second := Get()
	if first == nil {
		t.Fatal("Get() returned nil")
	}
	if first != second {
		t.Error("Get() must hand out the same logger instance")
	}
	// Chained event building must work on the returned logger.
	Get().Info().Str("component", "logger").Msg("ready")
}

func TestHelpersDoNotPanic(t *testing.T) {
	Info("info message")
	Warn("warn message")
	Error("error message", nil)
	Debug("debug message")
}
