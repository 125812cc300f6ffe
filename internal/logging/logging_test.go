package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	quiet, err := New(false)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if quiet.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug to be disabled by default")
	}

	verbose, err := New(true)
	if err != nil {
		t.Fatalf("new debug: %v", err)
	}
	if !verbose.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug to be enabled in debug mode")
	}
}
