// Copyright (c) 2025-present Marko Kocić <marko@euptera.com>
// SPDX-License-Identifier: EPL-2.0
// See LICENSE for full license text.

package logging_test

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"kryptosteuer/internal/logging"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		l, err := logging.New(tt.level)
		if err != nil {
			t.Fatalf("level %q: unexpected error: %v", tt.level, err)
		}
		if !l.Core().Enabled(tt.want) {
			t.Errorf("level %q: expected %s enabled", tt.level, tt.want)
		}
		if tt.want > zapcore.DebugLevel && l.Core().Enabled(tt.want-1) {
			t.Errorf("level %q: expected %s disabled", tt.level, tt.want-1)
		}
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := logging.New("chatty"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
