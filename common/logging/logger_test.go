package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/telhawk-systems/telhawk-sensor/common/middleware"
)

func TestNewWithWriter(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		wantJSON bool
	}{
		{name: "json format", format: "json", wantJSON: true},
		{name: "text format", format: "text", wantJSON: false},
		{name: "unknown format falls back to json", format: "logfmt", wantJSON: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, slog.LevelInfo, tt.format)
			logger.Info("rotation complete", "file", "eve.json")

			var decoded map[string]any
			isJSON := json.Unmarshal(buf.Bytes(), &decoded) == nil
			if isJSON != tt.wantJSON {
				t.Errorf("json output = %v, want %v (output: %s)", isJSON, tt.wantJSON, buf.String())
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelWarn, "json")

	logger.Info("dropped")
	logger.Warn("kept")

	output := buf.String()
	if strings.Contains(output, "dropped") {
		t.Errorf("info message should be filtered at warn level, got: %s", output)
	}
	if !strings.Contains(output, "kept") {
		t.Errorf("warn message missing, got: %s", output)
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	tests := []struct {
		name        string
		ctx         context.Context
		expectReqID bool
	}{
		{
			name:        "context with request ID",
			ctx:         context.WithValue(context.Background(), middleware.RequestIDKey, "req-7f3a"),
			expectReqID: true,
		},
		{
			name:        "context without request ID",
			ctx:         context.Background(),
			expectReqID: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			logger.WithContext(tt.ctx).Info("rule appended")

			hasID := strings.Contains(buf.String(), `"request_id":"req-7f3a"`)
			if hasID != tt.expectReqID {
				t.Errorf("request_id present = %v, want %v (output: %s)", hasID, tt.expectReqID, buf.String())
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")

	FromContext(ctx, base).Info("reload requested")

	if !strings.Contains(buf.String(), "req-42") {
		t.Errorf("expected request ID in output, got: %s", buf.String())
	}

	if FromContext(context.Background(), nil) == nil {
		t.Fatal("expected default logger for nil input")
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json").With(Service("sensor"))
	logger.Info("started")

	if !strings.Contains(buf.String(), `"service":"sensor"`) {
		t.Errorf("expected service field, got: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	var buf bytes.Buffer
	SetDefault(NewWithWriter(&buf, slog.LevelInfo, "json"))
	slog.Info("via default")

	if !strings.Contains(buf.String(), "via default") {
		t.Errorf("expected default logger to write to buffer, got: %s", buf.String())
	}
}
