package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLoggerWithServiceStampsEntries(t *testing.T) {
	l := NewLoggerWithService("almanac")
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.WithField("k", "v").Info("hello")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if decoded["service"] != "almanac" {
		t.Fatalf("expected service field, got %v", decoded["service"])
	}
	if decoded["k"] != "v" {
		t.Fatalf("expected k=v, got %v", decoded["k"])
	}
}

func TestNewDiscardLogger(t *testing.T) {
	l := NewDiscardLogger()
	l.Info("dropped")
}
