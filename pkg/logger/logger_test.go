package logger

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func TestInitAndGet(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	l := Get()
	if l == nil {
		t.Fatal("Get returned nil after Init")
	}

	ctx := context.Background()
	// Exercise all levels; output goes to stdout, we only assert no panic.
	l.Debug(ctx, "debug line", String("k", "v"))
	l.Info(ctx, "info line", Int("n", 1), Int64("n64", 2), Float64("f", 0.5))
	l.Warn(ctx, "warn line", Any("x", []int{1, 2}))
	l.Error(ctx, "error line", Error(errors.New("boom")))

	named := l.Named("sub")
	if named == nil {
		t.Fatal("Named returned nil")
	}
	named.Info(ctx, "named line")
}

func TestSetLevelString(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	cases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"Error", slog.LevelError, false},
		{"verbose", 0, true},
	}
	for _, c := range cases {
		err := SetLevelString(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("SetLevelString(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("SetLevelString(%q): unexpected error %v", c.in, err)
			continue
		}
		if got := levelVar.Level(); got != c.want {
			t.Errorf("SetLevelString(%q): level = %v, want %v", c.in, got, c.want)
		}
	}
}
