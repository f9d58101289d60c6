package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := LevelFromString(in); got != want {
			t.Fatalf("LevelFromString(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestRunFiles_TodayAndLogger(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files, err := NewRunFiles(dir, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewRunFiles() error: %v", err)
	}
	defer files.Close()

	fixed := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	files.now = func() time.Time { return fixed }

	name, path := files.Today()
	if name != "2026-10-18.log" {
		t.Fatalf("expected 2026-10-18.log, got %q", name)
	}
	if filepath.Dir(path) != files.dir {
		t.Fatalf("expected path inside %q, got %q", files.dir, path)
	}

	files.now = func() time.Time { return time.Now().UTC() }
	_, todayPath := files.Today()

	lg := files.Logger("info").With(zap.Int64("logId", 5))
	lg.Info("JOB_START", zap.String("reason", "test"))
	_ = lg.Sync()

	b, err := os.ReadFile(todayPath)
	if err != nil {
		t.Fatalf("expected run log at %q: %v", todayPath, err)
	}
	line := string(b)
	if !strings.Contains(line, `"msg":"JOB_START"`) || !strings.Contains(line, `"logId":5`) {
		t.Fatalf("unexpected log content %q", line)
	}
}
