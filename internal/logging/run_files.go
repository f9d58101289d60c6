package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/lestrrat-go/strftime"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const dailyPattern = "%Y-%m-%d.log"

// RunFiles owns the per-day (UTC) run log files. Files older than the
// retention window are purged by rotatelogs on rotation.
type RunFiles struct {
	dir     string
	pattern *strftime.Strftime
	writer  *rotatelogs.RotateLogs
	now     func() time.Time
}

func NewRunFiles(dir string, retention time.Duration) (*RunFiles, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve log dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	p, err := strftime.New(dailyPattern)
	if err != nil {
		return nil, err
	}

	opts := []rotatelogs.Option{
		rotatelogs.WithClock(rotatelogs.UTC),
		rotatelogs.WithRotationTime(24 * time.Hour),
	}
	if retention > 0 {
		opts = append(opts, rotatelogs.WithMaxAge(retention))
	}
	w, err := rotatelogs.New(filepath.Join(abs, dailyPattern), opts...)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}

	return &RunFiles{dir: abs, pattern: p, writer: w, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Today returns the name and absolute path of the file runs started now log to.
func (f *RunFiles) Today() (fileName, filePath string) {
	fileName = f.pattern.FormatString(f.now())
	return fileName, filepath.Join(f.dir, fileName)
}

// Logger returns a JSON logger writing to the current day's file.
func (f *RunFiles) Logger(level string) *zap.Logger {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(f.writer), LevelFromString(level))
	return zap.New(core)
}

func (f *RunFiles) Close() error {
	return f.writer.Close()
}
