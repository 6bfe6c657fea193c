package logger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stockstream/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

// go test -v --run ^TestNewInvalidLevel$
func TestNewInvalidLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

// go test -v --run ^TestNewWritesFile$
func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "stockstream.log")

	log, err := New(config.LogConfig{Level: "info", Format: "json", OutputFile: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Info("hello", zap.String("symbol", "AAPL"))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log file to have content")
	}
}

// go test -v --run ^TestGormLoggerTrace$
func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), 10*time.Millisecond)

	fc := func() (string, int64) { return "SELECT 1", 1 }

	gl.Trace(context.Background(), time.Now(), fc, errors.New("boom"))
	gl.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)
	gl.Trace(context.Background(), time.Now(), fc, gormlogger.ErrRecordNotFound)

	if got := logs.FilterMessage("sql error").Len(); got != 1 {
		t.Errorf("sql error entries = %d, want 1", got)
	}
	if got := logs.FilterMessage("slow sql").Len(); got != 1 {
		t.Errorf("slow sql entries = %d, want 1", got)
	}

	silent := gl.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), fc, errors.New("ignored"))
	if got := logs.FilterMessage("sql error").Len(); got != 1 {
		t.Errorf("silent logger should not log, got %d sql error entries", got)
	}
}
