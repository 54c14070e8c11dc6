package log

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewAccessLog builds a bare zap.Logger that writes one pre-formatted
// line per call with no added timestamp/level prefix, rotated through
// lumberjack, or written to stdout when path is empty. Grounded on the
// teacher's server/mod/accesslog.go newAccessLog, which builds the exact
// same stripped-encoder shape so the caller controls the entire line
// format.
func NewAccessLog(path string) *zap.Logger {
	var sink zapcore.WriteSyncer = zapcore.AddSync(os.Stdout)
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     1,
			LocalTime:  true,
			Compress:   false,
		})
	}

	cfg := zap.NewProductionConfig().EncoderConfig
	cfg.ConsoleSeparator = " "
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {}
	cfg.EncodeLevel = func(_ zapcore.Level, _ zapcore.PrimitiveArrayEncoder) {}

	return zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		sink,
		zapcore.InfoLevel,
	))
}
