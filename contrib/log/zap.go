package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the subset of conf.Logger this package needs; kept local
// so contrib/log has no dependency on the conf package.
type Config struct {
	Level      string
	Path       string
	Caller     bool
	MaxSize    int
	MaxAge     int
	MaxBackups int
	Compress   bool
}

// NewZap builds a production-shaped zap logger: JSON to stdout when no
// path is configured, rotated via lumberjack otherwise.
func NewZap(c Config) *zap.Logger {
	level := ParseLevel(c.Level)
	SetLevel(level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var sink zapcore.WriteSyncer
	if c.Path == "" {
		sink = zapcore.AddSync(os.Stdout)
	} else {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.Path,
			MaxSize:    orDefault(c.MaxSize, 100),
			MaxAge:     orDefault(c.MaxAge, 7),
			MaxBackups: orDefault(c.MaxBackups, 3),
			Compress:   c.Compress,
			LocalTime:  true,
		})
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level)

	opts := []zap.Option{}
	if c.Caller {
		opts = append(opts, zap.AddCaller())
	}

	return zap.New(core, opts...)
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}
