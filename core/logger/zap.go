package logger

import (
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zap returns a zap logger for libraries that only accept *zap.Logger.
// Lines go to the same sinks as the slog logger once InitLogger has run.
func Zap(name string) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeFormatMillis)
	encCfg.NameKey = "component"

	var ws zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if logWriter != nil {
		ws = syncer{w: logWriter}
	}

	enc := zapcore.NewJSONEncoder(encCfg)
	if profile == "debug" || profile == "dev" {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	// gotd is chatty at debug; its lines stay one level above ours.
	lvl := zapLevel(Level())
	if lvl < zapcore.InfoLevel {
		lvl = zapcore.InfoLevel
	}

	z := zap.New(zapcore.NewCore(enc, ws, lvl))
	if name != "" {
		z = z.Named(name)
	}
	return z
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l >= slog.LevelError:
		return zapcore.ErrorLevel
	case l >= slog.LevelWarn:
		return zapcore.WarnLevel
	case l >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
