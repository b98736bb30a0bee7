package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects a logger implementation and its output.
type Options struct {
	// Backend is "slog" (default) or "zap".
	Backend string
	// Format is "json" (default) or "text".
	Format string
	// File, when set, sends output to a size-rotated file instead of stdout.
	File  string
	Debug bool
}

// New builds a Logger from opts. The returned closer releases the file sink
// (if any) and flushes zap; it is always non-nil.
func New(opts Options) (Logger, io.Closer, error) {
	var w io.Writer = os.Stdout
	var closer io.Closer = closerFunc(func() error { return nil })

	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = lj
		closer = lj
	}

	switch opts.Backend {
	case "", "slog":
		return newSlog(w, opts), closer, nil
	case "zap":
		zl := newZap(w, opts)
		return zl, closerFunc(func() error {
			_ = zl.Sync()
			return closer.Close()
		}), nil
	default:
		return nil, nil, fmt.Errorf("unknown log backend %q", opts.Backend)
	}
}

func newSlog(w io.Writer, opts Options) *SlogLogger {
	ho := &slog.HandlerOptions{Level: slog.LevelInfo}
	if opts.Debug {
		ho.Level = slog.LevelDebug
	}
	var h slog.Handler
	if opts.Format == "text" {
		h = slog.NewTextHandler(w, ho)
	} else {
		h = slog.NewJSONHandler(w, ho)
	}
	return NewSlogLogger(slog.New(h))
}

func newZap(w io.Writer, opts Options) *ZapLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if opts.Format == "text" {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return NewZapLogger(zap.New(core))
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Nop returns a Logger that discards everything. Handy in tests.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
