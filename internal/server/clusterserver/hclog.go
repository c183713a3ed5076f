package clusterserver

import (
	"bytes"
	"context"
	"io"
	"log"
	"log/slog"

	"github.com/hashicorp/go-hclog"
)

// hclogAdapter adapts slog.Logger to the hashicorp/go-hclog.Logger
// interface used by the hashicorp libraries.
type hclogAdapter struct {
	logger *slog.Logger
	name   string
}

// NewHCLogAdapter returns an hclog.Logger writing to logger.
func NewHCLogAdapter(logger *slog.Logger, name string) hclog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &hclogAdapter{logger: logger.With("subsystem", name), name: name}
}

func (l *hclogAdapter) Log(level hclog.Level, msg string, args ...any) {
	l.logger.Log(context.Background(), slogLevel(level), msg, args...)
}

func (l *hclogAdapter) Trace(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *hclogAdapter) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *hclogAdapter) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *hclogAdapter) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *hclogAdapter) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *hclogAdapter) enabled(level slog.Level) bool {
	return l.logger.Enabled(context.Background(), level)
}

func (l *hclogAdapter) IsTrace() bool { return false }
func (l *hclogAdapter) IsDebug() bool { return l.enabled(slog.LevelDebug) }
func (l *hclogAdapter) IsInfo() bool  { return l.enabled(slog.LevelInfo) }
func (l *hclogAdapter) IsWarn() bool  { return l.enabled(slog.LevelWarn) }
func (l *hclogAdapter) IsError() bool { return l.enabled(slog.LevelError) }

func (l *hclogAdapter) ImpliedArgs() []any { return nil }

func (l *hclogAdapter) With(args ...any) hclog.Logger {
	return &hclogAdapter{logger: l.logger.With(args...), name: l.name}
}

func (l *hclogAdapter) Name() string { return l.name }

func (l *hclogAdapter) Named(name string) hclog.Logger {
	full := name
	if l.name != "" {
		full = l.name + "." + name
	}
	return &hclogAdapter{logger: l.logger.With("subsystem", full), name: full}
}

func (l *hclogAdapter) ResetNamed(name string) hclog.Logger {
	return &hclogAdapter{logger: l.logger.With("subsystem", name), name: name}
}

// SetLevel is a no-op: the slog handler owns the level.
func (l *hclogAdapter) SetLevel(level hclog.Level) {}

func (l *hclogAdapter) GetLevel() hclog.Level {
	switch {
	case l.IsDebug():
		return hclog.Debug
	case l.IsInfo():
		return hclog.Info
	case l.IsWarn():
		return hclog.Warn
	default:
		return hclog.Error
	}
}

func (l *hclogAdapter) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(l.StandardWriter(opts), "", 0)
}

func (l *hclogAdapter) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	w := &levelWriter{logger: l.logger, level: hclog.Info}
	if opts != nil {
		w.infer = opts.InferLevels
		if opts.ForceLevel != hclog.NoLevel {
			w.level = opts.ForceLevel
		}
	}
	return w
}

func slogLevel(level hclog.Level) slog.Level {
	switch level {
	case hclog.Trace, hclog.Debug:
		return slog.LevelDebug
	case hclog.Warn:
		return slog.LevelWarn
	case hclog.Error:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// levelWriter turns standard library log lines into slog records. With
// infer set, a leading "[LEVEL]" tag selects the record level.
type levelWriter struct {
	logger *slog.Logger
	level  hclog.Level
	infer  bool
}

var levelTags = []struct {
	tag   []byte
	level hclog.Level
}{
	{[]byte("[TRACE]"), hclog.Trace},
	{[]byte("[DEBUG]"), hclog.Debug},
	{[]byte("[INFO]"), hclog.Info},
	{[]byte("[WARN]"), hclog.Warn},
	{[]byte("[ERR]"), hclog.Error},
	{[]byte("[ERROR]"), hclog.Error},
}

func (w *levelWriter) Write(p []byte) (int, error) {
	line := bytes.TrimSpace(p)
	level := w.level
	if w.infer {
		for _, t := range levelTags {
			if bytes.HasPrefix(line, t.tag) {
				level = t.level
				line = bytes.TrimSpace(line[len(t.tag):])
				break
			}
		}
	}
	w.logger.Log(context.Background(), slogLevel(level), string(line))
	return len(p), nil
}
