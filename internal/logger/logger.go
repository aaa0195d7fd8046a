package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ConvertLogLevel maps a level name ("debug", "info", "warn", "error") to a logrus level.
// Unknown names fall back to info.
func ConvertLogLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// SetUpLogrusAndSlog configures the standard logrus logger and routes slog through it,
// so every package can keep logging with slog.
func SetUpLogrusAndSlog(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(ConvertLogLevel(level))

	slog.SetDefault(slog.New(NewLogrusHandler(logrus.StandardLogger())))
}

// LogrusHandler is a slog.Handler that writes records as logrus entries.
type LogrusHandler struct {
	logger *logrus.Logger
	fields logrus.Fields
	group  string
}

func NewLogrusHandler(logger *logrus.Logger) *LogrusHandler {
	return &LogrusHandler{
		logger: logger,
		fields: logrus.Fields{},
	}
}

func (h *LogrusHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.IsLevelEnabled(toLogrusLevel(level))
}

func (h *LogrusHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make(logrus.Fields, len(h.fields)+record.NumAttrs())
	for k, v := range h.fields {
		fields[k] = v
	}
	record.Attrs(func(attr slog.Attr) bool {
		h.addAttr(fields, h.group, attr)
		return true
	})

	entry := h.logger.WithFields(fields)
	if !record.Time.IsZero() {
		entry = entry.WithTime(record.Time)
	}
	entry.Log(toLogrusLevel(record.Level), record.Message)
	return nil
}

func (h *LogrusHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := make(logrus.Fields, len(h.fields)+len(attrs))
	for k, v := range h.fields {
		fields[k] = v
	}
	for _, attr := range attrs {
		h.addAttr(fields, h.group, attr)
	}
	return &LogrusHandler{logger: h.logger, fields: fields, group: h.group}
}

func (h *LogrusHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &LogrusHandler{logger: h.logger, fields: h.fields, group: group}
}

func (h *LogrusHandler) addAttr(fields logrus.Fields, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := attr.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, a := range attr.Value.Group() {
			h.addAttr(fields, key, a)
		}
		return
	}
	if err, ok := attr.Value.Any().(error); ok {
		fields[key] = err.Error()
		return
	}
	fields[key] = attr.Value.Any()
}

func toLogrusLevel(level slog.Level) logrus.Level {
	switch {
	case level >= slog.LevelError:
		return logrus.ErrorLevel
	case level >= slog.LevelWarn:
		return logrus.WarnLevel
	case level >= slog.LevelInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}
