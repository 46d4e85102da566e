package logging

import (
	"context"
	"io"
	"maps"

	glog "github.com/labstack/gommon/log"
)

// GommonLogger adapts a labstack/gommon logger, the one echo uses internally,
// to the Logger interface. Entries are emitted as JSON objects.
type GommonLogger struct {
	logger *glog.Logger
	fields Fields
}

// NewGommonLogger creates an adapter around a fresh gommon logger writing to w
func NewGommonLogger(prefix string, w io.Writer) *GommonLogger {
	l := glog.New(prefix)
	l.SetOutput(w)
	l.SetHeader(`{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}"}`)
	l.SetLevel(glog.INFO)
	return &GommonLogger{logger: l, fields: make(Fields)}
}

// Gommon exposes the wrapped logger so it can be installed as echo's Logger
func (g *GommonLogger) Gommon() *glog.Logger {
	return g.logger
}

func (g *GommonLogger) entry(msg string, err error, fields []Fields) glog.JSON {
	j := glog.JSON{}
	maps.Copy(j, mergeFields(g.fields, fields...))
	j["message"] = msg
	if err != nil {
		j["error"] = err.Error()
	}
	return j
}

func (g *GommonLogger) Debug(msg string, fields ...Fields) {
	g.logger.Debugj(g.entry(msg, nil, fields))
}

func (g *GommonLogger) Info(msg string, fields ...Fields) {
	g.logger.Infoj(g.entry(msg, nil, fields))
}

func (g *GommonLogger) Warn(msg string, fields ...Fields) {
	g.logger.Warnj(g.entry(msg, nil, fields))
}

func (g *GommonLogger) Error(err error, msg string, fields ...Fields) {
	g.logger.Errorj(g.entry(msg, err, fields))
}

func (g *GommonLogger) Fatal(err error, msg string, fields ...Fields) {
	g.logger.Fatalj(g.entry(msg, err, fields))
}

func (g *GommonLogger) WithFields(fields Fields) Logger {
	return &GommonLogger{logger: g.logger, fields: mergeFields(g.fields, fields)}
}

func (g *GommonLogger) WithContext(ctx context.Context) Logger {
	if fields := FieldsFromContext(ctx); len(fields) > 0 {
		return g.WithFields(fields)
	}
	return g
}

func (g *GommonLogger) SetLevel(level Level) {
	switch level {
	case DebugLevel:
		g.logger.SetLevel(glog.DEBUG)
	case InfoLevel:
		g.logger.SetLevel(glog.INFO)
	case WarnLevel:
		g.logger.SetLevel(glog.WARN)
	default:
		g.logger.SetLevel(glog.ERROR)
	}
}
