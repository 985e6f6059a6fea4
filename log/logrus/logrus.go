package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/tenantredis"
)

var _ tenantredis.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

func New(l *logrus.Logger) LogrusLogger {
	return LogrusLogger{E: l.WithField("component", "tenantredis")}
}

func (l LogrusLogger) Debug(msg string, f tenantredis.Fields) { l.entry(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f tenantredis.Fields)  { l.entry(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f tenantredis.Fields)  { l.entry(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f tenantredis.Fields) { l.entry(f).Error(msg) }

// entry moves an "err" field to logrus' error key.
func (l LogrusLogger) entry(f tenantredis.Fields) *logrus.Entry {
	e := l.E
	if err, ok := f["err"].(error); ok {
		e = e.WithError(err)
		rest := make(logrus.Fields, len(f))
		for k, v := range f {
			if k != "err" {
				rest[k] = v
			}
		}
		return e.WithFields(rest)
	}
	return e.WithFields(logrus.Fields(f))
}
