package zap

import (
	"github.com/unkn0wn-root/tenantredis"
	"go.uber.org/zap"
)

var _ tenantredis.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New tags every entry with component=tenantredis.
func New(l *zap.Logger) ZapLogger {
	return ZapLogger{L: l.With(zap.String("component", "tenantredis"))}
}

func (z ZapLogger) Debug(msg string, f tenantredis.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f tenantredis.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f tenantredis.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f tenantredis.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f tenantredis.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
