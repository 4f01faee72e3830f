package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/ttlmemo"
)

var _ ttlmemo.Logger = LogrusLogger{}

// LogrusLogger adapts a logrus logger or entry. Every line carries
// component=ttlmemo.
type LogrusLogger struct{ L logrus.FieldLogger }

func New(l logrus.FieldLogger) LogrusLogger {
	return LogrusLogger{L: l.WithField("component", "ttlmemo")}
}

func (l LogrusLogger) Debug(msg string, f ttlmemo.Fields) {
	l.L.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l LogrusLogger) Info(msg string, f ttlmemo.Fields) { l.L.WithFields(logrus.Fields(f)).Info(msg) }
func (l LogrusLogger) Warn(msg string, f ttlmemo.Fields) { l.L.WithFields(logrus.Fields(f)).Warn(msg) }
func (l LogrusLogger) Error(msg string, f ttlmemo.Fields) {
	l.L.WithFields(logrus.Fields(f)).Error(msg)
}
