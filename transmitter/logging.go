package transmitter

import (
	"github.com/sirupsen/logrus"
)

// LoggerHelper accumulates logrus fields for one backend operation.
type LoggerHelper struct {
	fields logrus.Fields
}

// NewLogger returns a helper tagged with the backend package and function.
func NewLogger(pkg, function string) *LoggerHelper {
	return &LoggerHelper{
		fields: logrus.Fields{
			"function": function,
			"package":  pkg,
		},
	}
}

// WithField adds one field.
func (l *LoggerHelper) WithField(key string, value interface{}) *LoggerHelper {
	l.fields[key] = value
	return l
}

// WithFields adds several fields.
func (l *LoggerHelper) WithFields(fields logrus.Fields) *LoggerHelper {
	for k, v := range fields {
		l.fields[k] = v
	}
	return l
}

// WithAddress records addr under key along with its address type.
func (l *LoggerHelper) WithAddress(key string, addr Address) *LoggerHelper {
	if addr == nil {
		l.fields[key] = "<nil>"
		return l
	}
	l.fields[key] = addr.String()
	l.fields[key+"_type"] = addr.Type().String()
	return l
}

// WithError records err, its Kind and the operation that failed.
func (l *LoggerHelper) WithError(err error, operation string) *LoggerHelper {
	if err == nil {
		return l
	}
	l.fields["error"] = err.Error()
	l.fields["error_kind"] = KindOf(err).String()
	l.fields["operation"] = operation
	return l
}

func (l *LoggerHelper) Debug(message string) { logrus.WithFields(l.fields).Debug(message) }
func (l *LoggerHelper) Info(message string)  { logrus.WithFields(l.fields).Info(message) }
func (l *LoggerHelper) Warn(message string)  { logrus.WithFields(l.fields).Warn(message) }
func (l *LoggerHelper) Error(message string) { logrus.WithFields(l.fields).Error(message) }
