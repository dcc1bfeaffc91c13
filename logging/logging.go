// Package logging wires up the gateway's structured event log: a logrus
// logger writing to a daily-rotating file via goblimey/go-tools/dailylogger,
// the same rotation scheme the teacher's rtcmlogger and ntripserver use for
// their own event logs.
package logging

import (
	"github.com/goblimey/go-tools/dailylogger"
	"github.com/sirupsen/logrus"
)

// New returns a logrus.Logger writing JSON-formatted entries to a
// date-stamped file in dir named "<prefix><date><suffix>", rolling over
// at midnight exactly as dailylogger does for the teacher's event logs.
func New(dir, prefix string) *logrus.Logger {
	rotatingFile := dailylogger.New(dir, prefix, ".log")

	logger := logrus.New()
	logger.SetOutput(rotatingFile)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	return logger
}

// ConnectionLogger returns a FieldLogger scoped to one TCP connection,
// tagging every entry with its connection id the way bramburn-gnssgo's
// caster tags each HTTP request with a request_id.
func ConnectionLogger(base logrus.FieldLogger, connectionID, remoteAddr string) logrus.FieldLogger {
	return base.WithFields(logrus.Fields{
		"connection_id": connectionID,
		"remote_addr":   remoteAddr,
	})
}
