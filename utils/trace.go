package utils

import (
	"crypto/rand"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

const (
	traceIDPrefix   = "ERR-"
	traceIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	traceIDLength   = 6
)

// NewTraceID mints a short correlation token (e.g. "ERR-4K7Q2N") attached to
// internal-error responses so a user-visible failure can be matched to
// backend logs. Success and insufficient-credit responses never carry one.
func NewTraceID() string {
	buf := make([]byte, traceIDLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is a platform problem; fall back to a fixed
		// marker rather than panicking on an error path.
		return traceIDPrefix + "000000"
	}
	for i, b := range buf {
		buf[i] = traceIDAlphabet[int(b)%len(traceIDAlphabet)]
	}
	return traceIDPrefix + string(buf)
}

// LogError logs an internal error with structured context to both console and
// Sentry, keyed by its trace id.
func LogError(traceID, errorType string, err error, context map[string]interface{}) {
	log := logrus.WithFields(logrus.Fields{
		"trace_id":   traceID,
		"error_type": errorType,
		"error":      err.Error(),
	})
	for k, v := range context {
		log = log.WithField(k, v)
	}
	log.Error("Error occurred")

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("trace_id", traceID)
		scope.SetTag("error_type", errorType)
		for k, v := range context {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// LogEvent logs a notable non-error event with structured context.
func LogEvent(eventType string, data map[string]interface{}) {
	log := logrus.WithFields(logrus.Fields{
		"event_type": eventType,
	})
	for k, v := range data {
		log = log.WithField(k, v)
	}
	log.Info("Event occurred")

	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "info",
		Category:  eventType,
		Data:      data,
		Timestamp: time.Now(),
	})
}
