// Package logging wraps the debug/trace sink of spec.md §4.9 and the
// configuration-fatal error path of §7 behind a small interface, so
// core packages depend on a DebugSink, not a concrete *zap.Logger.
package logging

import (
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// DebugSink is the human-readable debug channel spec.md treats as a
// leaf utility.
type DebugSink interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	// Fatal logs msg at fatal severity and then invokes the
	// platform-reset primitive (spec.md §7: "emits a short
	// human-readable message ... and triggers an unconditional
	// hardware reset via watchdog after a grace delay").
	Fatal(msg string, err error)
}

// Watchdog is the minimal reset primitive Fatal needs; satisfied by
// internal/hal.Watchdog without importing that package here.
type Watchdog interface {
	Reset()
}

// zapSink is the production DebugSink, backed by zap.
type zapSink struct {
	logger    *zap.SugaredLogger
	watchdog  Watchdog
	graceWait time.Duration
}

// NewZapSink builds a DebugSink over logger that resets via watchdog
// after graceWait on Fatal, following the teacher's
// zap.NewProduction()/defer logger.Sync() pattern in main.go.
func NewZapSink(logger *zap.Logger, watchdog Watchdog, graceWait time.Duration) DebugSink {
	return &zapSink{logger: logger.Sugar(), watchdog: watchdog, graceWait: graceWait}
}

func (s *zapSink) Debugf(format string, args ...any) { s.logger.Debugf(format, args...) }
func (s *zapSink) Infof(format string, args ...any)   { s.logger.Infof(format, args...) }

func (s *zapSink) Fatal(msg string, err error) {
	s.logger.Errorw("configuration-fatal error, resetting", "msg", msg, "error", err, "grace", humanize.RelTime(time.Now(), time.Now().Add(s.graceWait), "", ""))
	time.Sleep(s.graceWait)
	s.watchdog.Reset()
}

// FormatAutoOffRemaining renders a human-readable "time until auto-off"
// string for operator-facing log lines, e.g. "9 minutes " (RelTime is
// called with empty labels, which leaves a trailing space).
func FormatAutoOffRemaining(now, lastSwitchMS, autoOffMS uint32) string {
	remaining := int64(autoOffMS) - int64(now-lastSwitchMS)
	if remaining < 0 {
		remaining = 0
	}
	base := time.Now()
	return humanize.RelTime(base, base.Add(time.Duration(remaining)*time.Millisecond), "", "")
}
