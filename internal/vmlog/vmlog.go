// Package vmlog wraps logrus the way grafana/k6's cloudapi.Client does
// (a logrus.FieldLogger field threaded in at construction, never a
// package-global logger): each JIT subsystem gets its own
// subsystem-tagged entry to log through.
package vmlog

import "github.com/sirupsen/logrus"

// Subsystems spec.md names implicitly through its component
// breakdown — used as the "component" field on every log line a
// subsystem emits.
const (
	Tracelet   = "tracelet"
	Codegen    = "codegen"
	Regalloc   = "regalloc"
	Prologue   = "prologue"
	Cache      = "cache"
	ServiceReq = "servicereq"
	Unwind     = "unwind"
	Engine     = "engine"
)

// For returns a logrus.Entry tagged with subsystem, derived from base.
// internal/engine constructs one base logger (e.g. from cmd/tlrun's
// cobra setup) and calls For once per subsystem it wires up.
func For(base logrus.FieldLogger, subsystem string) *logrus.Entry {
	return base.WithField("component", subsystem)
}

// NewDefault constructs a base logger with the teacher's own
// text-formatter defaults (full timestamp, no forced colors so piped
// output stays readable) — a reasonable default for cmd/tlrun and
// cmd/tldump when no embedding supplies its own logger.
func NewDefault() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}
