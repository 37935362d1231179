// Package tracing adapts the teacher's syslib/debug Printer shape onto
// a structured zap logger. Call sites ask tracing.For(name) for a
// Printer the way the original asked debug.For(name); the default
// logger is a no-op so the hot paths of the bitset engine and the
// operation planner pay nothing when diagnostics are disabled.
package tracing

import "go.uber.org/zap"

// Printer is the call shape every package in this module logs through.
type Printer interface {
	Debugf(fmtstr string, a ...interface{})
	Debugw(msg string, kv ...interface{})
}

var base = zap.NewNop()

// SetLogger installs the process-wide *zap.Logger backing every
// Printer returned by For. Passing nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	base = l
}

type printer struct {
	name string
}

// For returns a Printer scoped to name, mirroring debug.For(fname) in
// the teacher repo. The Printer looks up the installed logger on each
// call, so SetLogger also reaches Printers created before it.
func For(name string) Printer {
	return &printer{name: name}
}

// sugar returns the installed logger scoped to p's name, or nil when
// that logger has debug output disabled (as the no-op default does).
func (p *printer) sugar() *zap.SugaredLogger {
	if !base.Core().Enabled(zap.DebugLevel) {
		return nil
	}
	return base.Sugar().Named(p.name)
}

func (p *printer) Debugf(fmtstr string, a ...interface{}) {
	if l := p.sugar(); l != nil {
		l.Debugf(fmtstr, a...)
	}
}

func (p *printer) Debugw(msg string, kv ...interface{}) {
	if l := p.sugar(); l != nil {
		l.Debugw(msg, kv...)
	}
}
