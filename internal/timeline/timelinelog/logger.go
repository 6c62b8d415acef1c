// Package timelinelog provides the engine's redirectable log sink.
package timelinelog

import "log"

// Logf is the package-level log sink. Tests and embedders may replace it
// via SetLogger; production code should never call log.Printf directly.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger redirects Logf. Passing nil silences logging entirely.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Tracef logs per-sample detail: routing decisions, sleep-thinning, edge moves.
func Tracef(format string, v ...interface{}) {
	Logf("trace: "+format, v...)
}

// Diagf logs per-item decisions: merges, deletions, link repairs.
func Diagf(format string, v ...interface{}) {
	Logf("diag: "+format, v...)
}

// Opsf logs persistence/config/transport errors.
func Opsf(format string, v ...interface{}) {
	Logf("ops: "+format, v...)
}
