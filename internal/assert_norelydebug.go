//go:build !relydebug

package internal

// DebugAssert is a no-op in default builds: per §7's error-handling
// policy, an invariant breach is a core bug, not a condition release
// builds spend cycles checking or can recover from by panicking.
func DebugAssert(cond bool, msg string) {}
