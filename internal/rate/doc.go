// Package rate provides the Redis fixed-window counters behind the login
// throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - al:  login per-email
//   - ali: login per-IP
//
// A rejected check reports how long the window still has to run so the
// caller can surface it as a retry hint.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the accountauth module.
package rate
