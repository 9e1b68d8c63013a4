// Package limiters provides the domain-specific Redis throttles that sit in
// front of the account flows.
//
// # Limiters
//
//   - [RegistrationLimiter]: per-email + per-IP throttle for sign-ups.
//   - [ResetOTPLimiter]: per-email + per-IP throttle for reset OTP checks.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # Architecture boundaries
//
// Each limiter owns its own Redis key namespace and error types. Policy thresholds
// come from Config structs supplied at construction time.
//
// # What this package must NOT do
//
//   - Import accountauth or any sibling internal package.
//   - Make policy decisions beyond counting. Flow functions decide consequences.
package limiters
