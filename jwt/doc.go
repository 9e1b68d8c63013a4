// Package jwt mints and verifies the signed, expiring tokens used by the
// account engine: email verification, access, refresh, password reset and
// MFA session tokens. Each kind has its own HS256 secret and lifetime and
// carries a kind claim that is checked on every parse.
package jwt
