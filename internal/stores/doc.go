// Package stores provides Redis-backed, short-lived records for the
// authentication flows.
//
// # Design
//
// The revocation store keeps one key per revoked token ID with a TTL equal to
// the token's remaining lifetime, so the denylist never outgrows the set of
// tokens that could still verify.
//
// # What this package must NOT do
//
//   - Import accountauth or any sibling internal package.
//   - Log or expose token material beyond the token ID.
package stores
