// Package middleware exposes HTTP middleware built on accountauth.Engine.
//
// # Guards
//
//   - [Guard] validates the caller's access token and stores the
//     [accountauth.Principal] in the request context.
//   - [ClientIP] attaches the caller's address for the Engine's per-IP
//     throttles.
//
// The guard reads the Authorization bearer header first and falls back to
// the accessToken cookie.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// parse tokens itself; every decision is delegated to Engine.ValidateAccess.
package middleware
