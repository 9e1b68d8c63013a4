// Package accountauth is an account authentication engine: registration,
// email verification, password login with optional delegated multi-factor
// verification, password reset through emailed one-time codes, and signed
// access and refresh tokens.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. Storage, email delivery, the MFA
// provider and object storage are supplied as interfaces
// ([AccountRepository], [Notifier], [MFAProvider], [ObjectStore]).
//
// # Architecture boundaries
//
// accountauth is the public surface. It exposes [Engine], [Builder],
// [Config], the typed [Error] and value types. Flow orchestration, Redis
// throttles, the revocation denylist, OTP and mail rendering live under
// internal/ and are never exported.
//
// Every failure returned by an Engine method is an *[Error] whose Kind maps
// onto an HTTP status through [StatusCode].
package accountauth
