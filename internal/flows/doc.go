// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunRegister, RunLogin, RunRefresh, etc.) accepts a typed
// dependency struct and returns results without side-effects beyond those
// dependencies. The root engine builds the dependency sets once and keeps
// ownership of the repository, token manager, limiters and notifier.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import accountauth (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through dependency closures.
package flows
