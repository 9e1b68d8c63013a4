// Package password hashes and verifies account passwords with Argon2id and
// checks new passwords against a composition policy.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the
// caller can re-hash after the next successful login.
//
// This package never stores passwords and never logs them.
package password
