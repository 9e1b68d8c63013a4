package internaldefs

import (
	accountauth "github.com/MrEthical07/accountauth"
)

// CounterDef binds an engine counter to its exported names. Name is the
// Prometheus series; Flow and Outcome split it for OTel attributes.
type CounterDef struct {
	ID      accountauth.MetricID
	Name    string
	Flow    string
	Outcome string
	Help    string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   accountauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: accountauth.MetricRegisterSuccess, Name: "accountauth_register_success_total", Flow: "register", Outcome: "success", Help: "Accounts registered."},
	{ID: accountauth.MetricRegisterConflict, Name: "accountauth_register_conflict_total", Flow: "register", Outcome: "conflict", Help: "Registrations rejected because the email is taken."},
	{ID: accountauth.MetricRegisterRateLimited, Name: "accountauth_register_rate_limited_total", Flow: "register", Outcome: "rate_limited", Help: "Rate-limited registration attempts."},
	{ID: accountauth.MetricEmailVerificationSuccess, Name: "accountauth_email_verification_success_total", Flow: "email_verification", Outcome: "success", Help: "Successful email verifications."},
	{ID: accountauth.MetricEmailVerificationFailure, Name: "accountauth_email_verification_failure_total", Flow: "email_verification", Outcome: "failure", Help: "Rejected email verification tokens."},
	{ID: accountauth.MetricEmailVerificationResent, Name: "accountauth_email_verification_resent_total", Flow: "email_verification", Outcome: "resent", Help: "Verification emails resent."},
	{ID: accountauth.MetricEmailVerificationRateLimited, Name: "accountauth_email_verification_rate_limited_total", Flow: "email_verification", Outcome: "rate_limited", Help: "Verification resends refused by the cooldown."},
	{ID: accountauth.MetricLoginSuccess, Name: "accountauth_login_success_total", Flow: "login", Outcome: "success", Help: "Successful logins."},
	{ID: accountauth.MetricLoginFailure, Name: "accountauth_login_failure_total", Flow: "login", Outcome: "failure", Help: "Failed logins."},
	{ID: accountauth.MetricLoginRateLimited, Name: "accountauth_login_rate_limited_total", Flow: "login", Outcome: "rate_limited", Help: "Rate-limited login attempts."},
	{ID: accountauth.MetricMFARequired, Name: "accountauth_mfa_required_total", Flow: "mfa", Outcome: "required", Help: "Logins answered with an MFA challenge."},
	{ID: accountauth.MetricMFASuccess, Name: "accountauth_mfa_success_total", Flow: "mfa", Outcome: "success", Help: "Completed MFA challenges."},
	{ID: accountauth.MetricMFAFailure, Name: "accountauth_mfa_failure_total", Flow: "mfa", Outcome: "failure", Help: "Failed MFA challenge responses."},
	{ID: accountauth.MetricPasswordResetRequest, Name: "accountauth_password_reset_request_total", Flow: "password_reset", Outcome: "request", Help: "Password reset codes issued."},
	{ID: accountauth.MetricPasswordResetRateLimited, Name: "accountauth_password_reset_rate_limited_total", Flow: "password_reset", Outcome: "rate_limited", Help: "Password reset steps refused by cooldown or throttle."},
	{ID: accountauth.MetricPasswordResetOTPResent, Name: "accountauth_password_reset_otp_resent_total", Flow: "password_reset", Outcome: "otp_resent", Help: "Password reset codes resent."},
	{ID: accountauth.MetricPasswordResetOTPVerified, Name: "accountauth_password_reset_otp_verified_total", Flow: "password_reset", Outcome: "otp_verified", Help: "Password reset codes accepted."},
	{ID: accountauth.MetricPasswordResetOTPRejected, Name: "accountauth_password_reset_otp_rejected_total", Flow: "password_reset", Outcome: "otp_rejected", Help: "Password reset codes rejected."},
	{ID: accountauth.MetricPasswordResetSuccess, Name: "accountauth_password_reset_success_total", Flow: "password_reset", Outcome: "success", Help: "Passwords reset."},
	{ID: accountauth.MetricPasswordResetRejected, Name: "accountauth_password_reset_rejected_total", Flow: "password_reset", Outcome: "rejected", Help: "Password resets refused for an invalid token."},
	{ID: accountauth.MetricPasswordChangeSuccess, Name: "accountauth_password_change_success_total", Flow: "password_change", Outcome: "success", Help: "Passwords changed by signed-in users."},
	{ID: accountauth.MetricPasswordChangeInvalidOld, Name: "accountauth_password_change_invalid_old_total", Flow: "password_change", Outcome: "invalid_old", Help: "Password changes with a wrong current password."},
	{ID: accountauth.MetricRefreshSuccess, Name: "accountauth_refresh_success_total", Flow: "refresh", Outcome: "success", Help: "Access tokens refreshed."},
	{ID: accountauth.MetricRefreshFailure, Name: "accountauth_refresh_failure_total", Flow: "refresh", Outcome: "failure", Help: "Refused refresh attempts."},
	{ID: accountauth.MetricRefreshReuseDetected, Name: "accountauth_refresh_reuse_detected_total", Flow: "refresh", Outcome: "reuse_detected", Help: "Revoked refresh tokens presented again."},
	{ID: accountauth.MetricRefreshRotated, Name: "accountauth_refresh_rotated_total", Flow: "refresh", Outcome: "rotated", Help: "Refresh tokens rotated."},
	{ID: accountauth.MetricLogout, Name: "accountauth_logout_total", Flow: "logout", Outcome: "called", Help: "Logout calls."},
	{ID: accountauth.MetricNotificationFailure, Name: "accountauth_notification_failure_total", Flow: "notification", Outcome: "failure", Help: "Emails the notifier failed to deliver."},
}

var HistogramDefs = []HistogramDef{
	{ID: accountauth.MetricLoginLatency, Name: "accountauth_login_latency_seconds", Help: "Login latency histogram."},
}

var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix spells HistogramBounds for use inside instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight bucket array, padding with
// zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
