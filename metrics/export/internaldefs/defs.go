package internaldefs

import (
	"github.com/MrEthical07/adminauth"
)

// Def names one engine metric for export.
type Def struct {
	ID   adminauth.MetricID
	Name string
	Help string
}

// Counters lists every exported counter in render order.
var Counters = []Def{
	{adminauth.MetricLoginSuccess, "adminauth_login_success_total", "Successful logins."},
	{adminauth.MetricLoginFailure, "adminauth_login_failure_total", "Failed logins."},
	{adminauth.MetricLoginRateLimited, "adminauth_login_rate_limited_total", "Logins rejected by the retry lockout."},
	{adminauth.MetricCaptchaIssued, "adminauth_captcha_issued_total", "Captcha challenges issued."},
	{adminauth.MetricCaptchaFailure, "adminauth_captcha_failure_total", "Logins rejected for a missing, expired or wrong captcha."},
	{adminauth.MetricRefreshSuccess, "adminauth_refresh_success_total", "Successful refresh rotations."},
	{adminauth.MetricRefreshFailure, "adminauth_refresh_failure_total", "Rejected refresh attempts."},
	{adminauth.MetricAuthorizeAllowed, "adminauth_authorize_allowed_total", "Requests admitted by the authorization guard."},
	{adminauth.MetricAuthorizeDenied, "adminauth_authorize_denied_total", "Requests denied for a missing permission."},
	{adminauth.MetricTokenRejected, "adminauth_token_rejected_total", "Access tokens rejected as invalid, expired or revoked."},
	{adminauth.MetricTokenSuperseded, "adminauth_token_superseded_total", "Tokens rejected because a newer single-device login replaced them."},
	{adminauth.MetricBackendUnavailable, "adminauth_backend_unavailable_total", "Operations failed closed on a session cache or collaborator error."},
	{adminauth.MetricSessionCreated, "adminauth_session_created_total", "Sessions created by login."},
	{adminauth.MetricSessionKicked, "adminauth_session_kicked_total", "Sessions ended by an operator kick."},
	{adminauth.MetricLogout, "adminauth_logout_total", "Sessions ended by logout."},
	{adminauth.MetricForceLogout, "adminauth_force_logout_total", "Force-logout operations."},
	{adminauth.MetricPasswordVersionBump, "adminauth_password_version_bump_total", "Password version bumps."},
	{adminauth.MetricPermissionInvalidated, "adminauth_permission_invalidated_total", "Permission cache invalidations."},
}

// Histograms lists every exported latency histogram.
var Histograms = []Def{
	{adminauth.MetricAuthorizeLatency, "adminauth_authorize_latency_seconds", "Authorization guard latency."},
}

// Bucket is one histogram upper bound in seconds. Suffix is the same bound
// spelled for use inside an instrument name.
type Bucket struct {
	Le     string
	Suffix string
}

// Buckets mirrors the engine's millisecond latency buckets.
var Buckets = []Bucket{
	{"0.005", "0_005"},
	{"0.01", "0_01"},
	{"0.025", "0_025"},
	{"0.05", "0_05"},
	{"0.1", "0_1"},
	{"0.25", "0_25"},
	{"0.5", "0_5"},
	{"+Inf", "inf"},
}

// Cumulative turns per-bucket counts into running totals, one per entry in
// Buckets. Missing trailing counts are treated as zero.
func Cumulative(raw []uint64) []uint64 {
	out := make([]uint64, len(Buckets))
	var total uint64
	for i := range out {
		if i < len(raw) {
			total += raw[i]
		}
		out[i] = total
	}
	return out
}
