package adminauth

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidCredentials covers unknown usernames, wrong passwords and
	// (unless revealed) disabled accounts. All three are indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned only when the account is disabled and
	// the caller proved the password, or on refresh.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrCaptchaExpiredOrMissing is returned when the challenge id is
	// unknown, expired or already consumed.
	ErrCaptchaExpiredOrMissing = errors.New("captcha expired or missing")
	// ErrCaptchaMismatch is returned for a wrong captcha answer. The
	// challenge is consumed either way.
	ErrCaptchaMismatch = errors.New("captcha mismatch")
	// ErrCaptchaDisabled is returned by IssueCaptcha when captcha is off.
	ErrCaptchaDisabled = errors.New("captcha disabled")
	ErrTokenInvalid    = errors.New("token invalid")
	ErrTokenExpired    = errors.New("token expired")
	// ErrTokenRevoked means the token was valid once but its password
	// version or server-side record is gone.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenSuperseded means a newer login took the single-device slot.
	ErrTokenSuperseded      = errors.New("token superseded")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	ErrPermissionDenied     = errors.New("permission denied")

	// ErrLoginRateLimited is returned while a username or IP is locked out.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrAuthUnavailable is returned when the session cache or a collaborator
	// fails. Requests are denied, never allowed, in this state.
	ErrAuthUnavailable = errors.New("auth backend unavailable")
	// ErrEngineNotReady is returned by a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUserNotFound is what a UserProvider returns for an unknown username.
	ErrUserNotFound = errors.New("user not found")
)

// HTTPStatus maps an Engine error to the status code an HTTP surface should
// answer with. Unknown errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrCaptchaExpiredOrMissing),
		errors.Is(err, ErrCaptchaMismatch):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountDisabled),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrTokenSuperseded),
		errors.Is(err, ErrRefreshTokenNotFound),
		errors.Is(err, ErrRefreshTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrCaptchaDisabled):
		return http.StatusNotFound
	case errors.Is(err, ErrLoginRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrAuthUnavailable),
		errors.Is(err, ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns a stable snake_case code for err, suitable for JSON
// error bodies and audit records. It returns "" for nil.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, ErrCaptchaExpiredOrMissing):
		return "captcha_expired_or_missing"
	case errors.Is(err, ErrCaptchaMismatch):
		return "captcha_mismatch"
	case errors.Is(err, ErrCaptchaDisabled):
		return "captcha_disabled"
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenRevoked):
		return "token_revoked"
	case errors.Is(err, ErrTokenSuperseded):
		return "token_superseded"
	case errors.Is(err, ErrRefreshTokenNotFound):
		return "refresh_token_not_found"
	case errors.Is(err, ErrRefreshTokenExpired):
		return "refresh_token_expired"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrLoginRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrAuthUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ErrEngineNotReady):
		return "engine_not_ready"
	default:
		return "internal_error"
	}
}
