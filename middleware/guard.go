package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrEthical07/adminauth"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the identity Guard attached to ctx.
func AuthResultFromContext(ctx context.Context) (*adminauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*adminauth.AuthResult)
	return res, ok && res != nil
}

// Guard authorizes the bearer token of every request against engine. When
// required is non-empty the caller must also hold that permission.
func Guard(engine *adminauth.Engine, required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, adminauth.ErrEngineNotReady)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, adminauth.ErrTokenInvalid)
				return
			}

			res, err := engine.Authorize(r.Context(), token, required)
			if err != nil {
				WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth admits any caller holding a live access token.
func RequireAuth(engine *adminauth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, "")
}

// RequirePermission admits callers whose permission set grants perm.
func RequirePermission(engine *adminauth.Engine, perm string) func(http.Handler) http.Handler {
	return Guard(engine, perm)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError answers with the status and stable code adminauth assigns to
// err. Unclassified errors are reported as internal_error without detail.
func WriteError(w http.ResponseWriter, err error) {
	status := adminauth.HTTPStatus(err)
	body := errorBody{Code: adminauth.ErrorCode(err), Message: http.StatusText(status)}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="adminauth"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
