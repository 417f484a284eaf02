package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/internal/logx"
	"github.com/MrEthical07/adminauth/middleware"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type captchaResponse struct {
	Enabled     bool       `json:"enabled"`
	ChallengeID string     `json:"challengeId,omitempty"`
	Puzzle      string     `json:"puzzle,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

func (a *API) captcha(w http.ResponseWriter, r *http.Request) {
	if !a.engine.CaptchaEnabled() {
		writeJSON(w, http.StatusOK, captchaResponse{Enabled: false})
		return
	}

	ch, err := a.engine.IssueCaptcha(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	exp := ch.ExpiresAt
	writeJSON(w, http.StatusOK, captchaResponse{
		Enabled:     true,
		ChallengeID: ch.ChallengeID,
		Puzzle:      ch.Puzzle,
		ExpiresAt:   &exp,
	})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req adminauth.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed login request")
		return
	}

	pair, err := a.engine.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, adminauth.ErrLoginRateLimited) {
			if d := a.engine.RetryAfter(r.Context(), req.Username); d > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(max(int(d.Seconds()), 1)))
			}
		}
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "refreshToken is required")
		return
	}

	pair, err := a.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.AuthResultFromContext(r.Context())
	if err := a.engine.Logout(r.Context(), caller.TokenID); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	TokenID     string    `json:"tokenId"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.AuthResultFromContext(r.Context())
	perms, err := a.engine.Permissions(r.Context(), caller.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	roles := caller.Roles
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusOK, meResponse{
		UserID:      caller.UserID,
		Username:    caller.Username,
		TokenID:     caller.TokenID,
		Roles:       roles,
		Permissions: perms,
		ExpiresAt:   caller.ExpiresAt,
	})
}

type onlineListResponse struct {
	Total    int                       `json:"total"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"pageSize"`
	Rows     []adminauth.OnlineSession `json:"rows"`
}

func (a *API) listOnline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := positiveInt(q.Get("page"), 1)
	size := positiveInt(q.Get("pageSize"), defaultPageSize)
	if size > maxPageSize {
		size = maxPageSize
	}

	caller, _ := middleware.AuthResultFromContext(r.Context())
	res, err := a.engine.ListOnline(r.Context(), adminauth.OnlineQuery{
		Username: strings.TrimSpace(q.Get("userName")),
		IP:       strings.TrimSpace(q.Get("ipaddr")),
		Offset:   (page - 1) * size,
		Limit:    size,
	}, caller)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	rows := res.Sessions
	if rows == nil {
		rows = []adminauth.OnlineSession{}
	}
	writeJSON(w, http.StatusOK, onlineListResponse{Total: res.Total, Page: page, PageSize: size, Rows: rows})
}

type kickRequest struct {
	TokenID string `json:"tokenId"`
}

func (a *API) kick(w http.ResponseWriter, r *http.Request) {
	var req kickRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.TokenID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "tokenId is required")
		return
	}
	if err := a.engine.Kick(r.Context(), req.TokenID); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) forceLogout(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.PathValue("userId"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "userId is required")
		return
	}
	n, err := a.engine.ForceLogout(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"retired": n})
}

type invalidateRequest struct {
	UserIDs []string `json:"userIds"`
}

// invalidatePermissions drops the listed users' cached sets, or every set
// when userIds is empty.
func (a *API) invalidatePermissions(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "malformed invalidate request")
			return
		}
	}

	if len(req.UserIDs) == 0 {
		n, err := a.engine.InvalidateAllPermissions(r.Context())
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"scope": "all", "invalidated": n})
		return
	}

	if err := a.engine.InvalidatePermissions(r.Context(), req.UserIDs...); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scope": "users", "invalidated": len(req.UserIDs)})
}

// fail writes err and logs the ones that are not the caller's fault.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := adminauth.HTTPStatus(err); status >= http.StatusInternalServerError {
		logx.FromContext(r.Context()).Error("request failed", "error", err, "code", adminauth.ErrorCode(err))
	}
	writeEngineError(w, err)
}

func positiveInt(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
