package flows

import (
	"context"

	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/session"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Login       LoginDeps
	Refresh     RefreshDeps
	Authorize   AuthorizeDeps
	Permissions PermissionDeps
	Online      OnlineDeps
}

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Authorize.ParseAccess != nil && s.deps.Login.FindUser != nil
}

func (s Service) Login(ctx context.Context, req LoginRequest) LoginResult {
	return RunLogin(ctx, req, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, req RefreshRequest) RefreshResult {
	return RunRefresh(ctx, req, s.deps.Refresh)
}

func (s Service) Authorize(ctx context.Context, tokenStr, required string) AuthorizeResult {
	return RunAuthorize(ctx, tokenStr, required, s.deps.Authorize)
}

func (s Service) Permissions(ctx context.Context, userID string) (permission.Set, error) {
	return RunPermissions(ctx, userID, s.deps.Permissions)
}

func (s Service) ListOnline(ctx context.Context, q session.ListQuery, caller OnlineCaller) (OnlinePage, error) {
	return RunListOnline(ctx, q, caller, s.deps.Online)
}

func (s Service) Kick(ctx context.Context, tokenID string) (bool, error) {
	return RunKick(ctx, tokenID, s.deps.Online)
}

func (s Service) ForceLogout(ctx context.Context, userID string) (int, error) {
	return RunForceLogout(ctx, userID, s.deps.Online)
}
