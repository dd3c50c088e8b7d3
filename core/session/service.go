package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/practicehub/core"
)

const (
	msgLoginFailed        = "Login failed"
	msgRegisterFailed     = "Registration failed"
	msgRegisterSuccessful = "Registration successful, you can now log in"
)

type (
	// AuthAPI is the part of the PracticeHub API the auth store talks to.
	AuthAPI interface {
		Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
		Register(ctx context.Context, role Role, form interface{}) error
		Me(ctx context.Context) (UserProfile, error)

		// SetToken sets the default credential of outgoing requests; "" removes it.
		SetToken(token string)
		// OnUnauthorized registers fn to be called when a request fails authentication.
		OnUnauthorized(fn func())
	}

	// CredentialStore persists the session between runs.
	// Load returns ErrNoCredentials when nothing is stored.
	CredentialStore interface {
		Load(ctx context.Context) (Persisted, error)
		Save(ctx context.Context, p Persisted) error
		Clear(ctx context.Context) error
	}

	// Service is the auth store: the single source of truth for who is signed in.
	// It is safe for concurrent use.
	Service struct {
		api    AuthAPI
		store  CredentialStore
		valid  *core.Validator
		logger core.Logger

		mu    sync.RWMutex
		state Session

		initOnce sync.Once
		initDone chan struct{}
	}
)

// NewService rehydrates the persisted session, if any. A rehydrated token is attached to the
// client right away and trusted until CheckAuth proves otherwise.
func NewService(ctx context.Context, api AuthAPI, store CredentialStore, valid *core.Validator, logger core.Logger) *Service {
	InitValidators(valid)

	svc := &Service{
		api:      api,
		store:    store,
		valid:    valid,
		logger:   logger,
		initDone: make(chan struct{}),
	}
	svc.rehydrate(ctx)
	api.OnUnauthorized(svc.expire)
	return svc
}

func (svc *Service) rehydrate(ctx context.Context) {
	p, err := svc.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoCredentials) {
			svc.logger.Warn("discarding unreadable persisted session", err)
		}
		return
	}
	if p.Token == "" {
		return
	}
	role := p.Role
	if role == RoleNone && p.User != nil {
		role = p.User.Role
	}

	svc.mu.Lock()
	svc.state = Session{
		Token:     p.Token,
		User:      p.User,
		Role:      role,
		Status:    StatusPending,
		ExpiresAt: tokenExpiry(p.Token),
	}
	svc.mu.Unlock()
	svc.api.SetToken(p.Token)
}

// Current returns a snapshot of the session.
func (svc *Service) Current() Session {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	s := svc.state
	if s.User != nil {
		usr := *s.User
		s.User = &usr
	}
	return s
}

func (svc *Service) IsAuthenticated() bool {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.state.IsAuthenticated()
}

func (svc *Service) Role() Role {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.state.Role
}

func (svc *Service) UserID() core.ID {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	if svc.state.User == nil {
		return ""
	}
	return svc.state.User.ID
}

// Login authenticates against the API. Failures leave the session untouched and are reported
// through Result, with the server's message when it gave one.
func (svc *Service) Login(ctx context.Context, identifier, secret string, roleHint Role) Result {
	req := LoginRequest{
		Username: core.CleanString(identifier),
		Password: secret,
		Role:     roleHint.String(),
	}
	if err := svc.valid.Struct(req); err != nil {
		return Result{Message: core.Message(err, msgLoginFailed)}
	}

	resp, err := svc.api.Login(ctx, req)
	if err != nil {
		svc.logger.Info("login failed", errors.Wrap(err, "logging in"), map[string]interface{}{"username": req.Username})
		return Result{Message: core.Message(err, msgLoginFailed)}
	}
	if resp.Token == "" {
		return Result{Message: msgLoginFailed}
	}

	usr := resp.User
	if usr.Role == RoleNone {
		usr.Role = roleHint
	}
	svc.establish(ctx, resp.Token, usr)
	return Result{Success: true}
}

// establish replaces the whole session with a verified one and persists it.
func (svc *Service) establish(ctx context.Context, token string, usr UserProfile) {
	svc.mu.Lock()
	svc.state = Session{
		Token:     token,
		User:      &usr,
		Role:      usr.Role,
		Status:    StatusVerified,
		ExpiresAt: tokenExpiry(token),
	}
	svc.mu.Unlock()

	svc.api.SetToken(token)
	if err := svc.store.Save(ctx, Persisted{Token: token, User: &usr, Role: usr.Role}); err != nil {
		svc.logger.Error("persisting session", errors.Wrap(err, "saving credentials"), usr)
	}
}

func (svc *Service) RegisterTeacher(ctx context.Context, form TeacherForm) Result {
	return svc.register(ctx, RoleTeacher, &form)
}

func (svc *Service) RegisterAdmin(ctx context.Context, form AdminForm) Result {
	return svc.register(ctx, RoleAdmin, &form)
}

func (svc *Service) RegisterStudent(ctx context.Context, form StudentForm) Result {
	return svc.register(ctx, RoleStudent, &form)
}

// register submits a registration form. It does not sign the new user in.
func (svc *Service) register(ctx context.Context, role Role, form registrationForm) Result {
	form.clean()
	if err := svc.valid.Struct(form); err != nil {
		return Result{Message: core.Message(err, msgRegisterFailed)}
	}
	if err := svc.api.Register(ctx, role, form); err != nil {
		svc.logger.Info("registration failed", errors.Wrapf(err, "registering %s", role))
		return Result{Message: core.Message(err, msgRegisterFailed)}
	}
	return Result{Success: true, Message: msgRegisterSuccessful}
}

// Logout wipes the session. Calling it repeatedly is harmless.
func (svc *Service) Logout(ctx context.Context) {
	svc.reset(ctx, StatusAnonymous)
}

// expire is called by the HTTP client when the API rejected our credential.
func (svc *Service) expire() {
	svc.reset(context.Background(), StatusInvalid)
}

func (svc *Service) reset(ctx context.Context, status Status) {
	svc.resetToken(ctx, status, "")
}

// resetToken wipes the session, unless token is set and no longer the session's token.
func (svc *Service) resetToken(ctx context.Context, status Status, token string) {
	svc.mu.Lock()
	if token != "" && svc.state.Token != token {
		svc.mu.Unlock()
		return
	}
	if svc.state.Token == "" && status == StatusInvalid {
		status = svc.state.Status // nothing to invalidate
	}
	svc.state = Session{Status: status}
	svc.mu.Unlock()

	svc.api.SetToken("")
	if err := svc.store.Clear(ctx); err != nil {
		svc.logger.Warn("clearing persisted session", errors.Wrap(err, "clearing credentials"))
	}
}

// CheckAuth revalidates the token against the API. On success the profile is replaced;
// on failure the session is wiped. Results for a token replaced mid-flight are dropped.
// When ctx ends before the API answers, the token was not judged: false is returned and the
// session is left as it was (Pending for a rehydrated token, never Verified).
func (svc *Service) CheckAuth(ctx context.Context) bool {
	svc.mu.Lock()
	token := svc.state.Token
	if token == "" {
		if svc.state.Status != StatusInvalid {
			svc.state = Session{Status: StatusAnonymous}
		}
		svc.mu.Unlock()
		return false
	}
	svc.mu.Unlock()

	svc.api.SetToken(token)
	usr, err := svc.api.Me(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// cancelled before the API answered: the token was not judged
			return false
		}
		svc.logger.Warn("session revalidation failed", errors.Wrap(err, "fetching current identity"))
		svc.resetToken(ctx, StatusInvalid, token)
		return false
	}

	svc.mu.Lock()
	if svc.state.Token != token {
		svc.mu.Unlock()
		return false
	}
	if usr.Role == RoleNone {
		usr.Role = svc.state.Role
	}
	svc.state = Session{
		Token:     token,
		User:      &usr,
		Role:      usr.Role,
		Status:    StatusVerified,
		ExpiresAt: tokenExpiry(token),
	}
	svc.mu.Unlock()

	if err := svc.store.Save(ctx, Persisted{Token: token, User: &usr, Role: usr.Role}); err != nil {
		svc.logger.Error("persisting session", errors.Wrap(err, "saving credentials"), usr)
	}
	return true
}

// InitAuth bootstraps the session once per process: when a token was rehydrated it is validated
// in the background. The returned channel is closed once that validation is over.
func (svc *Service) InitAuth(ctx context.Context) <-chan struct{} {
	svc.initOnce.Do(func() {
		svc.mu.RLock()
		token := svc.state.Token
		svc.mu.RUnlock()

		if token == "" {
			close(svc.initDone)
			return
		}
		svc.api.SetToken(token)

		ctx = context.WithoutCancel(ctx)
		go func() {
			defer close(svc.initDone)
			svc.CheckAuth(ctx)
		}()
	})
	return svc.initDone
}
