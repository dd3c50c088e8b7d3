package guard

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/practicehub/core"
	"github.com/trezcool/practicehub/core/session"
	logsvc "github.com/trezcool/practicehub/services/logger"
)

type stubSession struct {
	mu        sync.Mutex
	authed    bool
	role      session.Role
	initCalls int
}

func (s *stubSession) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authed
}

func (s *stubSession) Role() session.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *stubSession) InitAuth(context.Context) <-chan struct{} {
	s.mu.Lock()
	s.initCalls++
	s.mu.Unlock()
	done := make(chan struct{})
	close(done)
	return done
}

func (s *stubSession) set(authed bool, role session.Role) {
	s.mu.Lock()
	s.authed, s.role = authed, role
	s.mu.Unlock()
}

func testLogger() core.Logger {
	return logsvc.NewConsoleLogger(log.New(io.Discard, "", 0), logsvc.LevelDebug)
}

func TestGuard_Check(t *testing.T) {
	tests := []struct {
		name    string
		authed  bool
		role    session.Role
		allowed []session.Role
		want    Decision
	}{
		{"anonymous", false, session.RoleNone, []session.Role{session.RoleStudent}, Decision{Redirect: "/login"}},
		{"anonymous, any role", false, session.RoleNone, nil, Decision{Redirect: "/login"}},
		{"student allowed", true, session.RoleStudent, []session.Role{session.RoleStudent}, Decision{Render: true}},
		{"teacher on student view", true, session.RoleTeacher, []session.Role{session.RoleStudent}, Decision{Redirect: "/teacher"}},
		{"admin on teacher view", true, session.RoleAdmin, []session.Role{session.RoleTeacher}, Decision{Redirect: "/admin"}},
		{"several roles", true, session.RoleAdmin, []session.Role{session.RoleTeacher, session.RoleAdmin}, Decision{Render: true}},
		{"any signed-in user", true, session.RoleStudent, nil, Decision{Render: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &stubSession{authed: tt.authed, role: tt.role}
			g := New(sess, testLogger())
			assert.Equal(t, tt.want, g.Check(tt.allowed...))
		})
	}
}

type recorder struct {
	mu    sync.Mutex
	views []string
}

func (r *recorder) view(name string) View {
	return func(context.Context) error {
		r.mu.Lock()
		r.views = append(r.views, name)
		r.mu.Unlock()
		return nil
	}
}

func (r *recorder) rendered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.views...)
}

func newRouter(sess *stubSession, rec *recorder) *Router {
	r := NewRouter(testLogger())
	r.SetGuard(New(sess, testLogger()))
	r.HandlePublic(core.PathLogin, rec.view("login"))
	r.HandlePublic(core.PathRegister, rec.view("register"))
	r.Handle(core.PathAdmin, rec.view("admin"), session.RoleAdmin)
	r.Handle(core.PathTeacher, rec.view("teacher"), session.RoleTeacher)
	r.Handle(core.PathStudent, rec.view("student"), session.RoleStudent)
	return r
}

func TestRouter_Navigate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		authed      bool
		role        session.Role
		path        string
		wantViews   []string
		wantCurrent string
	}{
		{"anonymous never reaches the view", false, session.RoleNone, "/student", []string{"login"}, "/login"},
		{"teacher opening student view", true, session.RoleTeacher, "/student", []string{"teacher"}, "/teacher"},
		{"student at home", true, session.RoleStudent, "/student", []string{"student"}, "/student"},
		{"public view", false, session.RoleNone, "/register", []string{"register"}, "/register"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &stubSession{authed: tt.authed, role: tt.role}
			rec := new(recorder)
			r := newRouter(sess, rec)

			assert.NoError(t, r.Navigate(ctx, tt.path))
			assert.Equal(t, tt.wantViews, rec.rendered())
			assert.Equal(t, tt.wantCurrent, r.Current())
		})
	}
}

func TestRouter_MountOnce(t *testing.T) {
	ctx := context.Background()
	sess := &stubSession{authed: true, role: session.RoleStudent}
	r := newRouter(sess, new(recorder))

	assert.NoError(t, r.Navigate(ctx, "/student"))
	assert.NoError(t, r.Navigate(ctx, "/teacher"))
	assert.NoError(t, r.Navigate(ctx, "/login"))
	assert.Equal(t, 1, sess.initCalls)
}

func TestRouter_Errors(t *testing.T) {
	ctx := context.Background()
	sess := &stubSession{authed: true, role: session.RoleStudent}
	r := newRouter(sess, new(recorder))

	err := r.Navigate(ctx, "/nowhere")
	assert.True(t, errors.Is(err, ErrNoRoute))

	r.HandlePublic("/a", func(context.Context) error { return RedirectTo("/b") })
	r.HandlePublic("/b", func(context.Context) error { return RedirectTo("/a") })
	err = r.Navigate(ctx, "/a")
	assert.True(t, errors.Is(err, ErrRedirectLoop))

	unguarded := NewRouter(testLogger())
	unguarded.Handle("/student", func(context.Context) error { return nil })
	assert.True(t, errors.Is(unguarded.Navigate(ctx, "/student"), ErrNoGuard))

	viewErr := errors.New("boom")
	r.Handle("/broken", func(context.Context) error { return viewErr })
	assert.Equal(t, viewErr, r.Navigate(ctx, "/broken"))
}

func TestRouter_Redirect(t *testing.T) {
	ctx := context.Background()
	sess := &stubSession{authed: true, role: session.RoleStudent}
	rec := new(recorder)
	r := newRouter(sess, rec)

	started := make(chan struct{})
	var cancelled bool
	r.Handle("/chat", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled = true
		return ctx.Err()
	}, session.RoleStudent)

	go func() {
		<-started
		// what the HTTP client does on a 401
		sess.set(false, session.RoleNone)
		r.Redirect(core.PathLogin)
	}()

	assert.NoError(t, r.Navigate(ctx, "/chat"))
	assert.True(t, cancelled, "a redirect cancels the running view")
	assert.Equal(t, []string{"login"}, rec.rendered())
	assert.True(t, r.IsAuthView())
}

func TestRouter_RedirectAfterFailure(t *testing.T) {
	ctx := context.Background()
	sess := &stubSession{authed: true, role: session.RoleTeacher}
	rec := new(recorder)
	r := newRouter(sess, rec)

	r.Handle("/threads", func(context.Context) error {
		sess.set(false, session.RoleNone)
		r.Redirect(core.PathLogin)
		return errors.New("request failed with status 401")
	}, session.RoleTeacher)

	assert.NoError(t, r.Navigate(ctx, "/threads"))
	assert.Equal(t, []string{"login"}, rec.rendered())
}

func TestRouter_RedirectReplacesPending(t *testing.T) {
	r := NewRouter(testLogger())
	r.Redirect("/student")
	r.Redirect(core.PathLogin)

	select {
	case to := <-r.Redirects():
		assert.Equal(t, core.PathLogin, to)
	case <-time.After(time.Second):
		t.Fatal("no redirect delivered")
	}
	assert.Equal(t, core.PathLogin, r.Current())
	assert.True(t, r.IsAuthView())
}
