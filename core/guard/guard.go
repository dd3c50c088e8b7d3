package guard

import (
	"context"
	"sync"

	"github.com/trezcool/practicehub/core"
	"github.com/trezcool/practicehub/core/session"
)

// Sessioner is the view of the auth store needed to gate views.
type Sessioner interface {
	IsAuthenticated() bool
	Role() session.Role
	InitAuth(ctx context.Context) <-chan struct{}
}

// Decision tells a protected view whether to render, or where to go instead.
type Decision struct {
	Render   bool
	Redirect string
}

// Guard gates views on authentication and role. Checks are optimistic: a rehydrated session
// renders while its revalidation is still running.
type Guard struct {
	sess   Sessioner
	logger core.Logger

	mountOnce sync.Once
	ready     <-chan struct{}
}

func New(sess Sessioner, logger core.Logger) *Guard {
	return &Guard{sess: sess, logger: logger}
}

// Mount starts the session bootstrap the first time a protected view is mounted.
// The returned channel is closed once the bootstrap is over.
func (g *Guard) Mount(ctx context.Context) <-chan struct{} {
	g.mountOnce.Do(func() {
		g.ready = g.sess.InitAuth(ctx)
	})
	return g.ready
}

// Check decides for a view open to the given roles; no roles means any signed-in user.
func (g *Guard) Check(allowed ...session.Role) Decision {
	if !g.sess.IsAuthenticated() {
		return Decision{Redirect: core.PathLogin}
	}
	role := g.sess.Role()
	if len(allowed) > 0 && !role.In(allowed...) {
		return Decision{Redirect: session.HomePath(role)}
	}
	return Decision{Render: true}
}
