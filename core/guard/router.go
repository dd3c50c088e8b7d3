package guard

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/practicehub/core"
	"github.com/trezcool/practicehub/core/session"
)

const maxHops = 8

var (
	ErrNoRoute      = errors.New("no such route")
	ErrRedirectLoop = errors.New("too many redirects")
	ErrNoGuard      = errors.New("protected view without guard")
)

type (
	// View renders a path. It must return when ctx is done.
	View func(ctx context.Context) error

	route struct {
		view    View
		guarded bool
		roles   []session.Role
	}

	// Router holds the client's navigation state. It implements core.Navigator.
	// Protected views are refused until a Guard is set.
	Router struct {
		logger core.Logger

		mu        sync.RWMutex
		guard     *Guard
		routes    map[string]route
		current   string
		redirects chan string
	}
)

var _ core.Navigator = (*Router)(nil)

func NewRouter(logger core.Logger) *Router {
	return &Router{
		logger:    logger,
		routes:    make(map[string]route),
		current:   core.PathRoot,
		redirects: make(chan string, 1),
	}
}

// SetGuard sets the guard of protected views.
func (r *Router) SetGuard(g *Guard) {
	r.mu.Lock()
	r.guard = g
	r.mu.Unlock()
}

// Handle registers a protected view, open to the given roles (any signed-in user when none).
func (r *Router) Handle(path string, view View, roles ...session.Role) {
	r.mu.Lock()
	r.routes[path] = route{view: view, guarded: true, roles: roles}
	r.mu.Unlock()
}

// HandlePublic registers a view open to everyone, such as the login form.
func (r *Router) HandlePublic(path string, view View) {
	r.mu.Lock()
	r.routes[path] = route{view: view}
	r.mu.Unlock()
}

func (r *Router) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// IsAuthView reports whether the current view is the login or a registration form.
func (r *Router) IsAuthView() bool {
	return core.IsAuthPath(r.Current())
}

// Redirect requests a navigation from outside the running view. The current path changes at once;
// the request is delivered on Redirects, replacing one that was not consumed yet.
func (r *Router) Redirect(path string) {
	r.logger.Debug("redirect requested", map[string]interface{}{"from": r.Current(), "to": path})
	r.setCurrent(path)
	for {
		select {
		case r.redirects <- path:
			return
		default:
			select {
			case <-r.redirects:
			default:
			}
		}
	}
}

// Redirects delivers the paths passed to Redirect. Navigate consumes them while a view runs.
func (r *Router) Redirects() <-chan string { return r.redirects }

// Navigate renders path, following guard decisions, views returning a RedirectError and
// redirects requested while a view runs. A redirect cancels the running view.
func (r *Router) Navigate(ctx context.Context, path string) error {
	r.drain()
	for hops := 0; ; hops++ {
		if hops >= maxHops {
			return errors.Wrapf(ErrRedirectLoop, "navigating to %s", path)
		}

		r.mu.RLock()
		rt, ok := r.routes[path]
		g := r.guard
		r.mu.RUnlock()
		if !ok {
			return errors.Wrap(ErrNoRoute, path)
		}
		r.setCurrent(path)

		if rt.guarded {
			if g == nil {
				return errors.Wrap(ErrNoGuard, path)
			}
			g.Mount(ctx)
			if d := g.Check(rt.roles...); !d.Render {
				r.logger.Debug("view guarded", map[string]interface{}{"path": path, "redirect": d.Redirect})
				path = d.Redirect
				continue
			}
		}

		next, err := r.run(ctx, rt.view)
		if next == "" {
			return err
		}
		path = next
	}
}

// run runs view until it returns or a redirect is requested. It returns the path to go to next,
// if any.
func (r *Router) run(ctx context.Context, view View) (string, error) {
	vctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- view(vctx) }()

	select {
	case err := <-errc:
		var redir *RedirectError
		if errors.As(err, &redir) {
			return redir.Path, nil
		}
		// a redirect requested by a request that made the view fail
		select {
		case to := <-r.redirects:
			return to, nil
		default:
			return "", err
		}
	case to := <-r.redirects:
		cancel()
		<-errc
		return to, nil
	}
}

func (r *Router) setCurrent(path string) {
	r.mu.Lock()
	r.current = path
	r.mu.Unlock()
}

func (r *Router) drain() {
	for {
		select {
		case <-r.redirects:
		default:
			return
		}
	}
}

// RedirectError is returned by a view to send the user elsewhere.
type RedirectError struct {
	Path string
}

func (e *RedirectError) Error() string { return fmt.Sprintf("redirect to %s", e.Path) }

func RedirectTo(path string) error { return &RedirectError{Path: path} }
