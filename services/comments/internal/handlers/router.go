package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/example/threadkit/internal/commentapi"
	"github.com/example/threadkit/internal/platform/auth"
	"github.com/example/threadkit/internal/platform/httpserver"
	"github.com/example/threadkit/services/comments/internal/ratelimit"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Verifier auth.JWTVerifier
	// Limiter throttles writes. Optional.
	Limiter   *ratelimit.Limiter
	ReadyFunc func() error
}

// NewRouter mounts the comment service API. Reads accept anonymous callers;
// writes require a user, and creating posts requires an admin.
func NewRouter(d Deps, opts RouterOptions) chi.Router {
	d = d.withDefaults()

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: opts.ReadyFunc, Logger: d.Logger})

	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalUser(opts.Verifier))
		r.Get(commentapi.PathPosts+"/{id}", GetPost(d))
		r.Get(commentapi.PathComments, ListComments(d))
		r.Get(commentapi.PathMedia+"/{id}", GetMedia(d))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(opts.Verifier))
		if opts.Limiter != nil {
			r.Use(opts.Limiter.Middleware)
		}
		r.Post(commentapi.PathComments, CreateComment(d))
		r.Put(commentapi.PathComments+"/{id}", UpdateComment(d))
		r.Delete(commentapi.PathComments+"/{id}", DeleteComment(d))
		r.Post(commentapi.PathReactions, React(d))

		r.With(auth.RequireAdmin).Post(commentapi.PathPosts, CreatePost(d))
	})
	return r
}
