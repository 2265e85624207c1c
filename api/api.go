// Package api provides HTTP handlers for the fieldgate data layer.
package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/fieldgate/fieldgate"
)

// UserResolver builds the requesting UserContext from a request. When
// unset, handlers fall back to the identity attached by fieldgate.WithUser
// or the Forge user ID.
type UserResolver func(ctx forge.Context) *fieldgate.UserContext

// API wires all fieldgate HTTP handlers together.
type API struct {
	db       *fieldgate.Database
	router   forge.Router
	resolver UserResolver
}

// Option configures the API.
type Option func(*API)

// WithUserResolver sets how handlers resolve the requesting user.
func WithUserResolver(r UserResolver) Option {
	return func(a *API) { a.resolver = r }
}

// New creates an API from a Database and a Forge router.
func New(db *fieldgate.Database, router forge.Router, opts ...Option) *API {
	a := &API{db: db, router: router}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	if err := a.RegisterRoutes(a.router); err != nil {
		panic("fieldgate: register routes: " + err.Error())
	}
	return a.router.Handler()
}

// RegisterRoutes registers all API routes into the given Forge router.
func (a *API) RegisterRoutes(router forge.Router) error {
	registerers := []func(forge.Router) error{
		a.registerDataRoutes,
		a.registerSchemaRoutes,
		a.registerPermissionRoutes,
	}
	for _, fn := range registerers {
		if err := fn(router); err != nil {
			return err
		}
	}
	return nil
}
