// Package router wires handler route registrars onto the gin engine.
package router

import (
	"github.com/gin-gonic/gin"
)

// RouteRegistrar registers a handler's routes on a group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration. Webhook intake and probes live at
// the root; query and sync endpoints live under the versioned API prefix.
type Router struct {
	engine     *gin.Engine
	apiVersion string
	root       []RouteRegistrar
	api        []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g. "v1")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a Router over an engine
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterRoot adds registrars mounted at the engine root
func (r *Router) RegisterRoot(registrars ...RouteRegistrar) *Router {
	r.root = append(r.root, registrars...)
	return r
}

// Register adds registrars mounted under the versioned API group
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.api = append(r.api, registrars...)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	rootGroup := r.engine.Group("/")
	for _, registrar := range r.root {
		registrar.RegisterRoutes(rootGroup)
	}

	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.api {
		registrar.RegisterRoutes(api)
	}
}
