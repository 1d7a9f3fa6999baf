// Package chirouter registers rivet operations on a chi mux.
package chirouter

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rivetapi/rivet"
)

// Router adapts a chi.Mux to the rivet.Router interface. Operation paths use
// the same {name} placeholder syntax chi routes with, so templates map
// through unchanged.
type Router struct {
	mux  *chi.Mux
	opts *rivet.ServeOptions
}

// New creates a router over a fresh chi mux. opts may be nil.
func New(opts *rivet.ServeOptions) *Router {
	return &Router{mux: chi.NewRouter(), opts: opts}
}

// Wrap adapts an existing chi mux, so rivet operations can share it with
// routes and middleware registered directly.
func Wrap(mux *chi.Mux, opts *rivet.ServeOptions) *Router {
	return &Router{mux: mux, opts: opts}
}

// Use appends net/http middleware to the underlying mux.
func (r *Router) Use(middleware ...func(http.Handler) http.Handler) {
	r.mux.Use(middleware...)
}

// Mux exposes the underlying chi mux.
func (r *Router) Mux() *chi.Mux { return r.mux }

// AddOperation implements rivet.Router.
func (r *Router) AddOperation(op *rivet.Operation) error {
	h := rivet.NewHTTPHandler(op, chi.URLParam, r.opts)
	for _, method := range op.Methods {
		r.mux.MethodFunc(method, op.Path, h)
	}
	return nil
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

var _ rivet.Router = (*Router)(nil)
var _ http.Handler = (*Router)(nil)
