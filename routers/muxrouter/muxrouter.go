// Package muxrouter registers rivet operations on a gorilla/mux router.
package muxrouter

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rivetapi/rivet"
)

// Router adapts a mux.Router to the rivet.Router interface. gorilla/mux
// shares the {name} placeholder syntax of operation paths.
type Router struct {
	router *mux.Router
	opts   *rivet.ServeOptions
}

// New creates a router over a fresh mux.Router. opts may be nil.
func New(opts *rivet.ServeOptions) *Router {
	return &Router{router: mux.NewRouter(), opts: opts}
}

// Wrap adapts an existing mux.Router.
func Wrap(router *mux.Router, opts *rivet.ServeOptions) *Router {
	return &Router{router: router, opts: opts}
}

// Use appends net/http middleware to the underlying router.
func (r *Router) Use(middleware ...mux.MiddlewareFunc) {
	r.router.Use(middleware...)
}

// MuxRouter exposes the underlying gorilla router.
func (r *Router) MuxRouter() *mux.Router { return r.router }

// AddOperation implements rivet.Router.
func (r *Router) AddOperation(op *rivet.Operation) error {
	h := rivet.NewHTTPHandler(op, pathValue, r.opts)
	route := r.router.HandleFunc(op.Path, h).Methods(op.Methods...)
	return route.GetError()
}

func pathValue(req *http.Request, name string) string {
	return mux.Vars(req)[name]
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

var _ rivet.Router = (*Router)(nil)
var _ http.Handler = (*Router)(nil)
