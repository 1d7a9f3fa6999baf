// Package rivet provides declarative, reusable CRUD views over a resource
// model. Views describe a single HTTP operation (path, methods, schemas,
// handler); a ViewSet groups views sharing a model and default schemas and
// registers them with a router in declaration order.
//
// The package itself performs no routing. Views produce an Operation
// descriptor that a Router implementation (see routers/chirouter and
// routers/muxrouter) turns into live HTTP endpoints.
package rivet

import (
	"context"
	"net/http"
)

// notSet is the sentinel meaning "resolve from the owning ViewSet at bind
// time". It is distinct from an explicit nil, which means "no body".
type notSet struct{}

// NotSet marks a schema as unresolved. Views created by List, Create, Read
// and Update start with their schemas set to NotSet so that binding to a
// ViewSet can fill them in from the set's defaults.
var NotSet any = notSet{}

func isNotSet(v any) bool {
	_, ok := v.(notSet)
	return ok
}

// Request carries the parsed inputs of a single dispatch. The View instance
// itself is shared configuration; everything request-scoped lives here.
type Request struct {
	// HTTP is the underlying request. Nil in direct handler tests.
	HTTP *http.Request

	// PathParams holds the decoded path parameters, typed per the view's
	// synthesized path-parameters struct. Nil for parameterless paths.
	PathParams *Payload

	// Query holds the decoded query parameters. Nil when the view declares
	// no query schema.
	Query *Payload

	// Body holds the parsed request body. Nil when the view declares no
	// request schema.
	Body *Payload
}

// Context returns the request context, or context.Background outside of an
// HTTP dispatch.
func (r *Request) Context() context.Context {
	if r != nil && r.HTTP != nil {
		return r.HTTP.Context()
	}
	return context.Background()
}

// HandlerFunc is a plain blocking handler. Use Handle to attach one.
type HandlerFunc func(r *Request) (any, error)

// CtxHandlerFunc is a context-aware handler, for implementations that call
// into stores or other I/O that honors cancellation. Use HandleCtx to attach
// one.
type CtxHandlerFunc func(ctx context.Context, r *Request) (any, error)

// OperationFunc is the uniform standalone handler produced at registration
// time. Both handler kinds are adapted to this signature exactly once, so
// routers and decorators never need to know which kind a view uses.
type OperationFunc func(ctx context.Context, r *Request) (any, error)

// Decorator wraps a standalone handler. Decorators are applied in reverse
// declaration order, so the first-listed decorator ends up outermost.
type Decorator func(next OperationFunc) OperationFunc

// chainDecorators composes decorators so that decorators[0] is outermost:
// decorators[0](decorators[1](...(handler))).
func chainDecorators(handler OperationFunc, decorators []Decorator) OperationFunc {
	for i := len(decorators) - 1; i >= 0; i-- {
		handler = decorators[i](handler)
	}
	return handler
}
