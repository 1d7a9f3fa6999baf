package rivet

import (
	"context"
	"fmt"
	"reflect"
)

// Operation is the router-facing descriptor a view produces: everything an
// HTTP layer needs to route, decode, dispatch and serialize one endpoint.
type Operation struct {
	// Name identifies the operation (OpenAPI operation id, log labels).
	Name string

	// Path is the template with {name} placeholders.
	Path string

	// Methods is the non-empty set of HTTP verbs.
	Methods []string

	// Handler is the decorated standalone handler.
	Handler OperationFunc

	// PathParams is the synthesized path-parameters struct type, nil for
	// parameterless paths.
	PathParams reflect.Type

	// Query and Body are the parameter schemas, nil when undeclared.
	Query any
	Body  any

	// Status is the primary response status code.
	Status int

	// Responses maps status codes to response schemas. A nil map means the
	// view declared nothing and the router should apply its own default; a
	// nil schema under a status means an empty body.
	Responses map[int]any

	// Model is the bound resource model. Exposed so test harnesses can
	// compute expected responses independently of the handler.
	Model *ModelMeta

	// Options carries opaque passthrough options for the router.
	Options map[string]any
}

// Router registers operations. Implementations live in routers/chirouter and
// routers/muxrouter.
type Router interface {
	AddOperation(op *Operation) error
}

// API is a thin grouping of routers with a default, mirroring frameworks
// that distinguish an API object from its routers. AddTo accepts either.
type API struct {
	router Router
}

// NewAPI creates an API with the given default router.
func NewAPI(defaultRouter Router) *API {
	return &API{router: defaultRouter}
}

// DefaultRouter returns the router views are registered with when the API
// itself is the registration target.
func (a *API) DefaultRouter() Router { return a.router }

// registerOperation resolves the registration target: a Router directly, or
// anything exposing a default router.
func registerOperation(target any, op *Operation) error {
	switch t := target.(type) {
	case Router:
		return t.AddOperation(op)
	case interface{ DefaultRouter() Router }:
		return t.DefaultRouter().AddOperation(op)
	default:
		return fmt.Errorf("rivet: cannot register views with %T (want Router or API)", target)
	}
}

// ResolveResult flattens a handler result for serialization: querysets are
// evaluated, everything else passes through.
func ResolveResult(ctx context.Context, result any) (any, error) {
	if qs, ok := result.(Queryset); ok {
		return qs.All(ctx)
	}
	return result, nil
}
