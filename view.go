package rivet

import (
	"context"
	"reflect"
)

// knownMethods guards against typoed HTTP verb tokens at bind time.
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// Endpoint is implemented by every view kind. A ViewSet holds Endpoints; a
// Router consumes the Operation they produce.
type Endpoint interface {
	// AsOperation resolves the view's configuration (inheriting from the
	// owning ViewSet where unset) and returns the operation descriptor.
	// The descriptor is built once; later calls return the same value.
	AsOperation() (*Operation, error)

	// AddTo registers the view's operation with a Router or an API.
	AddTo(target any) error

	base() *View
}

// View is a single declarative endpoint: path, methods, schemas, decorators
// and a handler. It is usable directly for custom endpoints (attach a handler
// with Handle or HandleCtx) and is embedded by the CRUD view kinds.
//
// A View is configuration, shared across concurrent requests once registered;
// handlers must not mutate it during dispatch.
type View struct {
	path           string
	methods        []string
	name           string
	statusCode     int
	responseSchema any // NotSet, explicit nil, or a prototype
	extraResponses map[int]any
	requestSchema  any // NotSet, explicit nil, or a prototype
	querySchema    any
	decorators     []Decorator
	options        map[string]any

	model *ModelMeta
	store Store

	handler    HandlerFunc
	ctxHandler CtxHandlerFunc

	owner      *ViewSet
	pathParams reflect.Type
	op         *Operation
}

// NewView creates a bare view for a custom endpoint. CRUD endpoints should
// use List, Create, Read, Update or Delete instead.
func NewView(path string, methods ...string) *View {
	return &View{
		path:           path,
		methods:        methods,
		responseSchema: NotSet,
	}
}

// Name sets the operation name. Inside a ViewSet an unset name defaults to
// the view's attribute name.
func (v *View) Name(name string) *View { v.name = name; return v }

// Path sets the path template.
func (v *View) Path(path string) *View { v.path = path; return v }

// Methods replaces the HTTP methods this view handles.
func (v *View) Methods(methods ...string) *View { v.methods = methods; return v }

// Status sets the status code of the primary response.
func (v *View) Status(code int) *View { v.statusCode = code; return v }

// Response sets the primary response schema. Passing nil declares an
// explicitly empty response body.
func (v *View) Response(schema any) *View { v.responseSchema = schema; return v }

// ExtraResponse declares an additional response, merged over the primary one
// in the operation descriptor.
func (v *View) ExtraResponse(status int, schema any) *View {
	if v.extraResponses == nil {
		v.extraResponses = make(map[int]any)
	}
	v.extraResponses[status] = schema
	return v
}

// Query sets the query-parameters schema.
func (v *View) Query(schema any) *View { v.querySchema = schema; return v }

// Body sets the request-body schema.
func (v *View) Body(schema any) *View { v.requestSchema = schema; return v }

// Model binds the resource model explicitly instead of inheriting it from
// the owning ViewSet.
func (v *View) Model(meta *ModelMeta) *View { v.model = meta; return v }

// Store binds the persistence store explicitly instead of inheriting it from
// the owning ViewSet.
func (v *View) Store(s Store) *View { v.store = s; return v }

// Decorate appends handler decorators. Decorators are applied in reverse
// order, so the first decorator added is outermost.
func (v *View) Decorate(decorators ...Decorator) *View {
	v.decorators = append(v.decorators, decorators...)
	return v
}

// Option sets an opaque operation option passed through to the router.
func (v *View) Option(key string, value any) *View {
	if v.options == nil {
		v.options = make(map[string]any)
	}
	v.options[key] = value
	return v
}

// Handle attaches a plain blocking handler.
func (v *View) Handle(fn HandlerFunc) *View { v.handler = fn; return v }

// HandleCtx attaches a context-aware handler.
func (v *View) HandleCtx(fn CtxHandlerFunc) *View { v.ctxHandler = fn; return v }

func (v *View) base() *View { return v }

// bindOwner attaches the view to its ViewSet. Ownership is exclusive and
// one-shot: a second bind fails, which also makes duplicate registration of
// the same view deterministic rather than silent.
func (v *View) bindOwner(owner *ViewSet) error {
	if v.owner != nil {
		return configErrorf(v.name, nil, "already bound to a viewset; views cannot be reassigned")
	}
	v.owner = owner
	return nil
}

// resolveFromOwner fills model and store from the owning ViewSet when unset.
// Schema inheritance is kind-specific and handled by each view kind.
func (v *View) resolveFromOwner() {
	if v.owner == nil {
		return
	}
	if v.model == nil {
		v.model = v.owner.model
	}
	if v.store == nil {
		v.store = v.owner.store
	}
}

// requireModel fails the bind when no resource model could be determined.
func (v *View) requireModel() error {
	if v.model == nil {
		return configErrorf(v.name, nil,
			"unable to determine model; set one on the view or its viewset")
	}
	return nil
}

// requireStore fails the bind when a CRUD view has no store to run its
// default hooks against.
func (v *View) requireStore() error {
	if v.store == nil {
		return configErrorf(v.name, nil,
			"unable to determine store; set one on the view or its viewset")
	}
	return nil
}

// standalone adapts the attached handler to the uniform OperationFunc
// signature. The adapter is selected here, once, at registration time.
func (v *View) standalone() (OperationFunc, error) {
	switch {
	case v.ctxHandler != nil:
		return OperationFunc(v.ctxHandler), nil
	case v.handler != nil:
		h := v.handler
		return func(_ context.Context, r *Request) (any, error) {
			return h(r)
		}, nil
	default:
		return nil, configErrorf(v.name, nil, "no handler attached")
	}
}

// validate enforces the structural invariants checked before registration.
func (v *View) validate() error {
	if v.path == "" {
		return configErrorf(v.name, nil, "path must not be empty")
	}
	if len(v.methods) == 0 {
		return configErrorf(v.name, nil, "methods must not be empty")
	}
	for _, m := range v.methods {
		if !knownMethods[m] {
			return configErrorf(v.name, nil, "unknown HTTP method %q", m)
		}
	}
	return nil
}

// buildOperation assembles and caches the operation descriptor. The resolved
// configuration is immutable afterwards.
func (v *View) buildOperation() (*Operation, error) {
	if v.op != nil {
		return v.op, nil
	}
	if err := v.validate(); err != nil {
		return nil, err
	}

	if v.pathParams == nil && v.model != nil {
		pp, err := resolvePathParameters(v.path, v.model)
		if err != nil {
			return nil, configErrorf(v.name, err, "resolving path parameters for %q", v.path)
		}
		v.pathParams = pp
	}

	handler, err := v.standalone()
	if err != nil {
		return nil, err
	}
	handler = chainDecorators(handler, v.decorators)

	v.op = &Operation{
		Name:       v.name,
		Path:       v.path,
		Methods:    append([]string(nil), v.methods...),
		Handler:    handler,
		PathParams: v.pathParams,
		Query:      schemaOrNil(v.querySchema),
		Body:       schemaOrNil(v.requestSchema),
		Status:     v.primaryStatus(),
		Responses:  v.mergedResponses(),
		Model:      v.model,
		Options:    v.options,
	}
	return v.op, nil
}

func (v *View) primaryStatus() int {
	if v.statusCode != 0 {
		return v.statusCode
	}
	return 200
}

// mergedResponses builds the status-to-schema map of the descriptor: the
// primary response overlaid with the extra responses. A nil map (not an
// empty one) signals that nothing was declared, so the router applies its
// own default instead of forcing one.
func (v *View) mergedResponses() map[int]any {
	responses := make(map[int]any)
	if !isNotSet(v.responseSchema) {
		responses[v.primaryStatus()] = v.responseSchema
	} else if v.statusCode != 0 {
		responses[v.statusCode] = nil
	}
	for status, schema := range v.extraResponses {
		responses[status] = schema
	}
	if len(responses) == 0 {
		return nil
	}
	return responses
}

func schemaOrNil(schema any) any {
	if schema == nil || isNotSet(schema) {
		return nil
	}
	return schema
}

// AsOperation implements Endpoint for custom views.
func (v *View) AsOperation() (*Operation, error) {
	v.resolveFromOwner()
	return v.buildOperation()
}

// AddTo registers the view with a Router or an API.
func (v *View) AddTo(target any) error {
	op, err := v.AsOperation()
	if err != nil {
		return err
	}
	return registerOperation(target, op)
}

// decodePathParams decodes the raw path values of a request into the view's
// synthesized path-parameters type. Returns nil for parameterless paths.
func decodePathParams(pathParams reflect.Type, raw map[string]string) (*Payload, error) {
	if pathParams == nil {
		return nil, nil
	}
	values := make(map[string][]string, len(raw))
	for name, val := range raw {
		values[name] = []string{val}
	}
	payload, err := DecodeValues(pathParams, values)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

var _ Endpoint = (*View)(nil)
