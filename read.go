package rivet

import "context"

// ReadView is the declarative read endpoint: GET a single instance addressed
// by the path parameters.
//
// The default lookup folds every path parameter into one equality filter, so
// a nested path like "/{department_id}/employees/{id}" misses unless all
// parameters match. Store lookup failures (ErrNotFound, ErrMultipleFound)
// propagate untouched.
type ReadView struct {
	View

	getModel func(ctx context.Context, r *Request) (any, error)
}

// Read creates a ReadView with its defaults: path "/{id}", method GET,
// status 200, response schema inherited from the owning ViewSet.
func Read() *ReadView {
	v := &ReadView{
		View: View{
			path:           "/{id}",
			methods:        []string{"GET"},
			statusCode:     200,
			responseSchema: NotSet,
		},
	}
	v.View.ctxHandler = v.handle
	return v
}

// Path sets the path template.
func (v *ReadView) Path(path string) *ReadView { v.View.Path(path); return v }

// Name sets the operation name.
func (v *ReadView) Name(name string) *ReadView { v.View.Name(name); return v }

// Methods replaces the HTTP methods.
func (v *ReadView) Methods(methods ...string) *ReadView { v.View.Methods(methods...); return v }

// Status sets the response status code.
func (v *ReadView) Status(code int) *ReadView { v.View.Status(code); return v }

// Response sets the response schema.
func (v *ReadView) Response(schema any) *ReadView { v.View.Response(schema); return v }

// Model binds the resource model explicitly.
func (v *ReadView) Model(meta *ModelMeta) *ReadView { v.View.Model(meta); return v }

// Store binds the persistence store explicitly.
func (v *ReadView) Store(s Store) *ReadView { v.View.Store(s); return v }

// Decorate appends handler decorators.
func (v *ReadView) Decorate(decorators ...Decorator) *ReadView { v.View.Decorate(decorators...); return v }

// Option sets an opaque operation option.
func (v *ReadView) Option(key string, value any) *ReadView { v.View.Option(key, value); return v }

// GetModel overrides the instance lookup hook.
func (v *ReadView) GetModel(fn func(ctx context.Context, r *Request) (any, error)) *ReadView {
	v.getModel = fn
	return v
}

func (v *ReadView) handle(ctx context.Context, r *Request) (any, error) {
	get := v.getModel
	if get == nil {
		get = v.defaultGetModel
	}
	return get(ctx, r)
}

func (v *ReadView) defaultGetModel(ctx context.Context, r *Request) (any, error) {
	return lookupByPathParams(ctx, v.store, v.model, r)
}

// lookupByPathParams is the shared default GetModel of the read, update and
// delete views: an exact lookup using every path-parameter field as an
// equality filter.
func lookupByPathParams(ctx context.Context, store Store, meta *ModelMeta, r *Request) (any, error) {
	filters := map[string]any{}
	if r.PathParams != nil {
		filters = r.PathParams.Map()
	}
	return store.Get(ctx, meta, filters)
}

// AsOperation implements Endpoint.
func (v *ReadView) AsOperation() (*Operation, error) {
	if v.op != nil {
		return v.op, nil
	}
	v.resolveFromOwner()
	if v.owner != nil && isNotSet(v.responseSchema) && v.owner.defaultResponse != nil {
		v.responseSchema = v.owner.defaultResponse
	}
	if err := v.requireModel(); err != nil {
		return nil, err
	}
	if err := v.requireStore(); err != nil {
		return nil, err
	}
	return v.buildOperation()
}

// AddTo registers the view with a Router or an API.
func (v *ReadView) AddTo(target any) error {
	op, err := v.AsOperation()
	if err != nil {
		return err
	}
	return registerOperation(target, op)
}

var _ Endpoint = (*ReadView)(nil)
