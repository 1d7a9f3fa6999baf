package rivet

import (
	"context"
	"reflect"
)

// ListView is the declarative list endpoint: GET the model's collection,
// filtered by query parameters, paginated with limit/offset by default.
//
// The queryset and filtering steps are overridable hooks. The default
// queryset is the unfiltered collection; the default filter delegates to the
// query schema when it implements Filterer, and otherwise applies every
// explicitly-set query field as an equality filter.
type ListView struct {
	View

	getQueryset    func(ctx context.Context, r *Request) (Queryset, error)
	filterQueryset func(ctx context.Context, qs Queryset, query *Payload) (Queryset, error)

	unpaginated bool
	pageLimit   int
	pageMax     int
}

// List creates a ListView with its defaults: path "/", method GET, status
// 200, response schema inherited from the owning ViewSet as a slice.
func List() *ListView {
	v := &ListView{
		View: View{
			path:           "/",
			methods:        []string{"GET"},
			statusCode:     200,
			responseSchema: NotSet,
		},
	}
	v.View.ctxHandler = v.handle
	return v
}

// Path sets the path template.
func (v *ListView) Path(path string) *ListView { v.View.Path(path); return v }

// Name sets the operation name.
func (v *ListView) Name(name string) *ListView { v.View.Name(name); return v }

// Methods replaces the HTTP methods.
func (v *ListView) Methods(methods ...string) *ListView { v.View.Methods(methods...); return v }

// Status sets the response status code.
func (v *ListView) Status(code int) *ListView { v.View.Status(code); return v }

// Response sets the response schema; it should be a slice prototype such as
// []DepartmentOut{}.
func (v *ListView) Response(schema any) *ListView { v.View.Response(schema); return v }

// Query sets the query-parameters schema used for filtering.
func (v *ListView) Query(schema any) *ListView { v.View.Query(schema); return v }

// Model binds the resource model explicitly.
func (v *ListView) Model(meta *ModelMeta) *ListView { v.View.Model(meta); return v }

// Store binds the persistence store explicitly.
func (v *ListView) Store(s Store) *ListView { v.View.Store(s); return v }

// Decorate appends handler decorators.
func (v *ListView) Decorate(decorators ...Decorator) *ListView { v.View.Decorate(decorators...); return v }

// Option sets an opaque operation option.
func (v *ListView) Option(key string, value any) *ListView { v.View.Option(key, value); return v }

// GetQueryset overrides the queryset hook.
func (v *ListView) GetQueryset(fn func(ctx context.Context, r *Request) (Queryset, error)) *ListView {
	v.getQueryset = fn
	return v
}

// FilterQueryset overrides the filtering hook.
func (v *ListView) FilterQueryset(fn func(ctx context.Context, qs Queryset, query *Payload) (Queryset, error)) *ListView {
	v.filterQueryset = fn
	return v
}

// Paginate adjusts the limit/offset pagination window.
func (v *ListView) Paginate(defaultLimit, maxLimit int) *ListView {
	v.pageLimit = defaultLimit
	v.pageMax = maxLimit
	return v
}

// Unpaginated disables pagination; the handler returns the full collection.
func (v *ListView) Unpaginated() *ListView { v.unpaginated = true; return v }

func (v *ListView) handle(ctx context.Context, r *Request) (any, error) {
	get := v.getQueryset
	if get == nil {
		get = v.defaultGetQueryset
	}
	qs, err := get(ctx, r)
	if err != nil {
		return nil, err
	}

	filter := v.filterQueryset
	if filter == nil {
		filter = v.defaultFilterQueryset
	}
	return filter(ctx, qs, r.Query)
}

func (v *ListView) defaultGetQueryset(ctx context.Context, r *Request) (Queryset, error) {
	return v.store.Queryset(v.model), nil
}

func (v *ListView) defaultFilterQueryset(ctx context.Context, qs Queryset, query *Payload) (Queryset, error) {
	if query == nil {
		return qs, nil
	}
	if f, ok := query.Value().(Filterer); ok {
		return f.Filter(ctx, qs)
	}
	for column, value := range query.SetFields() {
		qs = qs.Filter(column, value)
	}
	return qs, nil
}

// AsOperation implements Endpoint.
func (v *ListView) AsOperation() (*Operation, error) {
	if v.op != nil {
		return v.op, nil
	}
	v.resolveFromOwner()
	if v.owner != nil && isNotSet(v.responseSchema) && v.owner.defaultResponse != nil {
		v.responseSchema = sliceSchema(v.owner.defaultResponse)
	}
	if err := v.requireModel(); err != nil {
		return nil, err
	}
	if err := v.requireStore(); err != nil {
		return nil, err
	}
	if !v.unpaginated {
		// Appended last so pagination runs innermost, directly around the
		// handler, with user decorators outside it.
		v.decorators = append(v.decorators, PaginateLimitOffset(v.pageLimit, v.pageMax))
	}
	return v.buildOperation()
}

// AddTo registers the view with a Router or an API.
func (v *ListView) AddTo(target any) error {
	op, err := v.AsOperation()
	if err != nil {
		return err
	}
	return registerOperation(target, op)
}

// sliceSchema wraps a schema prototype into its slice form, used when a list
// view inherits the owning ViewSet's default response schema.
func sliceSchema(prototype any) any {
	return reflect.New(reflect.SliceOf(SchemaType(prototype))).Elem().Interface()
}

var _ Endpoint = (*ListView)(nil)
