package rivet

import "context"

// CreateView is the declarative create endpoint: POST a request body,
// materialize and persist a new model instance, respond with status 201.
//
// Many-to-many fields in the body are deferred: the instance must own a
// primary key before relation rows can reference it, so relations are set
// strictly after the initial persist, never before.
type CreateView struct {
	View

	initModel func(ctx context.Context, r *Request) (any, error)
	preSave   func(ctx context.Context, r *Request, instance any) error
	postSave  func(ctx context.Context, r *Request, instance any) error
}

// Create creates a CreateView with its defaults: path "/", method POST,
// status 201, request and response schemas inherited from the owning
// ViewSet.
func Create() *CreateView {
	v := &CreateView{
		View: View{
			path:           "/",
			methods:        []string{"POST"},
			statusCode:     201,
			responseSchema: NotSet,
			requestSchema:  NotSet,
		},
	}
	v.View.ctxHandler = v.handle
	return v
}

// Path sets the path template.
func (v *CreateView) Path(path string) *CreateView { v.View.Path(path); return v }

// Name sets the operation name.
func (v *CreateView) Name(name string) *CreateView { v.View.Name(name); return v }

// Methods replaces the HTTP methods.
func (v *CreateView) Methods(methods ...string) *CreateView { v.View.Methods(methods...); return v }

// Status sets the response status code.
func (v *CreateView) Status(code int) *CreateView { v.View.Status(code); return v }

// Response sets the response schema.
func (v *CreateView) Response(schema any) *CreateView { v.View.Response(schema); return v }

// Body sets the request-body schema.
func (v *CreateView) Body(schema any) *CreateView { v.View.Body(schema); return v }

// Model binds the resource model explicitly.
func (v *CreateView) Model(meta *ModelMeta) *CreateView { v.View.Model(meta); return v }

// Store binds the persistence store explicitly.
func (v *CreateView) Store(s Store) *CreateView { v.View.Store(s); return v }

// Decorate appends handler decorators.
func (v *CreateView) Decorate(decorators ...Decorator) *CreateView {
	v.View.Decorate(decorators...)
	return v
}

// Option sets an opaque operation option.
func (v *CreateView) Option(key string, value any) *CreateView { v.View.Option(key, value); return v }

// InitModel overrides instance initialization. The default returns a bare
// new instance of the resource model; override to seed defaults from the
// request or path parameters.
func (v *CreateView) InitModel(fn func(ctx context.Context, r *Request) (any, error)) *CreateView {
	v.initModel = fn
	return v
}

// PreSave overrides the pre-persist hook. The default runs full struct
// validation on the instance.
func (v *CreateView) PreSave(fn func(ctx context.Context, r *Request, instance any) error) *CreateView {
	v.preSave = fn
	return v
}

// PostSave overrides the post-persist hook. The default does nothing.
func (v *CreateView) PostSave(fn func(ctx context.Context, r *Request, instance any) error) *CreateView {
	v.postSave = fn
	return v
}

func (v *CreateView) handle(ctx context.Context, r *Request) (any, error) {
	init := v.initModel
	if init == nil {
		init = v.defaultInitModel
	}
	instance, err := init(ctx, r)
	if err != nil {
		return nil, err
	}

	var deferred []Relation
	if r.Body != nil {
		deferred, err = r.Body.Apply(instance, v.model)
		if err != nil {
			return nil, err
		}
	}

	if err := v.runPreSave(ctx, r, instance); err != nil {
		return nil, err
	}
	if err := v.store.Insert(ctx, v.model, instance); err != nil {
		return nil, err
	}
	if err := v.runPostSave(ctx, r, instance); err != nil {
		return nil, err
	}

	// The instance has a primary key only now; relation rows can point at it.
	for _, rel := range deferred {
		if err := v.store.SetRelation(ctx, v.model, instance, rel.Column, rel.Values); err != nil {
			return nil, err
		}
	}
	return instance, nil
}

func (v *CreateView) defaultInitModel(ctx context.Context, r *Request) (any, error) {
	return v.model.New(), nil
}

func (v *CreateView) runPreSave(ctx context.Context, r *Request, instance any) error {
	if v.preSave != nil {
		return v.preSave(ctx, r, instance)
	}
	return validate.Struct(instance)
}

func (v *CreateView) runPostSave(ctx context.Context, r *Request, instance any) error {
	if v.postSave != nil {
		return v.postSave(ctx, r, instance)
	}
	return nil
}

// AsOperation implements Endpoint.
func (v *CreateView) AsOperation() (*Operation, error) {
	if v.op != nil {
		return v.op, nil
	}
	v.resolveFromOwner()
	if v.owner != nil {
		if isNotSet(v.requestSchema) && v.owner.defaultRequest != nil {
			v.requestSchema = v.owner.defaultRequest
		}
		if isNotSet(v.responseSchema) && v.owner.defaultResponse != nil {
			v.responseSchema = v.owner.defaultResponse
		}
	}
	if err := v.requireModel(); err != nil {
		return nil, err
	}
	if err := v.requireStore(); err != nil {
		return nil, err
	}
	if isNotSet(v.requestSchema) {
		return nil, configErrorf(v.name, nil,
			"unable to determine request schema; set one on the view or its viewset")
	}
	return v.buildOperation()
}

// AddTo registers the view with a Router or an API.
func (v *CreateView) AddTo(target any) error {
	op, err := v.AsOperation()
	if err != nil {
		return err
	}
	return registerOperation(target, op)
}

var _ Endpoint = (*CreateView)(nil)
