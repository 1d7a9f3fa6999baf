package rivet

import "context"

// UpdateView is the declarative update endpoint: PUT a request body against
// the instance addressed by the path parameters.
//
// Only explicitly-set body fields are assigned, so "PATCH"-style partial
// updates need nothing more than Methods("PATCH") and a body schema with
// optional fields. Unlike CreateView, many-to-many fields are assigned
// inline: the instance already has a primary key from the lookup, so no
// deferral is needed.
type UpdateView struct {
	View

	getModel func(ctx context.Context, r *Request) (any, error)
	preSave  func(ctx context.Context, r *Request, instance any) error
	postSave func(ctx context.Context, r *Request, instance any) error
}

// Update creates an UpdateView with its defaults: path "/{id}", method PUT,
// status 200, request and response schemas inherited from the owning
// ViewSet.
func Update() *UpdateView {
	v := &UpdateView{
		View: View{
			path:           "/{id}",
			methods:        []string{"PUT"},
			statusCode:     200,
			responseSchema: NotSet,
			requestSchema:  NotSet,
		},
	}
	v.View.ctxHandler = v.handle
	return v
}

// Path sets the path template.
func (v *UpdateView) Path(path string) *UpdateView { v.View.Path(path); return v }

// Name sets the operation name.
func (v *UpdateView) Name(name string) *UpdateView { v.View.Name(name); return v }

// Methods replaces the HTTP methods.
func (v *UpdateView) Methods(methods ...string) *UpdateView { v.View.Methods(methods...); return v }

// Status sets the response status code.
func (v *UpdateView) Status(code int) *UpdateView { v.View.Status(code); return v }

// Response sets the response schema.
func (v *UpdateView) Response(schema any) *UpdateView { v.View.Response(schema); return v }

// Body sets the request-body schema.
func (v *UpdateView) Body(schema any) *UpdateView { v.View.Body(schema); return v }

// Model binds the resource model explicitly.
func (v *UpdateView) Model(meta *ModelMeta) *UpdateView { v.View.Model(meta); return v }

// Store binds the persistence store explicitly.
func (v *UpdateView) Store(s Store) *UpdateView { v.View.Store(s); return v }

// Decorate appends handler decorators.
func (v *UpdateView) Decorate(decorators ...Decorator) *UpdateView {
	v.View.Decorate(decorators...)
	return v
}

// Option sets an opaque operation option.
func (v *UpdateView) Option(key string, value any) *UpdateView { v.View.Option(key, value); return v }

// GetModel overrides the instance lookup hook.
func (v *UpdateView) GetModel(fn func(ctx context.Context, r *Request) (any, error)) *UpdateView {
	v.getModel = fn
	return v
}

// PreSave overrides the pre-persist hook. The default runs full struct
// validation on the instance.
func (v *UpdateView) PreSave(fn func(ctx context.Context, r *Request, instance any) error) *UpdateView {
	v.preSave = fn
	return v
}

// PostSave overrides the post-persist hook. The default does nothing.
func (v *UpdateView) PostSave(fn func(ctx context.Context, r *Request, instance any) error) *UpdateView {
	v.postSave = fn
	return v
}

func (v *UpdateView) handle(ctx context.Context, r *Request) (any, error) {
	get := v.getModel
	if get == nil {
		get = v.defaultGetModel
	}
	instance, err := get(ctx, r)
	if err != nil {
		return nil, err
	}

	if r.Body != nil {
		relations, err := r.Body.ApplySet(instance, v.model)
		if err != nil {
			return nil, err
		}
		for _, rel := range relations {
			if err := v.store.SetRelation(ctx, v.model, instance, rel.Column, rel.Values); err != nil {
				return nil, err
			}
		}
	}

	if v.preSave != nil {
		err = v.preSave(ctx, r, instance)
	} else {
		err = validate.Struct(instance)
	}
	if err != nil {
		return nil, err
	}

	if err := v.store.Update(ctx, v.model, instance); err != nil {
		return nil, err
	}
	if v.postSave != nil {
		if err := v.postSave(ctx, r, instance); err != nil {
			return nil, err
		}
	}
	return instance, nil
}

func (v *UpdateView) defaultGetModel(ctx context.Context, r *Request) (any, error) {
	return lookupByPathParams(ctx, v.store, v.model, r)
}

// AsOperation implements Endpoint.
func (v *UpdateView) AsOperation() (*Operation, error) {
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
func (v *UpdateView) AddTo(target any) error {
	op, err := v.AsOperation()
	if err != nil {
		return err
	}
	return registerOperation(target, op)
}

var _ Endpoint = (*UpdateView)(nil)
