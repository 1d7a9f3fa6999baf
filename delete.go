package rivet

import "context"

// DeleteView is the declarative delete endpoint: DELETE the instance
// addressed by the path parameters, respond with status 204 and no body.
//
// PostDelete receives a detached reference: the instance no longer reflects
// persisted state once the delete has run.
type DeleteView struct {
	View

	getModel   func(ctx context.Context, r *Request) (any, error)
	preDelete  func(ctx context.Context, r *Request, instance any) error
	postDelete func(ctx context.Context, r *Request, instance any) error
}

// Delete creates a DeleteView with its defaults: path "/{id}", method
// DELETE, status 204, empty response body.
func Delete() *DeleteView {
	v := &DeleteView{
		View: View{
			path:           "/{id}",
			methods:        []string{"DELETE"},
			statusCode:     204,
			responseSchema: nil, // explicitly empty, not inherited
		},
	}
	v.View.ctxHandler = v.handle
	return v
}

// Path sets the path template.
func (v *DeleteView) Path(path string) *DeleteView { v.View.Path(path); return v }

// Name sets the operation name.
func (v *DeleteView) Name(name string) *DeleteView { v.View.Name(name); return v }

// Methods replaces the HTTP methods.
func (v *DeleteView) Methods(methods ...string) *DeleteView { v.View.Methods(methods...); return v }

// Status sets the response status code.
func (v *DeleteView) Status(code int) *DeleteView { v.View.Status(code); return v }

// Model binds the resource model explicitly.
func (v *DeleteView) Model(meta *ModelMeta) *DeleteView { v.View.Model(meta); return v }

// Store binds the persistence store explicitly.
func (v *DeleteView) Store(s Store) *DeleteView { v.View.Store(s); return v }

// Decorate appends handler decorators.
func (v *DeleteView) Decorate(decorators ...Decorator) *DeleteView {
	v.View.Decorate(decorators...)
	return v
}

// Option sets an opaque operation option.
func (v *DeleteView) Option(key string, value any) *DeleteView { v.View.Option(key, value); return v }

// GetModel overrides the instance lookup hook.
func (v *DeleteView) GetModel(fn func(ctx context.Context, r *Request) (any, error)) *DeleteView {
	v.getModel = fn
	return v
}

// PreDelete overrides the pre-delete hook. The default does nothing.
func (v *DeleteView) PreDelete(fn func(ctx context.Context, r *Request, instance any) error) *DeleteView {
	v.preDelete = fn
	return v
}

// PostDelete overrides the post-delete hook. The default does nothing.
func (v *DeleteView) PostDelete(fn func(ctx context.Context, r *Request, instance any) error) *DeleteView {
	v.postDelete = fn
	return v
}

func (v *DeleteView) handle(ctx context.Context, r *Request) (any, error) {
	get := v.getModel
	if get == nil {
		get = v.defaultGetModel
	}
	instance, err := get(ctx, r)
	if err != nil {
		return nil, err
	}

	if v.preDelete != nil {
		if err := v.preDelete(ctx, r, instance); err != nil {
			return nil, err
		}
	}
	if err := v.store.Delete(ctx, v.model, instance); err != nil {
		return nil, err
	}
	if v.postDelete != nil {
		if err := v.postDelete(ctx, r, instance); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (v *DeleteView) defaultGetModel(ctx context.Context, r *Request) (any, error) {
	return lookupByPathParams(ctx, v.store, v.model, r)
}

// AsOperation implements Endpoint.
func (v *DeleteView) AsOperation() (*Operation, error) {
	if v.op != nil {
		return v.op, nil
	}
	v.resolveFromOwner()
	if err := v.requireModel(); err != nil {
		return nil, err
	}
	if err := v.requireStore(); err != nil {
		return nil, err
	}
	return v.buildOperation()
}

// AddTo registers the view with a Router or an API.
func (v *DeleteView) AddTo(target any) error {
	op, err := v.AsOperation()
	if err != nil {
		return err
	}
	return registerOperation(target, op)
}

var _ Endpoint = (*DeleteView)(nil)
