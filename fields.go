package rivet

import "reflect"

// pathParamTypes is the static mapping from field kind to the Go type a path
// parameter of that kind decodes into. Kinds absent from the table cannot
// appear in a path and fail inference with ErrUnsupportedFieldType.
var pathParamTypes = map[FieldKind]reflect.Type{
	KindAuto:   reflect.TypeOf(int64(0)),
	KindInt:    reflect.TypeOf(int64(0)),
	KindUint:   reflect.TypeOf(uint64(0)),
	KindString: reflect.TypeOf(""),
	KindUUID:   uuidType,
	KindBytes:  reflect.TypeOf([]byte(nil)),
}

// inferFieldType maps a model field, addressed by column name, to the Go type
// used for it in a path-parameters struct.
//
// A foreign-key field addressed by its raw column (e.g. "department_id", not
// the relation accessor "department") resolves recursively to the related
// model's primary-key type; self-referential relations recurse against the
// same model.
func inferFieldType(meta *ModelMeta, column string) (reflect.Type, error) {
	field, err := meta.Field(column)
	if err != nil {
		return nil, err
	}

	if field.Kind == KindForeignKey {
		related, err := meta.Related(field)
		if err != nil {
			return nil, err
		}
		pk := related.PrimaryKey()
		if related == meta && pk.Column == column {
			// A fk that is its own pk would never terminate.
			return nil, &FieldError{Model: meta.Name, Field: column, Err: ErrUnsupportedFieldType}
		}
		return inferFieldType(related, pk.Column)
	}

	typ, ok := pathParamTypes[field.Kind]
	if !ok {
		return nil, &FieldError{Model: meta.Name, Field: column, Err: ErrUnsupportedFieldType}
	}
	return typ, nil
}
