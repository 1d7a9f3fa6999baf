package rivet

import (
	"reflect"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([^{}/]+)\}`)

// PathPlaceholders extracts the distinct placeholder names from a path
// template, in order of first appearance. Duplicate placeholders collapse to
// one name.
func PathPlaceholders(path string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(path, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// resolvePathParameters synthesizes the path-parameters struct type for a
// path template against a model: one exported field per distinct placeholder,
// typed by inferFieldType. Returns nil for parameterless paths.
//
// The synthesized fields carry json and schema tags with the original
// placeholder name so the decoding layer can address them.
func resolvePathParameters(path string, meta *ModelMeta) (reflect.Type, error) {
	names := PathPlaceholders(path)
	if len(names) == 0 {
		return nil, nil
	}

	fields := make([]reflect.StructField, len(names))
	for i, name := range names {
		typ, err := inferFieldType(meta, name)
		if err != nil {
			return nil, err
		}
		fields[i] = reflect.StructField{
			Name: exportName(name),
			Type: typ,
			Tag:  reflect.StructTag(`json:"` + name + `" schema:"` + name + `"`),
		}
	}
	return reflect.StructOf(fields), nil
}

// exportName turns a snake_case placeholder into an exported Go field name
// ("department_id" -> "DepartmentId").
func exportName(name string) string {
	parts := strings.Split(name, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	if b.Len() == 0 {
		return "X"
	}
	return b.String()
}
