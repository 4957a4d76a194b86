package streadmulti

import (
	"strconv"
	"strings"

	"github.com/nao1215/streadmulti/domain/model"
)

const (
	// fileColumnName is the preferred name of the file provenance column
	fileColumnName = ".filename"
	// layerColumnName is the preferred name of the layer provenance column
	layerColumnName = ".layer"
)

// coercion converts a source value to the canonical column type; nil means identity
type coercion func(any) any

func intToDouble(v any) any {
	if i, ok := v.(int64); ok {
		return float64(i)
	}
	return v
}

// toVarchar renders a typed value as text for a column whose canonical type is
// only a placeholder
func toVarchar(v any) any {
	switch val := v.(type) {
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case []byte:
		return string(val)
	default:
		return v
	}
}

// reconcile checks a source schema against the canonical one. Names and order
// must match exactly; types must be equal or widen safely. An untyped column
// carries only nulls on the source side and matches any type; on the canonical
// side its values arrive as text. The returned slice is nil when no column
// needs coercion.
func reconcile(canonical model.Schema, desc model.SourceDescriptor, actual model.Schema) ([]coercion, error) {
	mismatch := func(i int, reason model.MismatchReason) *model.SchemaMismatchError {
		e := &model.SchemaMismatchError{
			Path:   desc.Path,
			Layer:  desc.Layer,
			Index:  i,
			Reason: reason,
		}
		if i < len(canonical) {
			e.Expected = canonical[i].Name
			e.ExpectedType = canonical[i].Type
		}
		if i < len(actual) {
			e.Actual = actual[i].Name
			e.ActualType = actual[i].Type
		}
		return e
	}

	var coercions []coercion
	coerce := func(i int, fn coercion) {
		if coercions == nil {
			coercions = make([]coercion, len(canonical))
		}
		coercions[i] = fn
	}

	for i := range max(len(canonical), len(actual)) {
		switch {
		case i >= len(actual):
			return nil, mismatch(i, model.MismatchMissingColumn)
		case i >= len(canonical):
			return nil, mismatch(i, model.MismatchExtraColumn)
		case canonical[i].Name != actual[i].Name:
			return nil, mismatch(i, model.MismatchName)
		case actual[i].Untyped, canonical[i].Type == actual[i].Type:
			continue
		case canonical[i].Untyped:
			coerce(i, toVarchar)
		case actual[i].Type.CanWidenTo(canonical[i].Type):
			coerce(i, intToDouble)
		default:
			return nil, mismatch(i, model.MismatchType)
		}
	}
	return coercions, nil
}

// provenanceNames picks the file and layer column names, prefixing dots until
// neither collides with a data column or the other. Names compare
// case-insensitively.
func provenanceNames(schema model.Schema) (string, string) {
	taken := func(name string, others ...string) bool {
		for _, n := range append(schema.Names(), others...) {
			if strings.EqualFold(n, name) {
				return true
			}
		}
		return false
	}
	pick := func(name string, others ...string) string {
		for taken(name, others...) {
			name = "." + name
		}
		return name
	}
	file := pick(fileColumnName)
	return file, pick(layerColumnName, file)
}

// outputSchema appends the provenance columns to the canonical schema
func outputSchema(canonical model.Schema, fileColumn, layerColumn string) model.Schema {
	out := make(model.Schema, 0, len(canonical)+2)
	out = append(out, canonical...)
	return append(out,
		model.Column{Name: fileColumn, Type: model.ColumnTypeVarchar},
		model.Column{Name: layerColumn, Type: model.ColumnTypeVarchar},
	)
}
