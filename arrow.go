package streadmulti

import (
	"fmt"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/nao1215/streadmulti/domain/model"
)

const (
	// arrowExtensionKey is the field metadata key naming an Arrow extension type
	arrowExtensionKey = "ARROW:extension:name"
	// geoArrowWKB is the GeoArrow extension name for WKB encoded geometry
	geoArrowWKB = "geoarrow.wkb"
)

// arrowType maps a column type to its Arrow data type
func arrowType(t model.ColumnType) arrow.DataType {
	switch t {
	case model.ColumnTypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case model.ColumnTypeInteger:
		return arrow.PrimitiveTypes.Int64
	case model.ColumnTypeDouble:
		return arrow.PrimitiveTypes.Float64
	case model.ColumnTypeBlob, model.ColumnTypeGeometry:
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.String
	}
}

// NewArrowSchema converts a schema to an Arrow schema. Every field is
// nullable; geometry fields are tagged as GeoArrow WKB.
func NewArrowSchema(schema model.Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(schema))
	for i, col := range schema {
		fields[i] = arrow.Field{Name: col.Name, Type: arrowType(col.Type), Nullable: true}
		if col.Type == model.ColumnTypeGeometry {
			fields[i].Metadata = arrow.NewMetadata([]string{arrowExtensionKey}, []string{geoArrowWKB})
		}
	}
	return arrow.NewSchema(fields, nil)
}

// BatchToRecord converts a row batch to an Arrow record. The caller must
// Release the record. A nil allocator uses the default Go allocator.
func BatchToRecord(mem memory.Allocator, batch *model.RowBatch) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	b := array.NewRecordBuilder(mem, NewArrowSchema(batch.Schema))
	defer b.Release()

	for i, col := range batch.Schema {
		fb := b.Field(i)
		fb.Reserve(len(batch.Rows))
		for r, row := range batch.Rows {
			if err := appendArrowValue(fb, row[i]); err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", r, col.Name, err)
			}
		}
	}
	return b.NewRecord(), nil
}

func appendArrowValue(fb array.Builder, v any) error {
	if v == nil {
		fb.AppendNull()
		return nil
	}

	ok := false
	switch bld := fb.(type) {
	case *array.StringBuilder:
		var s string
		if s, ok = v.(string); ok {
			bld.Append(s)
		}
	case *array.BooleanBuilder:
		var b bool
		if b, ok = v.(bool); ok {
			bld.Append(b)
		}
	case *array.Int64Builder:
		var n int64
		if n, ok = v.(int64); ok {
			bld.Append(n)
		}
	case *array.Float64Builder:
		var f float64
		if f, ok = v.(float64); ok {
			bld.Append(f)
		}
	case *array.BinaryBuilder:
		var raw []byte
		if raw, ok = v.([]byte); ok {
			bld.Append(raw)
		}
	}
	if !ok {
		return fmt.Errorf("%w: value of type %T does not fit %s", ErrInvalidData, v, fb.Type())
	}
	return nil
}
