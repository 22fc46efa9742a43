// Package jsonrow provides Rows backed by single JSON objects, shared by the JSON-lines Collections.
package jsonrow

import (
	"fmt"

	"github.com/go-sif/grouped"
	"github.com/tidwall/gjson"
)

// Row is a Row backed by a single JSON object
type Row struct {
	data []byte
}

// New creates a Row from raw JSON. data is not copied.
func New(data []byte) *Row {
	return &Row{data: data}
}

// Get returns the value of a column, as decoded by gjson. Column names may be gjson paths.
func (r *Row) Get(colName string) (interface{}, error) {
	res := gjson.GetBytes(r.data, colName)
	if !res.Exists() {
		return nil, fmt.Errorf("Column %s does not exist in row", colName)
	}
	return res.Value(), nil
}

// Bytes returns the raw JSON for this Row
func (r *Row) Bytes() []byte {
	return r.data
}

// InferElementType derives a record type from the fields of a JSON object
func InferElementType(data []byte) (grouped.ElementType, error) {
	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("Row is not a JSON object: %s", data)
	}
	fields := make([]grouped.Field, 0)
	parsed.ForEach(func(key, value gjson.Result) bool {
		fields = append(fields, grouped.Field{Name: key.String(), Kind: fieldKind(value)})
		return true
	})
	return &grouped.RecordType{TypeName: "Row", TypeFields: fields}, nil
}

func fieldKind(value gjson.Result) grouped.FieldKind {
	switch value.Type {
	case gjson.String:
		return grouped.StringKind
	case gjson.Number:
		return grouped.NumberKind
	case gjson.True, gjson.False:
		return grouped.BoolKind
	case gjson.JSON:
		return grouped.NestedKind
	default:
		return grouped.AnyKind
	}
}
