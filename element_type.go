package grouped

import (
	"fmt"
	"strings"
)

// FieldKind is the coarse type of a field within a record
type FieldKind int

const (
	// AnyKind indicates a field whose type could not be determined
	AnyKind FieldKind = iota
	// StringKind indicates a string field
	StringKind
	// NumberKind indicates a numeric field
	NumberKind
	// BoolKind indicates a boolean field
	BoolKind
	// NestedKind indicates an object or array field
	NestedKind
)

func (k FieldKind) String() string {
	switch k {
	case StringKind:
		return "String"
	case NumberKind:
		return "Number"
	case BoolKind:
		return "Bool"
	case NestedKind:
		return "Nested"
	default:
		return "Any"
	}
}

// Field is a named, typed member of a RecordType
type Field struct {
	Name string
	Kind FieldKind
}

// ElementType describes the type of the elements stored in a Collection's Partitions
type ElementType interface {
	Name() string    // Name returns a short name for this type
	Fields() []Field // Fields returns the known fields of this type, in order. Empty for untyped records.
	String() string
}

// RecordType is an ElementType made of named fields
type RecordType struct {
	TypeName   string
	TypeFields []Field
}

// UntypedRecord is the ElementType used when a Collection's element type cannot be resolved
var UntypedRecord ElementType = &RecordType{TypeName: "Record"}

// Name returns the name of this RecordType
func (r *RecordType) Name() string {
	return r.TypeName
}

// Fields returns a copy of the fields of this RecordType
func (r *RecordType) Fields() []Field {
	fields := make([]Field, len(r.TypeFields))
	copy(fields, r.TypeFields)
	return fields
}

func (r *RecordType) String() string {
	if len(r.TypeFields) == 0 {
		return r.TypeName
	}
	parts := make([]string, len(r.TypeFields))
	for i, f := range r.TypeFields {
		parts[i] = fmt.Sprintf("%s::%s", f.Name, f.Kind)
	}
	return fmt.Sprintf("%s{%s}", r.TypeName, strings.Join(parts, ", "))
}
