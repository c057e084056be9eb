package core

import "fmt"

// SemanticType is the base type assigned during inference.
type SemanticType int

// SemanticType constants.
const (
	TypeNull SemanticType = iota
	TypeInteger
	TypeReal
	TypeText
	TypeBlob
	TypeBoolean
	// TypeArgument is the provisional type of a bind parameter before its
	// parent expression resolves it.
	TypeArgument
)

var semanticNames = [...]string{"NULL", "INTEGER", "REAL", "TEXT", "BLOB", "BOOLEAN", "ARGUMENT"}

// String returns the SQL spelling of the type.
func (t SemanticType) String() string {
	if int(t) < len(semanticNames) {
		return semanticNames[t]
	}
	return fmt.Sprintf("SemanticType(%d)", int(t))
}

// ParseSemanticType is the inverse of String.
func ParseSemanticType(s string) (SemanticType, bool) {
	for i, name := range semanticNames {
		if name == s {
			return SemanticType(i), true
		}
	}
	return TypeNull, false
}

// Storage returns the storage class backing the type. BOOLEAN is stored as
// INTEGER.
func (t SemanticType) Storage() SemanticType {
	if t == TypeBoolean {
		return TypeInteger
	}
	return t
}

// BindKind selects the PreparedStatement/Cursor accessor for a type.
type BindKind int

// BindKind constants.
const (
	BindDynamic BindKind = iota // chosen from the Go value at bind time
	BindLong
	BindDouble
	BindString
	BindBytes
)

// String returns the accessor name.
func (k BindKind) String() string {
	switch k {
	case BindLong:
		return "long"
	case BindDouble:
		return "double"
	case BindString:
		return "string"
	case BindBytes:
		return "bytes"
	default:
		return "dynamic"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k BindKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *BindKind) UnmarshalText(text []byte) error {
	for _, c := range []BindKind{BindDynamic, BindLong, BindDouble, BindString, BindBytes} {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown bind kind %q", text)
}

// BindKind returns the accessor used for values of this type.
func (t SemanticType) BindKind() BindKind {
	switch t {
	case TypeInteger, TypeBoolean:
		return BindLong
	case TypeReal:
		return BindDouble
	case TypeText:
		return BindString
	case TypeBlob:
		return BindBytes
	default:
		return BindDynamic
	}
}

// GoType returns the Go type used for non-null values of this type.
func (t SemanticType) GoType() string {
	switch t {
	case TypeInteger:
		return "int64"
	case TypeReal:
		return "float64"
	case TypeText:
		return "string"
	case TypeBlob:
		return "[]byte"
	case TypeBoolean:
		return "bool"
	default:
		return "any"
	}
}

// DialectType is a column type a dialect refines beyond the base storage
// classes, such as MySQL TINYINT or PostgreSQL SMALLINT.
type DialectType interface {
	// Name is the SQL spelling used in DDL.
	Name() string
	// Storage is the base type the values are stored as.
	Storage() SemanticType
	// GoType is the Go type of non-null values.
	GoType() string
	// BindKind selects the accessor used to bind and read values.
	BindKind() BindKind
	// Encode converts a Go value into the value bound to the statement.
	Encode(v any) (any, error)
	// Decode converts a value read from a cursor into the Go value.
	Decode(v any) (any, error)
}

// IntermediateType is the result of inferring one expression. It is a value:
// the With/As helpers return modified copies.
type IntermediateType struct {
	Type       SemanticType
	Nullable   bool
	CustomType string      // adapter type from an "AS" column clause
	Dialect    DialectType // set when a dialect column type applies
	Name       string      // accessor name suggestion
	Bind       *BindParam  // placeholder this type was inferred for
}

// NewType returns a non-null type with the default accessor name.
func NewType(t SemanticType) IntermediateType {
	return IntermediateType{Type: t, Name: "value"}
}

// AsNullable returns a nullable copy.
func (t IntermediateType) AsNullable() IntermediateType {
	t.Nullable = true
	return t
}

// AsNonNullable returns a non-null copy.
func (t IntermediateType) AsNonNullable() IntermediateType {
	t.Nullable = false
	return t
}

// NullableIf returns a copy that is nullable when b is true. It never
// clears nullability.
func (t IntermediateType) NullableIf(b bool) IntermediateType {
	if b {
		t.Nullable = true
	}
	return t
}

// WithName returns a copy with the accessor name replaced.
func (t IntermediateType) WithName(name string) IntermediateType {
	t.Name = name
	return t
}

// WithBind returns a copy attached to a placeholder.
func (t IntermediateType) WithBind(b *BindParam) IntermediateType {
	t.Bind = b
	return t
}

// Storage returns the storage class of the type, honoring dialect types.
func (t IntermediateType) Storage() SemanticType {
	if t.Dialect != nil {
		return t.Dialect.Storage()
	}
	return t.Type.Storage()
}

// BindKind returns the accessor used for this type.
func (t IntermediateType) BindKind() BindKind {
	if t.Dialect != nil {
		return t.Dialect.BindKind()
	}
	return t.Type.BindKind()
}

// GoType returns the Go type exposed for this type, with a pointer for
// nullable scalars.
func (t IntermediateType) GoType() string {
	base := t.Type.GoType()
	if t.Dialect != nil {
		base = t.Dialect.GoType()
	}
	if t.CustomType != "" {
		base = t.CustomType
	}
	if t.Nullable && base != "any" && base != "[]byte" {
		return "*" + base
	}
	return base
}

// String renders the type as TYPE or TYPE? when nullable.
func (t IntermediateType) String() string {
	name := t.Type.String()
	if t.Dialect != nil {
		name = t.Dialect.Name()
	}
	if t.CustomType != "" {
		name += " AS " + t.CustomType
	}
	if t.Nullable {
		name += "?"
	}
	return name
}

// EncapsulatingType picks, among the storage types present in types, the
// one appearing last in order. The result is nullable only when every
// operand is nullable. With no operand of a listed type the result is a
// nullable NULL.
func EncapsulatingType(types []IntermediateType, order ...SemanticType) IntermediateType {
	best := -1
	allNullable := true
	for _, t := range types {
		if !t.Nullable {
			allNullable = false
		}
		for i, o := range order {
			if t.Storage() == o && i > best {
				best = i
			}
		}
	}
	if best < 0 {
		return NewType(TypeNull).AsNullable()
	}
	return NewType(order[best]).NullableIf(allNullable)
}
