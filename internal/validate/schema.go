// Package validate provides declarative, side-effect-free input
// validation for API routes. A Schema describes the expected shape of a
// request body or query; validation produces either typed data or an
// ordered list of field violations.
package validate

// Type is the expected type of a field.
type Type string

// Field types.
const (
	TypeString Type = "string"
	TypeInt    Type = "int"
	TypeFloat  Type = "float"
	TypeBool   Type = "bool"
	TypeObject Type = "object"
	TypeArray  Type = "array"
)

// Field describes one input field and its constraints.
type Field struct {
	// Name is the field name in the input object.
	Name string

	// Type is the expected type after coercion.
	Type Type

	// Required rejects absent or null values.
	Required bool

	// MinLen and MaxLen bound string length (and array length for
	// TypeArray). Zero means unconstrained.
	MinLen int
	MaxLen int

	// Min and Max bound numeric values.
	Min *float64
	Max *float64

	// Pattern is a regular expression the string value must match.
	Pattern string

	// Enum restricts a string value to a fixed set.
	Enum []string

	// Fields describes nested object fields (TypeObject only).
	Fields []Field

	// Elem describes the element of an array (TypeArray only). Its Name
	// is ignored.
	Elem *Field
}

// Schema describes the input of a route. It is a pure description with
// no mutable state and is safe for concurrent use.
type Schema struct {
	Fields []Field
}

// Data is the typed output of a successful validation. Handlers consume
// it instead of re-reading raw input.
type Data = map[string]any

// FieldError is one violated constraint. Path is the dotted/bracketed
// path into the input structure, e.g. "profile.age" or "tags[2]".
type FieldError struct {
	Path    string `json:"fieldPath"`
	Message string `json:"message"`
}
