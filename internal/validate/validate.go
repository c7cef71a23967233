package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"sync"
)

// patternCache caches compiled patterns across calls; schemas are static
// per route so the cache is tiny and append-only.
var patternCache sync.Map

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}

// Validate checks input against the schema. On success it returns the
// typed data with all values coerced to their declared types; unknown
// input fields are dropped. On failure it returns an ordered, non-empty
// list of violations, one per violated constraint. Validation performs
// no I/O.
func (s *Schema) Validate(input map[string]any) (Data, []FieldError) {
	data := make(Data, len(s.Fields))
	var errs []FieldError

	for _, field := range s.Fields {
		raw, present := input[field.Name]
		if !present || raw == nil {
			if field.Required {
				errs = append(errs, FieldError{
					Path:    field.Name,
					Message: "is required",
				})
			}
			continue
		}

		value, fieldErrs := checkField(&field, field.Name, raw)
		if len(fieldErrs) > 0 {
			errs = append(errs, fieldErrs...)
			continue
		}
		data[field.Name] = value
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return data, nil
}

// checkField coerces and validates one value, returning the typed value
// or the violations found at path.
func checkField(field *Field, path string, raw any) (any, []FieldError) {
	switch field.Type {
	case TypeString:
		return checkString(field, path, raw)
	case TypeInt:
		return checkInt(field, path, raw)
	case TypeFloat:
		return checkFloat(field, path, raw)
	case TypeBool:
		return checkBool(path, raw)
	case TypeObject:
		return checkObject(field, path, raw)
	case TypeArray:
		return checkArray(field, path, raw)
	default:
		return nil, []FieldError{{Path: path, Message: fmt.Sprintf("unsupported field type %q", field.Type)}}
	}
}

func checkString(field *Field, path string, raw any) (any, []FieldError) {
	value, ok := raw.(string)
	if !ok {
		return nil, []FieldError{{Path: path, Message: "must be a string"}}
	}

	var errs []FieldError
	if field.MinLen > 0 && len(value) < field.MinLen {
		errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf("must be at least %d characters", field.MinLen)})
	}
	if field.MaxLen > 0 && len(value) > field.MaxLen {
		errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf("must be at most %d characters", field.MaxLen)})
	}
	if field.Pattern != "" {
		re, err := compilePattern(field.Pattern)
		if err != nil {
			errs = append(errs, FieldError{Path: path, Message: "has an invalid pattern constraint"})
		} else if !re.MatchString(value) {
			errs = append(errs, FieldError{Path: path, Message: "has an invalid format"})
		}
	}
	if len(field.Enum) > 0 {
		found := false
		for _, allowed := range field.Enum {
			if value == allowed {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf("must be one of %v", field.Enum)})
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return value, nil
}

// coerceFloat converts JSON numbers and numeric strings to float64.
// Query parameters arrive as strings, so numeric strings are accepted.
func coerceFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func checkInt(field *Field, path string, raw any) (any, []FieldError) {
	f, ok := coerceFloat(raw)
	if !ok || f != math.Trunc(f) {
		return nil, []FieldError{{Path: path, Message: "must be an integer"}}
	}
	value := int64(f)

	var errs []FieldError
	if field.Min != nil && f < *field.Min {
		errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf("must be at least %v", *field.Min)})
	}
	if field.Max != nil && f > *field.Max {
		errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf("must be at most %v", *field.Max)})
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return value, nil
}

func checkFloat(field *Field, path string, raw any) (any, []FieldError) {
	value, ok := coerceFloat(raw)
	if !ok {
		return nil, []FieldError{{Path: path, Message: "must be a number"}}
	}

	var errs []FieldError
	if field.Min != nil && value < *field.Min {
		errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf("must be at least %v", *field.Min)})
	}
	if field.Max != nil && value > *field.Max {
		errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf("must be at most %v", *field.Max)})
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return value, nil
}

func checkBool(path string, raw any) (any, []FieldError) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch v {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
	}
	return nil, []FieldError{{Path: path, Message: "must be a boolean"}}
}

func checkObject(field *Field, path string, raw any) (any, []FieldError) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, []FieldError{{Path: path, Message: "must be an object"}}
	}

	value := make(map[string]any, len(field.Fields))
	var errs []FieldError

	for _, nested := range field.Fields {
		nestedPath := path + "." + nested.Name
		rawNested, present := obj[nested.Name]
		if !present || rawNested == nil {
			if nested.Required {
				errs = append(errs, FieldError{Path: nestedPath, Message: "is required"})
			}
			continue
		}

		v, nestedErrs := checkField(&nested, nestedPath, rawNested)
		if len(nestedErrs) > 0 {
			errs = append(errs, nestedErrs...)
			continue
		}
		value[nested.Name] = v
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return value, nil
}

func checkArray(field *Field, path string, raw any) (any, []FieldError) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, []FieldError{{Path: path, Message: "must be an array"}}
	}

	var errs []FieldError
	if field.MinLen > 0 && len(arr) < field.MinLen {
		errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf("must have at least %d items", field.MinLen)})
	}
	if field.MaxLen > 0 && len(arr) > field.MaxLen {
		errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf("must have at most %d items", field.MaxLen)})
	}

	value := make([]any, 0, len(arr))
	if field.Elem != nil {
		for i, rawElem := range arr {
			elemPath := fmt.Sprintf("%s[%d]", path, i)
			v, elemErrs := checkField(field.Elem, elemPath, rawElem)
			if len(elemErrs) > 0 {
				errs = append(errs, elemErrs...)
				continue
			}
			value = append(value, v)
		}
	} else {
		value = append(value, arr...)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return value, nil
}
