package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"slices"
)

// JSON is the subset of JSON Schema Sentinel sends to models as a response
// contract and checks their answers against.
type JSON struct {
	Type        string          `json:"type,omitempty"`
	Description string          `json:"description,omitempty"`
	Properties  map[string]JSON `json:"properties,omitempty"`
	Required    []string        `json:"required,omitempty"`
	Items       *JSON           `json:"items,omitempty"`
	Enum        []any           `json:"enum,omitempty"`
	Minimum     *float64        `json:"minimum,omitempty"`
	Maximum     *float64        `json:"maximum,omitempty"`
	Pattern     string          `json:"pattern,omitempty"`
	Format      string          `json:"format,omitempty"`
}

// Any accepts every value.
func Any() JSON { return JSON{} }

// String creates a string schema.
func String() JSON { return JSON{Type: "string"} }

// StringWithDesc creates a string schema with a description.
func StringWithDesc(desc string) JSON {
	return JSON{Type: "string", Description: desc}
}

// Int creates an integer schema.
func Int() JSON { return JSON{Type: "integer"} }

// Number creates a number schema.
func Number() JSON { return JSON{Type: "number"} }

// Bool creates a boolean schema.
func Bool() JSON { return JSON{Type: "boolean"} }

// Array creates an array schema whose elements match items.
func Array(items JSON) JSON {
	return JSON{Type: "array", Items: &items}
}

// Object creates an object schema. Every name in required must appear in
// the validated value.
func Object(properties map[string]JSON, required ...string) JSON {
	return JSON{Type: "object", Properties: properties, Required: required}
}

// Enum creates a schema accepting only the listed values.
func Enum(values ...any) JSON {
	return JSON{Enum: values}
}

// Between returns a copy of s bounded to [min, max].
func (s JSON) Between(min, max float64) JSON {
	s.Minimum = &min
	s.Maximum = &max
	return s
}

// Describe returns a copy of s with a description.
func (s JSON) Describe(desc string) JSON {
	s.Description = desc
	return s
}

// ValidateJSON decodes data and validates the result. Numbers are decoded
// as float64, the way encoding/json produces them.
func (s JSON) ValidateJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return s.Validate(v)
}

// Validate checks value against the schema. Structs are compared through
// their JSON encoding.
func (s JSON) Validate(value any) error {
	return s.validate("", value)
}

func (s JSON) validate(path string, value any) error {
	if value == nil {
		if s.Type == "" && len(s.Enum) == 0 {
			return nil
		}
		return pathErr(path, "value is null")
	}

	if len(s.Enum) > 0 {
		if !slices.ContainsFunc(s.Enum, func(e any) bool { return reflect.DeepEqual(e, value) }) {
			return pathErr(path, fmt.Sprintf("value %v is not one of %v", value, s.Enum))
		}
		return nil
	}

	switch s.Type {
	case "":
		return nil
	case "string":
		str, ok := value.(string)
		if !ok {
			return pathErr(path, fmt.Sprintf("expected string, got %T", value))
		}
		if s.Pattern != "" {
			re, err := regexp.Compile(s.Pattern)
			if err != nil {
				return pathErr(path, fmt.Sprintf("invalid pattern %q: %v", s.Pattern, err))
			}
			if !re.MatchString(str) {
				return pathErr(path, fmt.Sprintf("%q does not match %s", str, s.Pattern))
			}
		}
		return nil
	case "boolean":
		if _, ok := value.(bool); !ok {
			return pathErr(path, fmt.Sprintf("expected boolean, got %T", value))
		}
		return nil
	case "integer", "number":
		num, ok := toFloat(value)
		if !ok {
			return pathErr(path, fmt.Sprintf("expected %s, got %T", s.Type, value))
		}
		if s.Type == "integer" && num != float64(int64(num)) {
			return pathErr(path, fmt.Sprintf("expected integer, got %v", value))
		}
		if s.Minimum != nil && num < *s.Minimum {
			return pathErr(path, fmt.Sprintf("%v is less than minimum %v", num, *s.Minimum))
		}
		if s.Maximum != nil && num > *s.Maximum {
			return pathErr(path, fmt.Sprintf("%v is greater than maximum %v", num, *s.Maximum))
		}
		return nil
	case "array":
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return pathErr(path, fmt.Sprintf("expected array, got %T", value))
		}
		if s.Items == nil {
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if err := s.Items.validate(fmt.Sprintf("%s[%d]", path, i), rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	case "object":
		obj, err := toObject(value)
		if err != nil {
			return pathErr(path, err.Error())
		}
		for _, name := range s.Required {
			if _, ok := obj[name]; !ok {
				return pathErr(join(path, name), "required field is missing")
			}
		}
		for name, prop := range s.Properties {
			v, ok := obj[name]
			if !ok {
				continue
			}
			if err := prop.validate(join(path, name), v); err != nil {
				return err
			}
		}
		return nil
	default:
		return pathErr(path, fmt.Sprintf("unsupported schema type %q", s.Type))
	}
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func toObject(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct && rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("expected object, got %T", v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode object: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode object: %w", err)
	}
	return m, nil
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func pathErr(path, msg string) error {
	if path == "" {
		return fmt.Errorf("schema: %s", msg)
	}
	return fmt.Errorf("schema: %s: %s", path, msg)
}
