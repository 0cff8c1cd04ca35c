package schema

import (
	"reflect"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// FromType derives a schema from the Go type of v.
//
// Exported struct fields become properties named by their json tag. Fields
// without omitempty are required. A `description` tag is copied into the
// property. time.Time maps to a date-time string.
//
//	type CVSS struct {
//	    Score  float64 `json:"score"`
//	    Vector string  `json:"vector" description:"CVSS vector string"`
//	}
//	s := schema.FromType(CVSS{})
func FromType(v any) JSON {
	if v == nil {
		return Any()
	}
	return fromType(reflect.TypeOf(v))
}

func fromType(t reflect.Type) JSON {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return JSON{Type: "string", Format: "date-time"}
	}

	switch t.Kind() {
	case reflect.Struct:
		return fromStruct(t)
	case reflect.Slice, reflect.Array:
		return Array(fromType(t.Elem()))
	case reflect.Map:
		return JSON{Type: "object"}
	case reflect.String:
		return String()
	case reflect.Bool:
		return Bool()
	case reflect.Float32, reflect.Float64:
		return Number()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int()
	default:
		return Any()
	}
}

func fromStruct(t reflect.Type) JSON {
	out := JSON{Type: "object", Properties: make(map[string]JSON)}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}

		prop := fromType(f.Type)
		if desc := f.Tag.Get("description"); desc != "" {
			prop.Description = desc
		}
		out.Properties[name] = prop

		if !hasOption(opts, "omitempty") {
			out.Required = append(out.Required, name)
		}
	}
	return out
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var o string
		o, opts, _ = strings.Cut(opts, ",")
		if o == want {
			return true
		}
	}
	return false
}
