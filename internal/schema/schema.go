// Package schema implements the small structural schema used for
// configuration, action input/output and remote call results. A Schema
// parses a decoded value (maps, slices, scalars as produced by encoding/json
// or gopkg.in/yaml.v3): it validates types, applies defaults and projects
// objects onto their declared properties. Parse either returns the projected
// value or a ValidationErrors listing every violation.
package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// JSON schema type names.
const (
	TypeObject  = "object"
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeAny     = ""
)

// Schema describes the accepted shape of a value.
type Schema struct {
	Type        string
	Description string
	Properties  map[string]*Schema
	Required    []string
	Enum        []any
	Items       *Schema
	Minimum     *float64
	Maximum     *float64
	Default     any
	DefaultFunc func() any
	// Passthrough keeps undeclared object keys instead of stripping them.
	Passthrough bool
}

// ValidationError represents a single violation with the path that caused it.
type ValidationError struct {
	Field   string `json:"field"`           // Dotted path of the offending value
	Value   any    `json:"value,omitempty"` // Value that was provided
	Message string `json:"message"`         // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	field := e.Field
	if field == "" {
		field = "(root)"
	}
	return fmt.Sprintf("validation error for field '%s': %s", field, e.Message)
}

// ValidationErrors aggregates every violation found by Parse.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Object builds an object schema.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: TypeObject, Properties: props, Required: required}
}

// String builds a string schema.
func String() *Schema { return &Schema{Type: TypeString} }

// Integer builds an integer schema.
func Integer() *Schema { return &Schema{Type: TypeInteger} }

// Number builds a number schema.
func Number() *Schema { return &Schema{Type: TypeNumber} }

// Boolean builds a boolean schema.
func Boolean() *Schema { return &Schema{Type: TypeBoolean} }

// Array builds an array schema.
func Array(items *Schema) *Schema { return &Schema{Type: TypeArray, Items: items} }

// Any builds a schema accepting any value.
func Any() *Schema { return &Schema{Type: TypeAny} }

func (s *Schema) clone() *Schema {
	c := *s
	return &c
}

// WithDefault returns a copy with a default value applied when the value is absent.
func (s *Schema) WithDefault(v any) *Schema {
	c := s.clone()
	c.Default = v
	return c
}

// WithDefaultFunc returns a copy whose default is computed at parse time.
func (s *Schema) WithDefaultFunc(fn func() any) *Schema {
	c := s.clone()
	c.DefaultFunc = fn
	return c
}

// WithRange returns a copy with inclusive numeric bounds.
func (s *Schema) WithRange(min, max float64) *Schema {
	c := s.clone()
	c.Minimum = &min
	c.Maximum = &max
	return c
}

// WithEnum returns a copy restricted to the given values.
func (s *Schema) WithEnum(values ...any) *Schema {
	c := s.clone()
	c.Enum = values
	return c
}

// WithDescription returns a copy with a description.
func (s *Schema) WithDescription(d string) *Schema {
	c := s.clone()
	c.Description = d
	return c
}

// AllowUnknown returns a copy that keeps undeclared object keys.
func (s *Schema) AllowUnknown() *Schema {
	c := s.clone()
	c.Passthrough = true
	return c
}

// Parse validates v, applies defaults and returns the projected value.
// A nil schema accepts anything unchanged.
func (s *Schema) Parse(v any) (any, error) {
	if s == nil {
		return v, nil
	}
	var errs ValidationErrors
	out := s.parse("", v, &errs)
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// ParseMap is Parse for object schemas; a nil input is treated as an empty object.
func (s *Schema) ParseMap(v map[string]any) (map[string]any, error) {
	if v == nil {
		v = map[string]any{}
	}
	out, err := s.Parse(v)
	if err != nil {
		return nil, err
	}
	m, ok := out.(map[string]any)
	if !ok {
		return nil, ValidationErrors{{Message: fmt.Sprintf("expected object, got %T", out)}}
	}
	return m, nil
}

func (s *Schema) hasDefault() bool {
	return s.DefaultFunc != nil || s.Default != nil
}

func (s *Schema) defaultValue() (any, bool) {
	if s.DefaultFunc != nil {
		return s.DefaultFunc(), true
	}
	if s.Default != nil {
		return Clone(s.Default), true
	}
	return nil, false
}

func (s *Schema) parse(path string, v any, errs *ValidationErrors) any {
	if v == nil {
		if d, ok := s.defaultValue(); ok {
			v = d
		}
	}
	if v == nil {
		if s.Type == TypeObject {
			v = map[string]any{}
		} else {
			return nil
		}
	}

	if !isValidType(v, s.Type) {
		*errs = append(*errs, &ValidationError{Field: path, Value: v, Message: fmt.Sprintf("expected type %s, got %T", s.Type, v)})
		return nil
	}

	if len(s.Enum) > 0 && !inEnum(v, s.Enum) {
		*errs = append(*errs, &ValidationError{Field: path, Value: v, Message: fmt.Sprintf("value must be one of %v", s.Enum)})
		return nil
	}

	if s.Minimum != nil || s.Maximum != nil {
		if f, ok := toFloat(v); ok {
			if s.Minimum != nil && f < *s.Minimum {
				*errs = append(*errs, &ValidationError{Field: path, Value: v, Message: fmt.Sprintf("must be >= %v", *s.Minimum)})
			}
			if s.Maximum != nil && f > *s.Maximum {
				*errs = append(*errs, &ValidationError{Field: path, Value: v, Message: fmt.Sprintf("must be <= %v", *s.Maximum)})
			}
		}
	}

	switch s.Type {
	case TypeObject:
		return s.parseObject(path, v.(map[string]any), errs)
	case TypeArray:
		return s.parseArray(path, v, errs)
	default:
		return v
	}
}

func (s *Schema) parseObject(path string, in map[string]any, errs *ValidationErrors) map[string]any {
	out := make(map[string]any, len(s.Properties))

	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}

	for _, name := range sortedKeys(s.Properties) {
		prop := s.Properties[name]
		child := join(path, name)
		raw, present := in[name]
		if !present || raw == nil {
			if !prop.hasDefault() && prop.Type != TypeObject {
				if required[name] {
					*errs = append(*errs, &ValidationError{Field: child, Message: "required field is missing"})
				}
				continue
			}
		}
		if parsed := prop.parse(child, raw, errs); parsed != nil {
			out[name] = parsed
		}
	}

	if s.Passthrough {
		for k, v := range in {
			if _, declared := s.Properties[k]; !declared {
				out[k] = Clone(v)
			}
		}
	}

	return out
}

func (s *Schema) parseArray(path string, v any, errs *ValidationErrors) []any {
	rv := reflect.ValueOf(v)
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i).Interface()
		if s.Items != nil {
			item = s.Items.parse(fmt.Sprintf("%s[%d]", path, i), item, errs)
		}
		out[i] = item
	}
	return out
}

// JSON renders the schema as a JSON-Schema map (used for model tool declarations).
func (s *Schema) JSON() map[string]any {
	if s == nil {
		return map[string]any{"type": TypeObject, "properties": map[string]any{}}
	}
	m := map[string]any{}
	if s.Type != TypeAny {
		m["type"] = s.Type
	}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		m["enum"] = s.Enum
	}
	if s.Minimum != nil {
		m["minimum"] = *s.Minimum
	}
	if s.Maximum != nil {
		m["maximum"] = *s.Maximum
	}
	if s.Default != nil {
		m["default"] = s.Default
	}
	if s.Items != nil {
		m["items"] = s.Items.JSON()
	}
	if s.Type == TypeObject {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.JSON()
		}
		m["properties"] = props
		if len(s.Required) > 0 {
			m["required"] = append([]string(nil), s.Required...)
		}
	}
	return m
}

// FromStruct derives an object schema from a struct using reflection. Field
// names follow `json` tags; `description` tags become descriptions; fields
// without omitempty that are not pointers are required.
func FromStruct(structType any) *Schema {
	t := reflect.TypeOf(structType)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == nil || t.Kind() != reflect.Struct {
		return Object(map[string]*Schema{})
	}

	properties := make(map[string]*Schema)
	required := make([]string, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := field.Name
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				fieldName = parts[0]
			}
		}

		fieldSchema := &Schema{Type: getJSONType(field.Type), Description: field.Tag.Get("description")}
		if fieldSchema.Type == TypeObject {
			fieldSchema.Passthrough = true
		}
		properties[fieldName] = fieldSchema

		if !hasOmitEmpty(jsonTag) && field.Type.Kind() != reflect.Ptr {
			required = append(required, fieldName)
		}
	}

	return Object(properties, required...)
}

// getJSONType returns the JSON schema type for a given Go type.
func getJSONType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Bool:
		return TypeBoolean
	case reflect.Slice, reflect.Array:
		return TypeArray
	case reflect.Map, reflect.Struct:
		return TypeObject
	case reflect.Ptr:
		return getJSONType(t.Elem())
	default:
		return TypeAny
	}
}

// hasOmitEmpty checks if a JSON tag has the "omitempty" option.
func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}
	return false
}

// isValidType checks if a value is valid according to the expected JSON schema type.
func isValidType(value any, expectedType string) bool {
	switch expectedType {
	case TypeAny:
		return true
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeInteger:
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // JSON unmarshaling produces float64 for numbers
			return v == float64(int64(v))
		case float32:
			return v == float32(int64(v))
		}
		return false
	case TypeNumber:
		_, ok := toFloat(value)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeArray:
		if value == nil {
			return false
		}
		k := reflect.TypeOf(value).Kind()
		return k == reflect.Slice || k == reflect.Array
	case TypeObject:
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func inEnum(v any, enum []any) bool {
	for _, e := range enum {
		if reflect.DeepEqual(v, e) {
			return true
		}
		if fv, ok := toFloat(v); ok {
			if fe, ok := toFloat(e); ok && fv == fe {
				return true
			}
		}
	}
	return false
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func sortedKeys(m map[string]*Schema) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone deep-copies maps and slices produced by JSON/YAML decoding. Other
// values are returned as-is.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Clone(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Clone(val)
		}
		return out
	default:
		return v
	}
}
