// Package schema describes structured outputs: which fields a Go type
// has, which of them are optional, and how to decode and score a model's
// answer against them.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/charmbracelet/x/exp/ordered"
	"github.com/invopop/jsonschema"
)

// ErrMissingField is returned when a required field is absent or null.
var ErrMissingField = errors.New("missing required field")

// ErrNoJSON is returned when the answer holds no JSON object.
var ErrNoJSON = errors.New("no JSON object in answer")

// Field is one top level field of a schema.
type Field struct {
	Name     string
	Optional bool
}

// Descriptor describes an output type.
type Descriptor struct {
	Name   string
	Fields []Field
	// JSONSchema is the JSON schema of the type.
	JSONSchema json.RawMessage
}

var descriptors sync.Map

// For returns the descriptor of T, which must be a struct.
func For[T any]() Descriptor {
	typ := reflect.TypeFor[T]()
	if d, ok := descriptors.Load(typ); ok {
		return d.(Descriptor) //nolint:forcetypeassert
	}
	d := describe(typ)
	descriptors.Store(typ, d)
	return d
}

func describe(typ reflect.Type) Descriptor {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	d := Descriptor{Name: typ.Name()}
	for i := range typ.NumField() {
		f := typ.Field(i)
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
		optional := f.Type.Kind() == reflect.Pointer
		for opt := range strings.SplitSeq(opts, ",") {
			if opt == "omitempty" || opt == "omitzero" {
				optional = true
			}
		}
		d.Fields = append(d.Fields, Field{Name: name, Optional: optional})
	}

	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
		Anonymous:      true,
	}
	bts, err := json.Marshal(r.ReflectFromType(typ))
	if err == nil {
		d.JSONSchema = bts
	}
	return d
}

// Required returns the names of the required fields.
func (d Descriptor) Required() []string {
	var names []string
	for _, f := range d.Fields {
		if !f.Optional {
			names = append(names, f.Name)
		}
	}
	return names
}

// Instructions tells the model how to shape its answer.
func (d Descriptor) Instructions() string {
	return "Respond only with a JSON object, without any other text, " +
		"that conforms to this JSON schema:\n" + string(d.JSONSchema)
}

// FillPercentage is round(100*filled/total), within [0,100]. It is 0 for a
// type without fields.
func FillPercentage(filled, total int) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(filled) / float64(total))) //nolint:mnd
	return ordered.Clamp(pct, 0, 100)                             //nolint:mnd
}

// Extract returns the JSON object in a model's answer, removing markdown
// code fences and surrounding prose.
func Extract(content string) (string, error) {
	s := strings.TrimSpace(content)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		rest = strings.TrimPrefix(rest, "json")
		if body, _, ok := strings.Cut(rest, "```"); ok {
			s = strings.TrimSpace(body)
		}
	}
	// The first brace that opens a complete object wins; anything after
	// it is ignored, braces included.
	for start := strings.IndexByte(s, '{'); start >= 0; {
		var obj json.RawMessage
		if err := json.NewDecoder(strings.NewReader(s[start:])).Decode(&obj); err == nil {
			return string(obj), nil
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSON
}

// Decode parses a model's answer into T. It fails when a required field
// is absent or null, and reports the fill percentage of the answer.
func Decode[T any](content string) (T, int, error) {
	var v T
	d := For[T]()

	body, err := Extract(content)
	if err != nil {
		return v, 0, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return v, 0, fmt.Errorf("decode %s: %w", d.Name, err)
	}

	filled := 0
	for _, f := range d.Fields {
		val, ok := raw[f.Name]
		isNull := !ok || string(val) == "null"
		if isNull && !f.Optional {
			return v, 0, fmt.Errorf("%s: %w: %s", d.Name, ErrMissingField, f.Name)
		}
		if !isNull {
			filled++
		}
	}

	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return v, 0, fmt.Errorf("decode %s: %w", d.Name, err)
	}
	return v, FillPercentage(filled, len(d.Fields)), nil
}
