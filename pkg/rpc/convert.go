package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/Jeffail/gabs"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// Converter turns the parsed body of a successful response into the
// method's typed result. An error, or a panic, marks the outcome
// Broken.
type Converter func(body *gabs.Container) (interface{}, error)

// Identity hands back the parsed JSON value unchanged. Numbers are
// json.Number, so none lose precision.
func Identity(body *gabs.Container) (interface{}, error) {
	return body.Data(), nil
}

// Decode decodes the body into dest, which must be a pointer, and
// returns dest.
func Decode(dest interface{}) Converter {
	return func(body *gabs.Container) (interface{}, error) {
		if err := json.Unmarshal(body.Bytes(), dest); err != nil {
			return nil, err
		}
		return dest, nil
	}
}

// Schema validates the body against a JSON schema before handing it
// to next (or Identity, if next is nil).
func Schema(schema string, next Converter) (Converter, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, errors.Wrap(err, "compiling result schema")
	}
	if next == nil {
		next = Identity
	}
	return func(body *gabs.Container) (interface{}, error) {
		result, err := compiled.Validate(gojsonschema.NewBytesLoader(body.Bytes()))
		if err != nil {
			return nil, err
		}
		if !result.Valid() {
			var problems []string
			for _, e := range result.Errors() {
				problems = append(problems, e.String())
			}
			return nil, errors.New(strings.Join(problems, "; "))
		}
		return next(body)
	}, nil
}

// Literal accepts only a body equal to value, e.g. true. Numbers are
// compared by value, so 3 matches 3.0.
func Literal(value interface{}) Converter {
	return func(body *gabs.Container) (interface{}, error) {
		if !sameJSON(body.Data(), value) {
			return nil, fmt.Errorf("expected %s, got %s", literal(value), body.String())
		}
		return value, nil
	}
}

// Null accepts only a JSON null, for methods with no result.
var Null = Literal(nil)

// OneOf tries each converter in turn and returns the first result
// that converts.
func OneOf(convs ...Converter) Converter {
	return func(body *gabs.Container) (interface{}, error) {
		var problems []string
		for _, conv := range convs {
			result, err := conv(body)
			if err == nil {
				return result, nil
			}
			problems = append(problems, err.Error())
		}
		return nil, errors.Errorf("no alternative matched (%s)", strings.Join(problems, "; "))
	}
}

func literal(value interface{}) string {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(b)
}

// parseBody parses a response body, keeping numbers as json.Number.
func parseBody(body []byte) (*gabs.Container, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	parsed, err := gabs.ParseJSONDecoder(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after top-level value")
	}
	return parsed, nil
}

// sameJSON reports whether a and b encode to the same JSON value.
func sameJSON(a, b interface{}) bool {
	ca, err := canonical(a)
	if err != nil {
		return false
	}
	cb, err := canonical(b)
	if err != nil {
		return false
	}
	return equalValues(ca, cb)
}

func canonical(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	parsed, err := parseBody(b)
	if err != nil {
		return nil, err
	}
	return parsed.Data(), nil
}

func equalValues(a, b interface{}) bool {
	switch a := a.(type) {
	case json.Number:
		b, ok := b.(json.Number)
		if !ok {
			return false
		}
		x, okx := new(big.Float).SetString(a.String())
		y, oky := new(big.Float).SetString(b.String())
		return okx && oky && x.Cmp(y) == 0
	case map[string]interface{}:
		b, ok := b.(map[string]interface{})
		if !ok || len(a) != len(b) {
			return false
		}
		for k, va := range a {
			vb, ok := b[k]
			if !ok || !equalValues(va, vb) {
				return false
			}
		}
		return true
	case []interface{}:
		b, ok := b.([]interface{})
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !equalValues(a[i], b[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// convert applies conv, turning a panic into an error like any other.
func convert(conv Converter, body *gabs.Container) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	if conv == nil {
		conv = Identity
	}
	return conv(body)
}
