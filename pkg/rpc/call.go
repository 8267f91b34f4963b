package rpc

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Param is one named parameter of a call.
type Param struct {
	Name  string
	Value interface{}
}

// Params is an ordered mapping of parameter names to values. It is
// encoded as a JSON object with the keys in order.
type Params []Param

func (ps Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	seen := make(map[string]bool, len(ps))
	for i, p := range ps {
		if seen[p.Name] {
			return nil, errors.Errorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(p.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "parameter %q", p.Name)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (ps *Params) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("params must be a JSON object")
	}
	out := Params{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return err
		}
		out = append(out, Param{Name: tok.(string), Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*ps = out
	return nil
}

// Get returns the value of the named parameter.
func (ps Params) Get(name string) (interface{}, bool) {
	for _, p := range ps {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Call is a single invocation of a remote method.
type Call struct {
	method string
	params Params
}

// NewCall checks method can be used as a path segment, and copies
// params so the call can't be changed once made.
func NewCall(method string, params Params) (Call, error) {
	if err := validMethod(method); err != nil {
		return Call{}, err
	}
	return Call{method: method, params: append(Params{}, params...)}, nil
}

func (c Call) Method() string {
	return c.method
}

func (c Call) Params() Params {
	return append(Params{}, c.params...)
}

func validMethod(method string) error {
	switch {
	case method == "":
		return errors.New("method name is empty")
	case method == "." || method == "..":
		return errors.Errorf("invalid method name %q", method)
	case strings.ContainsRune(method, '/'):
		return errors.Errorf("invalid method name %q: contains '/'", method)
	case strings.IndexFunc(method, unicode.IsControl) >= 0:
		return errors.Errorf("invalid method name %q: contains control characters", method)
	}
	return nil
}
