package rpc

import (
	"github.com/pkg/errors"
)

// Policy decides how a client hands failures to its caller.
type Policy int

const (
	// Return hands back every outcome as a value; the caller checks
	// its Kind.
	Return Policy = iota
	// Raise hands back failures as errors instead, so the caller can
	// use ordinary error handling.
	Raise
)

func (p Policy) String() string {
	switch p {
	case Return:
		return "return"
	case Raise:
		return "raise"
	}
	return "unknown"
}

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "return":
		return Return, nil
	case "raise":
		return Raise, nil
	}
	return Return, errors.Errorf("unknown error policy %q (want return or raise)", s)
}

// apply treats every failure kind alike.
func (p Policy) apply(o Outcome) (Outcome, error) {
	if p == Raise && !o.OK() {
		return Outcome{}, o.Err()
	}
	return o, nil
}
