package rpc

import (
	"fmt"

	rpcerr "github.com/bifrostrpc/bifrost/pkg/errors"
)

// Kind says which of the four ways a dispatch ended.
type Kind string

const (
	Success      Kind = "success"
	Outage       Kind = Kind(rpcerr.Outage)
	Unauthorized Kind = Kind(rpcerr.Unauthorized)
	Broken       Kind = Kind(rpcerr.Broken)
)

// Outcome is the result of one dispatch. Exactly one case holds:
// Success carries Result; the others carry Message.
type Outcome struct {
	Kind    Kind
	Result  interface{}
	Message string
}

func NewSuccess(result interface{}) Outcome {
	return Outcome{Kind: Success, Result: result}
}

func NewFailure(kind Kind, message string) Outcome {
	switch kind {
	case Outage, Unauthorized, Broken:
		return Outcome{Kind: kind, Message: message}
	}
	panic(fmt.Sprintf("not a failure kind: %q", kind))
}

func (o Outcome) OK() bool {
	return o.Kind == Success
}

// Err returns nil for a success, and the failure as an error
// otherwise.
func (o Outcome) Err() error {
	switch o.Kind {
	case Success:
		return nil
	case Outage:
		return rpcerr.OutageError(o.Message)
	case Unauthorized:
		return rpcerr.UnauthorizedError(o.Message)
	default:
		return rpcerr.BrokenError(o.Message)
	}
}

func (o Outcome) String() string {
	if o.OK() {
		return fmt.Sprintf("success(%v)", o.Result)
	}
	return fmt.Sprintf("%s(%s)", o.Kind, o.Message)
}
