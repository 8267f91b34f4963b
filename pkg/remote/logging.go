package remote

import (
	"context"

	"go.uber.org/zap"

	rpcerr "github.com/bifrostrpc/bifrost/pkg/errors"
	"github.com/bifrostrpc/bifrost/pkg/rpc"
)

var _ rpc.Dispatcher = &ErrorLoggingDispatcher{}

// ErrorLoggingDispatcher logs every dispatch that doesn't succeed,
// whether the failure was returned or raised.
type ErrorLoggingDispatcher struct {
	dispatcher rpc.Dispatcher
	logger     *zap.Logger
}

func NewErrorLoggingDispatcher(d rpc.Dispatcher, l *zap.Logger) *ErrorLoggingDispatcher {
	return &ErrorLoggingDispatcher{d, l}
}

func (p *ErrorLoggingDispatcher) Dispatch(ctx context.Context, method string, params rpc.Params, conv rpc.Converter) (out rpc.Outcome, err error) {
	defer func() {
		kind := kindOf(out, err)
		if kind == rpc.Success {
			return
		}
		msg := out.Message
		if err != nil {
			msg = err.Error()
		}
		// Omit params as they could be large
		p.logger.Error("dispatch failed", zap.String("method", method), zap.String("kind", string(kind)), zap.String("message", msg))
	}()
	return p.dispatcher.Dispatch(ctx, method, params, conv)
}

// kindOf says how a dispatch ended, whichever policy was in force.
func kindOf(out rpc.Outcome, err error) rpc.Kind {
	switch {
	case err == nil:
		return out.Kind
	case rpcerr.IsOutage(err):
		return rpc.Outage
	case rpcerr.IsUnauthorized(err):
		return rpc.Unauthorized
	}
	return rpc.Broken
}
