package remote

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	bifrostmetrics "github.com/bifrostrpc/bifrost/pkg/metrics"
	"github.com/bifrostrpc/bifrost/pkg/rpc"
)

var (
	dispatchDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "bifrost",
		Subsystem: "client",
		Name:      "dispatch_duration_seconds",
		Help:      "Dispatch duration in seconds, by method and outcome.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{bifrostmetrics.LabelMethod, bifrostmetrics.LabelKind})
)

var _ rpc.Dispatcher = &instrumentedDispatcher{}

type instrumentedDispatcher struct {
	d rpc.Dispatcher
}

// Instrument records how long each dispatch through d takes, and how
// it ended. A raised failure is counted under its kind, like a
// returned one.
func Instrument(d rpc.Dispatcher) *instrumentedDispatcher {
	return &instrumentedDispatcher{d}
}

func (i *instrumentedDispatcher) Dispatch(ctx context.Context, method string, params rpc.Params, conv rpc.Converter) (out rpc.Outcome, err error) {
	defer func(begin time.Time) {
		dispatchDuration.With(
			bifrostmetrics.LabelMethod, method,
			bifrostmetrics.LabelKind, string(kindOf(out, err)),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.d.Dispatch(ctx, method, params, conv)
}
