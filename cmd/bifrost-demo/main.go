package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/bifrostrpc/bifrost/pkg/demo"
	api "github.com/bifrostrpc/bifrost/pkg/http"
	"github.com/bifrostrpc/bifrost/pkg/rpc"
)

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("default", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  bifrost-demo serves the demo methods for trying out clients.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}
	var (
		listenAddr = fs.StringP("listen", "l", defaultListen(), fmt.Sprintf("Listen address for clients; defaults to 127.0.0.1:$%s if that is set", rpc.EnvServicePort))
		logFormat  = fs.String("log-format", "fmt", "Format of log output: fmt or json")
	)
	fs.Parse(os.Args)

	// Logger domain.
	var logger log.Logger
	{
		switch *logFormat {
		case "json":
			logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
		case "fmt":
			logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		default:
			fmt.Fprintf(os.Stderr, "unsupported log format %q\n", *logFormat)
			os.Exit(1)
		}
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	// Service domain.
	var handler http.Handler
	{
		logger := log.With(logger, "component", "demo")
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/", demo.NewHandler(demo.NewService(), api.NewAPIRouter(), logger))
		handler = mux
	}

	// Mechanical stuff.
	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	// Transport domain.
	srv := &http.Server{Addr: *listenAddr, Handler: handler}
	go func() {
		logger := log.With(logger, "transport", "HTTP")
		logger.Log("addr", *listenAddr)
		errc <- srv.ListenAndServe()
	}()

	// Go!
	logger.Log("exiting", <-errc)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func defaultListen() string {
	if port := os.Getenv(rpc.EnvServicePort); port != "" {
		return net.JoinHostPort("127.0.0.1", port)
	}
	return "127.0.0.1:5000"
}
