package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bifrostrpc/bifrost/pkg/remote"
	"github.com/bifrostrpc/bifrost/pkg/rpc"
	"github.com/bifrostrpc/bifrost/pkg/session"
	"github.com/bifrostrpc/bifrost/pkg/transport"
)

const (
	EnvVariableURL       = "BIFROST_URL"
	EnvVariableCookieJar = "BIFROST_COOKIE_JAR"
	EnvVariableUsername  = "BIFROST_USERNAME"
	EnvVariablePassword  = "BIFROST_PASSWORD"

	defaultRPS = 50
)

type rootOpts struct {
	URL        string
	ConfigFile string
	Binding    string
	Curl       string
	CookieJar  string
	Username   string
	Password   string
	Raise      bool
	RPS        float64
	Verbose    bool

	Dispatcher rpc.Dispatcher
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
bifrostctl calls methods on a bifrost RPC service.

Workflow:
  bifrostctl call get_reversed --param input_=abc                      # Call a method
  bifrostctl call login --param username=neo --param password=trinity \
      --cookie-jar cookies.txt                                         # Log in, keeping the session
  bifrostctl call whoami --cookie-jar cookies.txt                      # ... and use it
  bifrostctl call whoami --binding curl --cookie-jar cookies.txt       # The same, delivered by curl
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "bifrostctl",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.URL, "url", "u", "",
		fmt.Sprintf("base URL of the service, e.g. http://127.0.0.1:5000; you can also set the environment variable %s, or %s for a local service", EnvVariableURL, rpc.EnvServicePort))
	flags.StringVar(&opts.ConfigFile, "config", "", "YAML file giving defaults for these flags")
	flags.StringVar(&opts.Binding, "binding", "http", "how requests are delivered: http or curl")
	flags.StringVar(&opts.Curl, "curl", "", "path to the curl binary, for --binding curl")
	flags.StringVar(&opts.CookieJar, "cookie-jar", "",
		fmt.Sprintf("cookie file keeping the session between calls; you can also set the environment variable %s", EnvVariableCookieJar))
	flags.StringVar(&opts.Username, "username", "", fmt.Sprintf("HTTP basic auth username; or set %s", EnvVariableUsername))
	flags.StringVar(&opts.Password, "password", "", fmt.Sprintf("HTTP basic auth password; or set %s", EnvVariablePassword))
	flags.BoolVar(&opts.Raise, "raise", false, "report failures as errors, with help, rather than as outcomes")
	flags.Float64Var(&opts.RPS, "rps", defaultRPS, "most requests per second to send to the service")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log requests and failures to stderr")

	cmd.AddCommand(
		newVersionCommand(),
		newCall(opts).Command(),
	)
	return cmd
}

// fromEnv fills in an option that wasn't given as a flag from the
// environment, or failing that from the config file.
func fromEnv(cmd *cobra.Command, flagName string, opt *string, envName, fromFile string) {
	if cmd.Flags().Changed(flagName) {
		return
	}
	if v := os.Getenv(envName); v != "" {
		*opt = v
	} else if fromFile != "" {
		*opt = fromFile
	}
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	// these need no service
	switch cmd.Name() {
	case "version", "help":
		return nil
	}

	var conf fileConfig
	if opts.ConfigFile != "" {
		var err error
		if conf, err = loadConfig(opts.ConfigFile); err != nil {
			return err
		}
	}
	fromEnv(cmd, "url", &opts.URL, EnvVariableURL, conf.URL)
	fromEnv(cmd, "cookie-jar", &opts.CookieJar, EnvVariableCookieJar, conf.CookieJar)
	fromEnv(cmd, "username", &opts.Username, EnvVariableUsername, conf.Username)
	fromEnv(cmd, "password", &opts.Password, EnvVariablePassword, conf.Password)
	if !cmd.Flags().Changed("binding") && conf.Binding != "" {
		opts.Binding = conf.Binding
	}
	if !cmd.Flags().Changed("curl") && conf.Curl != "" {
		opts.Curl = conf.Curl
	}
	if !cmd.Flags().Changed("rps") && conf.RPS != 0 {
		opts.RPS = conf.RPS
	}
	if !(opts.RPS > 0) {
		return newUsageError(fmt.Sprintf("--rps must be greater than zero, got %v", opts.RPS))
	}
	policy, err := rpc.ParsePolicy(conf.Policy)
	if err != nil {
		return err
	}
	if opts.Raise {
		policy = rpc.Raise
	}

	var cfg rpc.Config
	if opts.URL != "" {
		cfg = rpc.Config{URL: opts.URL}
	} else if cfg, err = rpc.ConfigFromEnv(); err != nil {
		return newUsageError(fmt.Sprintf("no service given: use --url, or set %s or %s", EnvVariableURL, rpc.EnvServicePort))
	}
	cfg.Username, cfg.Password = opts.Username, opts.Password
	cfg.Policy = policy

	logger := log.NewNopLogger()
	zapLogger := zap.NewNop()
	if opts.Verbose {
		logger = log.With(log.NewLogfmtLogger(cmd.ErrOrStderr()), "ts", log.DefaultTimestampUTC)
		if zapLogger, err = zap.NewDevelopment(); err != nil {
			return err
		}
	}
	cfg.Logger = log.With(logger, "component", "client")

	endpoint, err := cfg.Endpoint()
	if err != nil {
		return err
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	tx, err := opts.transport()
	if err != nil {
		return err
	}
	limiters := &transport.RateLimiters{RPS: opts.RPS, Burst: 1, Logger: logger}
	tx = limiters.RoundTripper(tx, u.Host)
	cfg.Transport = transport.Logging(tx, log.With(logger, "component", "transport"))

	client, err := rpc.New(cfg)
	if err != nil {
		return err
	}
	opts.Dispatcher = remote.NewErrorLoggingDispatcher(remote.Instrument(client), zapLogger)
	return nil
}

func (opts *rootOpts) transport() (transport.Transport, error) {
	switch opts.Binding {
	case "http":
		var store session.Store = session.Nop
		if opts.CookieJar != "" {
			store = session.NewFile(opts.CookieJar)
		}
		return transport.NewHTTP(nil, store), nil
	case "curl":
		var jar *session.File
		if opts.CookieJar != "" {
			jar = session.NewFile(opts.CookieJar)
		}
		return transport.NewCurl(opts.Curl, jar), nil
	}
	return nil, newUsageError(fmt.Sprintf("unknown binding %q (want http or curl)", opts.Binding))
}
