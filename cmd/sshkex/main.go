package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pzverkov/sshkex/internal/config"
	qerrors "github.com/pzverkov/sshkex/internal/errors"
	"github.com/pzverkov/sshkex/pkg/destination"
	"github.com/pzverkov/sshkex/pkg/metrics"
	"github.com/pzverkov/sshkex/pkg/probe"
	"github.com/pzverkov/sshkex/pkg/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "sshkex:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "sshkex",
		Usage:     "report the SSH version banner and KEXINIT offered by servers",
		UsageText: "sshkex [options] <login@host[:port]> [more destinations...]",
		Description: "sshkex connects to each destination, exchanges version lines and reads the\n" +
			"server's first key exchange packet. No keys are exchanged and no\n" +
			"credentials are sent; the login part only labels the destination.",
		Version: version.Full(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"SSHKEX_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level: debug, info, warn, error, silent",
				EnvVars: []string{"SSHKEX_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "log format: text or json",
				EnvVars: []string{"SSHKEX_LOG_FORMAT"},
			},
			&cli.DurationFlag{
				Name:    "connect-timeout",
				Usage:   "timeout for establishing the TCP connection",
				EnvVars: []string{"SSHKEX_CONNECT_TIMEOUT"},
			},
			&cli.DurationFlag{
				Name:    "read-timeout",
				Usage:   "timeout for each read from the server",
				EnvVars: []string{"SSHKEX_READ_TIMEOUT"},
			},
			&cli.StringFlag{
				Name:    "banner",
				Usage:   "version line to send, without CR LF",
				EnvVars: []string{"SSHKEX_BANNER"},
			},
			&cli.UintFlag{
				Name:    "proxy-protocol",
				Usage:   "send a PROXY protocol header of this version (1 or 2) after connecting",
				EnvVars: []string{"SSHKEX_PROXY_PROTOCOL"},
			},
			&cli.Float64Flag{
				Name:    "rate",
				Usage:   "handshakes started per second, 0 for unlimited",
				EnvVars: []string{"SSHKEX_RATE"},
			},
			&cli.IntFlag{
				Name:    "burst",
				Usage:   "handshakes allowed back to back before --rate applies",
				EnvVars: []string{"SSHKEX_BURST"},
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"j"},
				Usage:   "handshakes in flight at once",
				EnvVars: []string{"SSHKEX_CONCURRENCY"},
			},
			&cli.StringFlag{
				Name:    "tracing",
				Usage:   "tracing backend: none, simple or otel",
				EnvVars: []string{"SSHKEX_TRACING"},
			},
			&cli.StringFlag{
				Name:    "otlp-endpoint",
				Usage:   "OTLP/HTTP collector for --tracing otel, host:port",
				EnvVars: []string{"SSHKEX_OTLP_ENDPOINT"},
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "print Prometheus metrics to stderr when done",
			},
			&cli.StringFlag{
				Name:    "metrics-listen",
				Usage:   "serve /metrics and health endpoints on this address while probing",
				EnvVars: []string{"SSHKEX_METRICS_LISTEN"},
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print results as JSON lines",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "print version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, version.Full())
					return nil
				},
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	file, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if err := applyFlags(c, file); err != nil {
		return err
	}

	dests, err := file.DestinationList()
	if err != nil {
		return err
	}
	fromArgs, err := destination.ParseAll(c.Args().Slice())
	if err != nil {
		return err
	}
	dests = append(dests, fromArgs...)
	if len(dests) == 0 {
		return cli.Exit("no destinations given", 2)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := setupObservability(ctx, file)
	if err != nil {
		return err
	}
	defer obs.shutdown()

	if file.Metrics.Listen != "" {
		go serveObservability(ctx, file.Metrics.Listen, obs)
	}

	cfg := file.ProbeConfig()
	cfg.Logger = obs.logger
	cfg.Collector = obs.collector
	cfg.Tracer = obs.tracer
	cfg.RateLimit = metrics.NewRateLimitObserver(obs.collector, obs.logger)

	prober, err := probe.New(cfg)
	if err != nil {
		return err
	}

	results := prober.ProbeAll(ctx, dests)

	var failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if c.Bool("json") {
		err = writeJSON(c.App.Writer, results)
	} else {
		err = writeText(c.App.Writer, results)
	}
	if err != nil {
		return err
	}

	if c.Bool("metrics") {
		metrics.NewPrometheusExporter(obs.collector, "sshkex").WriteMetrics(c.App.ErrWriter)
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d destinations failed", failed, len(results)), 1)
	}
	return nil
}

// applyFlags overrides file settings with flags given on the command line
// or through the environment.
func applyFlags(c *cli.Context, f *config.File) error {
	if c.IsSet("log-level") || f.Log.Level == "" {
		f.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") || f.Log.Format == "" {
		f.Log.Format = c.String("log-format")
	}
	if c.IsSet("connect-timeout") {
		f.Timeouts.Connect = c.Duration("connect-timeout")
	}
	if c.IsSet("read-timeout") {
		f.Timeouts.Read = c.Duration("read-timeout")
	}
	if c.IsSet("banner") {
		f.Banner = c.String("banner")
	}
	if c.IsSet("proxy-protocol") {
		v := c.Uint("proxy-protocol")
		if v > 2 {
			return fmt.Errorf("%w: unsupported PROXY protocol version %d", qerrors.ErrInvalidConfig, v)
		}
		f.ProxyProtocol = byte(v)
	}
	if c.IsSet("rate") {
		f.Rate.PerSecond = c.Float64("rate")
	}
	if c.IsSet("burst") {
		f.Rate.Burst = c.Int("burst")
	}
	if c.IsSet("concurrency") {
		f.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("tracing") {
		f.Tracing = c.String("tracing")
	}
	if c.IsSet("otlp-endpoint") {
		f.OTLPEndpoint = c.String("otlp-endpoint")
	}
	if c.IsSet("metrics-listen") {
		f.Metrics.Listen = c.String("metrics-listen")
	}
	return f.Validate()
}

func serveObservability(ctx context.Context, addr string, obs *observability) {
	server := metrics.NewServer(metrics.ServerConfig{
		Collector:        obs.collector,
		Version:          version.String(),
		EnablePrometheus: true,
		EnableHealth:     true,
	})
	obs.logger.Info("observability server listening", metrics.Fields{"addr": addr})
	if err := server.ListenAndServe(ctx, addr); err != nil {
		obs.logger.Error("observability server error", metrics.Fields{"error": err.Error()})
	}
}
