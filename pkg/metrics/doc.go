// Package metrics provides observability for sshkex handshakes.
//
// # Overview
//
// The package offers:
//   - a Collector with handshake counters, failures by error kind and
//     latency histograms
//   - Prometheus text exposition export
//   - a Tracer interface with in-memory and OpenTelemetry backends
//   - structured logging on top of logrus
//   - health endpoints for long-running probers
//   - HandshakeObserver, which plugs all of the above into a
//     handshake.Session
//
// # Quick Start
//
//	observer := metrics.NewHandshakeObserver(metrics.HandshakeObserverConfig{
//		SessionID: session.ID(),
//		Remote:    "git@example.com",
//	})
//	cfg := handshake.DefaultConfig()
//	cfg.Observer = observer
//
//	ctx, finish := observer.StartHandshake(ctx)
//	kexinit, err := handshake.NewSession(cfg).Run(ctx, "example.com:22")
//	finish(err)
//
//	metrics.NewPrometheusExporter(metrics.Global(), "sshkex").WriteMetrics(os.Stderr)
//
// # Metrics Collection
//
//	collector := metrics.NewCollector(metrics.Labels{"instance": "probe-1"})
//	collector.SessionStarted()
//	collector.RecordStepLatency("banner", d)
//	collector.HandshakeFailed(errors.Kind(err))
//	snap := collector.Snapshot()
//
// Failure series are labelled by errors.Kind, so a dashboard can separate
// timeouts from truncated or malformed server messages.
//
// # Tracing
//
// Each handshake gets a root span (SpanHandshake) with one child per step
// (SpanConnect, SpanBanner, SpanKexInit):
//
//	metrics.SetTracer(metrics.NewSimpleTracer())       // in-memory, for tests
//	metrics.SetTracer(metrics.NewOTelTracer("sshkex")) // global OTel provider
//
// # Structured Logging
//
//	logger := metrics.NewLogger(
//		metrics.WithLevel(metrics.LevelInfo),
//		metrics.WithFormat(metrics.FormatJSON),
//	)
//	logger.Named("probe").With(metrics.Fields{"target": dest}).Info("probing")
//
// Text output is colored only when written to a terminal.
//
// # Observability Server
//
//	server := metrics.NewServer(metrics.ServerConfig{
//		EnablePrometheus: true,
//		EnableHealth:     true,
//	})
//	go server.ListenAndServe(ctx, ":9090")
//
// This provides:
//   - /metrics - Prometheus metrics
//   - /health  - Detailed health status, degraded when the handshake
//     failure rate passes the threshold
//   - /healthz - liveness probe
//   - /readyz  - readiness probe
package metrics
