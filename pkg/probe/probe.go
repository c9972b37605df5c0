// Package probe runs handshakes against many destinations and reports what
// each server offers.
//
// A Prober paces handshakes with a handshake.Limiter, runs a bounded number
// of them in parallel, and remembers two things per destination: how many
// times in a row it failed to connect, and the HASSH fingerprint of the last
// successful probe. Destinations that keep failing are skipped for a while;
// a changed fingerprint is flagged on the result.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	qerrors "github.com/pzverkov/sshkex/internal/errors"
	"github.com/pzverkov/sshkex/pkg/destination"
	"github.com/pzverkov/sshkex/pkg/handshake"
	"github.com/pzverkov/sshkex/pkg/metrics"
	"github.com/pzverkov/sshkex/pkg/protocol"
)

// RateLimitObserver is told when a handshake had to wait for the limiter.
type RateLimitObserver interface {
	OnRateLimited(target string, wait time.Duration)
}

// Config configures a Prober.
type Config struct {
	Handshake handshake.Config

	// Rate is the number of handshakes started per second. 0 disables
	// pacing.
	Rate  float64
	Burst int

	// Concurrency bounds the handshakes in flight. Values below 1 mean 1.
	Concurrency int

	// MaxFailures connection failures in a row ban a destination for
	// BanDuration. 0 disables banning.
	MaxFailures int
	BanDuration time.Duration

	// ResultTTL is how long a fingerprint is remembered for change
	// detection.
	ResultTTL time.Duration

	Logger    *metrics.Logger
	Collector *metrics.Collector
	Tracer    metrics.Tracer
	RateLimit RateLimitObserver
}

// Defaults for Config.
const (
	DefaultConcurrency = 4
	DefaultBanDuration = 10 * time.Minute
	DefaultResultTTL   = time.Hour
)

// DefaultConfig returns a Config with the handshake defaults and no pacing.
func DefaultConfig() Config {
	return Config{
		Handshake:   handshake.DefaultConfig(),
		Burst:       1,
		Concurrency: DefaultConcurrency,
		BanDuration: DefaultBanDuration,
		ResultTTL:   DefaultResultTTL,
	}
}

// Result is the outcome of probing one destination.
type Result struct {
	Destination  destination.Destination `json:"-"`
	Target       string                  `json:"target"`
	SessionID    string                  `json:"session_id"`
	ServerBanner *protocol.Banner        `json:"server_banner,omitempty"`
	KexInit      *protocol.KexInit       `json:"kexinit,omitempty"`
	HASSHServer  string                  `json:"hassh_server,omitempty"`

	// Algorithms is what a client using protocol.ClientPreferences would
	// agree on with this server. NegotiationErr is set when nothing matches.
	Algorithms     *protocol.Algorithms `json:"algorithms,omitempty"`
	NegotiationErr error                `json:"-"`

	// Changed reports that the fingerprint differs from the last probe of
	// the same destination.
	Changed bool `json:"changed,omitempty"`

	Stats handshake.Stats `json:"-"`
	Err   error           `json:"-"`
}

// Prober runs handshakes. It is safe for concurrent use.
type Prober struct {
	cfg      Config
	limiter  *handshake.Limiter
	logger   *metrics.Logger
	failures *gocache.Cache
	results  *gocache.Cache
}

// New validates cfg and creates a Prober.
func New(cfg Config) (*Prober, error) {
	if err := cfg.Handshake.Validate(); err != nil {
		return nil, err
	}
	if cfg.Rate < 0 || cfg.Burst < 0 || cfg.Concurrency < 0 ||
		cfg.MaxFailures < 0 || cfg.BanDuration < 0 || cfg.ResultTTL < 0 {
		return nil, fmt.Errorf("%w: negative probe setting", qerrors.ErrInvalidConfig)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.BanDuration == 0 {
		cfg.BanDuration = DefaultBanDuration
	}
	if cfg.ResultTTL == 0 {
		cfg.ResultTTL = DefaultResultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = metrics.GetLogger()
	}
	if cfg.Collector == nil {
		cfg.Collector = metrics.Global()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = metrics.GetTracer()
	}

	return &Prober{
		cfg:      cfg,
		limiter:  handshake.NewLimiter(cfg.Rate, cfg.Burst),
		logger:   cfg.Logger.Named("probe"),
		failures: gocache.New(cfg.BanDuration, cfg.BanDuration/2*3),
		results:  gocache.New(cfg.ResultTTL, cfg.ResultTTL/2*3),
	}, nil
}

// Probe runs one handshake against d. Failures are reported in Result.Err.
func (p *Prober) Probe(ctx context.Context, d destination.Destination) *Result {
	res := &Result{Destination: d, Target: d.String()}
	key := d.Address()
	log := p.logger.With(metrics.Fields{"target": res.Target})

	if p.banned(key) {
		res.Err = fmt.Errorf("%w: %s", qerrors.ErrDestinationBanned, res.Target)
		log.Debug("skipping banned destination")
		return res
	}

	wait, err := p.limiter.Wait(ctx)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", qerrors.ErrConnection, err)
		return res
	}
	if wait > time.Millisecond && p.cfg.RateLimit != nil {
		p.cfg.RateLimit.OnRateLimited(res.Target, wait)
	}

	cfg := p.cfg.Handshake
	cfg.SessionID = uuid.NewString()
	observer := metrics.NewHandshakeObserver(metrics.HandshakeObserverConfig{
		Collector: p.cfg.Collector,
		Tracer:    p.cfg.Tracer,
		Logger:    p.cfg.Logger,
		SessionID: cfg.SessionID,
		Remote:    res.Target,
	})
	if cfg.Observer != nil {
		cfg.Observer = handshake.MultiObserver{observer, cfg.Observer}
	} else {
		cfg.Observer = observer
	}
	session := handshake.NewSession(cfg)
	defer session.Close()

	res.SessionID = session.ID()
	ctx, finish := observer.StartHandshake(ctx)
	kexinit, err := session.Run(ctx, key)
	finish(err)

	res.Stats = session.Stats()
	res.ServerBanner = session.ServerBanner()
	if err != nil {
		res.Err = err
		p.recordFailure(key, err)
		return res
	}
	p.failures.Delete(key)

	res.KexInit = kexinit
	res.HASSHServer = kexinit.HasshServer()
	res.Algorithms, res.NegotiationErr = protocol.Negotiate(protocol.ClientPreferences(), kexinit)

	if prev, found := p.results.Get(key); found && prev.(string) != res.HASSHServer {
		res.Changed = true
		log.Warn("server fingerprint changed", metrics.Fields{
			"previous": prev,
			"current":  res.HASSHServer,
		})
	}
	p.results.SetDefault(key, res.HASSHServer)

	return res
}

// ProbeAll probes every destination and returns results in input order.
// It stops starting new handshakes once ctx is done.
func (p *Prober) ProbeAll(ctx context.Context, dests []destination.Destination) []*Result {
	results := make([]*Result, len(dests))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, d := range dests {
		i, d := i, d
		g.Go(func() error {
			results[i] = p.Probe(ctx, d)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// banned reports whether key has reached MaxFailures.
func (p *Prober) banned(key string) bool {
	if p.cfg.MaxFailures == 0 {
		return false
	}
	failed, found := p.failures.Get(key)
	return found && failed.(int) >= p.cfg.MaxFailures
}

// recordFailure counts connection-level failures toward a ban. Protocol
// errors mean the server answered, so they do not count.
func (p *Prober) recordFailure(key string, err error) {
	if p.cfg.MaxFailures == 0 {
		return
	}
	if !qerrors.Is(err, qerrors.ErrConnection) && !qerrors.Is(err, qerrors.ErrTimeout) {
		return
	}
	if _, err := p.failures.IncrementInt(key, 1); err != nil {
		p.failures.SetDefault(key, 1)
	}
}
