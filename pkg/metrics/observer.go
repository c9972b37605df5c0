package metrics

import (
	"context"
	"sync"
	"time"

	qerrors "github.com/pzverkov/sshkex/internal/errors"
	"github.com/pzverkov/sshkex/pkg/handshake"
	"github.com/pzverkov/sshkex/pkg/protocol"
)

// HandshakeObserver records metrics, traces and logs for one handshake
// session. It implements handshake.Observer.
type HandshakeObserver struct {
	collector *Collector
	tracer    Tracer
	logger    *Logger
	sessionID string
	remote    string

	mu      sync.Mutex
	start   time.Time
	kexinit *protocol.KexInit
}

var _ handshake.Observer = (*HandshakeObserver)(nil)

// HandshakeObserverConfig configures a handshake observer.
type HandshakeObserverConfig struct {
	Collector *Collector
	Tracer    Tracer
	Logger    *Logger
	SessionID string
	Remote    string // destination as typed by the user
}

// NewHandshakeObserver creates a new handshake observer. Nil fields fall
// back to the global collector, tracer and logger.
func NewHandshakeObserver(cfg HandshakeObserverConfig) *HandshakeObserver {
	if cfg.Collector == nil {
		cfg.Collector = Global()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = GetTracer()
	}
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}

	fields := Fields{"session_id": cfg.SessionID}
	if cfg.Remote != "" {
		fields["remote"] = cfg.Remote
	}

	return &HandshakeObserver{
		collector: cfg.Collector,
		tracer:    cfg.Tracer,
		logger:    cfg.Logger.Named("handshake").With(fields),
		sessionID: cfg.SessionID,
		remote:    cfg.Remote,
	}
}

// StartHandshake opens the root span for a handshake. Step spans started
// from the returned context become its children. The finish function
// records the overall latency and outcome.
func (o *HandshakeObserver) StartHandshake(ctx context.Context) (context.Context, func(error)) {
	attrs := SpanAttributes{SessionID: o.sessionID, Remote: o.remote}
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanHandshake,
		WithSpanKind(SpanKindClient),
		WithAttributes(attrs.ToMap()))

	start := time.Now()
	return ctx, func(err error) {
		duration := time.Since(start)
		if err != nil {
			o.collector.HandshakeFailed(qerrors.Kind(err))
		} else {
			o.collector.HandshakeSucceeded(duration)
			o.logger.Info("handshake completed", Fields{"duration": duration.String()})
		}
		endSpan(err)
	}
}

// OnSessionStart is called once when the session begins connecting.
func (o *HandshakeObserver) OnSessionStart() {
	o.mu.Lock()
	o.start = time.Now()
	o.mu.Unlock()

	o.collector.SessionStarted()
	o.logger.Debug("session started")
}

// OnSessionEnd is called when the session is closed.
func (o *HandshakeObserver) OnSessionEnd() {
	o.collector.SessionEnded()
	o.logger.Debug("session ended", Fields{"duration": o.elapsed().String()})
}

// OnSessionFailed is called once with the error that failed the session.
func (o *HandshakeObserver) OnSessionFailed(err error) {
	fields := Fields{
		"error":    err.Error(),
		"kind":     qerrors.Kind(err),
		"duration": o.elapsed().String(),
	}
	if field := qerrors.Field(err); field != "" {
		fields["field"] = field
	}
	o.logger.Error("handshake failed", fields)
}

// OnStep starts a span for one handshake step and times it.
func (o *HandshakeObserver) OnStep(ctx context.Context, step string) (context.Context, func(error)) {
	ctx, endSpan := o.tracer.StartSpan(ctx, stepSpanName(step))
	start := time.Now()
	o.logger.Debug("step started", Fields{"step": step})

	return ctx, func(err error) {
		duration := time.Since(start)
		o.collector.RecordStepLatency(step, duration)
		if err == nil {
			o.logger.Debug("step completed", Fields{
				"step":     step,
				"duration": duration.String(),
			})
		}
		endSpan(err)
	}
}

// OnBytesReceived records bytes read from the peer.
func (o *HandshakeObserver) OnBytesReceived(n int) {
	if n > 0 {
		o.collector.RecordBytesReceived(uint64(n))
	}
}

// OnBytesSent records bytes written to the peer.
func (o *HandshakeObserver) OnBytesSent(n int) {
	if n > 0 {
		o.collector.RecordBytesSent(uint64(n))
	}
}

// OnProtocolError records a malformed banner or packet from the peer.
func (o *HandshakeObserver) OnProtocolError(err error) {
	o.collector.RecordProtocolError()
	o.logger.Warn("malformed input from peer", Fields{
		"kind":  qerrors.Kind(err),
		"field": qerrors.Field(err),
	})
}

// OnKexInit records the server's decoded KEXINIT.
func (o *HandshakeObserver) OnKexInit(msg *protocol.KexInit) {
	o.mu.Lock()
	o.kexinit = msg
	o.mu.Unlock()

	o.collector.RecordKexInit()
	o.logger.Debug("server kexinit", Fields{
		"kex":               msg.KexAlgos.String(),
		"host_key":          msg.ServerHostKeyAlgos.String(),
		"first_kex_follows": msg.FirstKexFollows,
		"hassh_server":      msg.HasshServer(),
	})
}

// KexInit returns the last KEXINIT seen, or nil.
func (o *HandshakeObserver) KexInit() *protocol.KexInit {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.kexinit
}

func (o *HandshakeObserver) elapsed() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.start.IsZero() {
		return 0
	}
	return time.Since(o.start)
}

func stepSpanName(step string) string {
	switch step {
	case handshake.StepConnect:
		return SpanConnect
	case handshake.StepBanner:
		return SpanBanner
	case handshake.StepKexInit:
		return SpanKexInit
	default:
		return "sshkex." + step
	}
}
