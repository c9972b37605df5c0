// Package handshake drives the client side of the SSH-2 transport handshake
// up to the server's algorithm negotiation message.
//
// Session State Machine:
//
//	Idle --Connect/Attach--> Connected --ExchangeBanners--> BannerExchanged
//	     --ReceiveNegotiation--> KexInitReceived
//
// Any failure moves the session to Failed. A failed session is not retried;
// the byte stream is considered corrupted and a new session must be used.
// Established is reserved for a future key exchange and is never reached.
//
// A Session is used by one goroutine at a time. Close may be called from
// another goroutine to abort a blocked step.
package handshake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pires/go-proxyproto"

	qerrors "github.com/pzverkov/sshkex/internal/errors"
	"github.com/pzverkov/sshkex/pkg/protocol"
)

// State represents the current state of a handshake session.
type State int32

const (
	// StateIdle indicates a fresh session with no connection
	StateIdle State = iota

	// StateConnected indicates a byte stream is attached
	StateConnected

	// StateBannerExchanged indicates both version lines have been exchanged
	StateBannerExchanged

	// StateKexInitReceived indicates the server's KEXINIT has been decoded
	StateKexInitReceived

	// StateFailed indicates a step failed; the session cannot continue
	StateFailed

	// StateEstablished is reserved for completed key exchange
	StateEstablished
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnected:
		return "Connected"
	case StateBannerExchanged:
		return "BannerExchanged"
	case StateKexInitReceived:
		return "KexInitReceived"
	case StateFailed:
		return "Failed"
	case StateEstablished:
		return "Established"
	default:
		return "Unknown"
	}
}

// Session is one client handshake over one byte stream.
type Session struct {
	id       string
	config   Config
	codec    *protocol.Codec
	observer Observer

	state   atomic.Int32
	started atomic.Bool

	connMu   sync.Mutex
	conn     net.Conn
	closed   bool
	connDone bool

	serverBanner *protocol.Banner
	kexInit      *protocol.KexInit

	createdAt     time.Time
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
}

// Stats contains statistics about a session.
type Stats struct {
	ID            string
	State         State
	BytesSent     uint64
	BytesReceived uint64
	CreatedAt     time.Time
	Duration      time.Duration
}

// NewSession creates an idle session. Zero config fields take their defaults.
func NewSession(cfg Config) *Session {
	cfg = cfg.withDefaults()
	id := cfg.SessionID
	if id == "" {
		id = uuid.New().String()
	}
	return &Session{
		id:        id,
		config:    cfg,
		codec:     cfg.codec(),
		observer:  cfg.Observer,
		createdAt: time.Now(),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

// LocalBanner returns the version line this session sends.
func (s *Session) LocalBanner() string { return s.config.LocalBanner }

// ServerBanner returns the server's parsed version line, or nil before
// ExchangeBanners succeeds.
func (s *Session) ServerBanner() *protocol.Banner { return s.serverBanner }

// KexInit returns the decoded negotiation message, or nil before
// ReceiveNegotiation succeeds.
func (s *Session) KexInit() *protocol.KexInit { return s.kexInit }

// RemoteAddr returns the peer address, or nil with no connection.
func (s *Session) RemoteAddr() net.Addr {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

// Stats returns a snapshot of session statistics.
func (s *Session) Stats() Stats {
	return Stats{
		ID:            s.id,
		State:         s.State(),
		BytesSent:     s.bytesSent.Load(),
		BytesReceived: s.bytesReceived.Load(),
		CreatedAt:     s.createdAt,
		Duration:      time.Since(s.createdAt),
	}
}

// Connect dials addr with the configured Dialer and timeout.
func (s *Session) Connect(ctx context.Context, addr string) error {
	if s.State() != StateIdle {
		return fmt.Errorf("%w: connect in state %s", qerrors.ErrInvalidState, s.State())
	}

	s.start()
	ctx, finish := s.observer.OnStep(ctx, StepConnect)

	dialCtx := ctx
	if s.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.config.ConnectTimeout)
		defer cancel()
	}

	conn, err := s.config.Dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return s.fail(StepConnect, finish, classify(dialCtx, "dial", err))
	}

	if s.config.ProxyProtocol != 0 {
		if err := s.sendProxyHeader(ctx, conn); err != nil {
			_ = conn.Close()
			return s.fail(StepConnect, finish, err)
		}
	}

	s.setConn(conn)
	finish(nil)
	return nil
}

// Attach runs the session over an already connected stream. The session
// takes ownership of conn and closes it on Close.
func (s *Session) Attach(conn net.Conn) error {
	if s.State() != StateIdle {
		return fmt.Errorf("%w: attach in state %s", qerrors.ErrInvalidState, s.State())
	}
	s.start()
	s.setConn(conn)
	return nil
}

func (s *Session) start() {
	if s.started.CompareAndSwap(false, true) {
		s.observer.OnSessionStart()
	}
}

func (s *Session) setConn(conn net.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	s.state.Store(int32(StateConnected))
}

func (s *Session) sendProxyHeader(ctx context.Context, conn net.Conn) error {
	header := proxyproto.HeaderProxyFromAddrs(s.config.ProxyProtocol, conn.LocalAddr(), conn.RemoteAddr())

	s.setWriteDeadline(ctx, conn)
	n, err := header.WriteTo(conn)
	s.recordSent(int(n))
	if err != nil {
		return classify(ctx, "write proxy header", err)
	}
	return nil
}

// ExchangeBanners reads the server's version line, then sends ours.
// The server banner must advertise protocol 2.0.
func (s *Session) ExchangeBanners(ctx context.Context) error {
	if s.State() != StateConnected {
		return fmt.Errorf("%w: exchange banners in state %s", qerrors.ErrInvalidState, s.State())
	}

	ctx, finish := s.observer.OnStep(ctx, StepBanner)
	if err := protocol.ValidateLocalBanner(s.config.LocalBanner); err != nil {
		// Wrapped with %v so it is not reported as a peer protocol error.
		return s.fail(StepBanner, finish, fmt.Errorf("%w: local banner: %v", qerrors.ErrInvalidConfig, err))
	}
	conn := s.currentConn()
	stop := s.interruptOnDone(ctx, conn)
	defer stop()

	s.setReadDeadline(ctx, conn)
	r := &countingReader{r: conn}
	line, err := protocol.ReadBanner(r, s.config.MaxBannerLength)
	s.recordReceived(r.n)
	if err != nil {
		return s.fail(StepBanner, finish, classify(ctx, "read banner", err))
	}

	banner, err := protocol.ParseBanner(line)
	if err != nil {
		return s.fail(StepBanner, finish, err)
	}
	s.serverBanner = banner

	s.setWriteDeadline(ctx, conn)
	w := &countingWriter{w: conn}
	err = protocol.WriteBanner(w, s.config.LocalBanner)
	s.recordSent(w.n)
	if err != nil {
		return s.fail(StepBanner, finish, classify(ctx, "write banner", err))
	}

	s.state.Store(int32(StateBannerExchanged))
	finish(nil)
	return nil
}

// ReceiveNegotiation reads one binary packet and decodes it as the server's
// SSH_MSG_KEXINIT.
func (s *Session) ReceiveNegotiation(ctx context.Context) (*protocol.KexInit, error) {
	if s.State() != StateBannerExchanged {
		return nil, fmt.Errorf("%w: receive negotiation in state %s", qerrors.ErrInvalidState, s.State())
	}

	ctx, finish := s.observer.OnStep(ctx, StepKexInit)
	conn := s.currentConn()
	stop := s.interruptOnDone(ctx, conn)
	defer stop()

	s.setReadDeadline(ctx, conn)
	r := &countingReader{r: conn}
	frame, err := s.codec.ReadPacketPooled(r)
	s.recordReceived(r.n)
	if err != nil {
		return nil, s.fail(StepKexInit, finish, classify(ctx, "read packet", err))
	}
	defer frame.Release()

	pkt, err := s.codec.DecodePacket(frame.Bytes())
	if err != nil {
		return nil, s.fail(StepKexInit, finish, err)
	}

	msg, err := s.codec.DecodeKexInit(pkt.Payload)
	if err != nil {
		return nil, s.fail(StepKexInit, finish, err)
	}

	s.kexInit = msg
	s.state.Store(int32(StateKexInitReceived))
	s.observer.OnKexInit(msg)
	finish(nil)
	return msg, nil
}

// Run connects to addr and runs every step up to the negotiation message.
// The connection stays open; call Close when done.
func (s *Session) Run(ctx context.Context, addr string) (*protocol.KexInit, error) {
	if err := s.Connect(ctx, addr); err != nil {
		return nil, err
	}
	if err := s.ExchangeBanners(ctx); err != nil {
		return nil, err
	}
	return s.ReceiveNegotiation(ctx)
}

// Close closes the underlying connection. It is safe to call more than once.
func (s *Session) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.started.Load() {
		defer s.observer.OnSessionEnd()
	}
	if s.conn == nil || s.connDone {
		return nil
	}
	s.connDone = true
	return s.conn.Close()
}

// closeConn closes the stream without ending the session; OnSessionEnd
// still fires once from Close.
func (s *Session) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil && !s.connDone {
		s.connDone = true
		_ = s.conn.Close()
	}
}

// fail moves the session to Failed, closes the stream and reports err.
func (s *Session) fail(step string, finish func(error), err error) error {
	s.state.Store(int32(StateFailed))
	s.closeConn()

	perr := qerrors.NewProtocolError(step, err)
	if isDecodeFailure(err) {
		s.observer.OnProtocolError(perr)
	}
	finish(perr)
	s.observer.OnSessionFailed(perr)
	return perr
}

func (s *Session) currentConn() net.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

// interruptOnDone unblocks pending I/O on conn when ctx ends.
func (s *Session) interruptOnDone(ctx context.Context, conn net.Conn) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
}

func (s *Session) setReadDeadline(ctx context.Context, conn net.Conn) {
	_ = conn.SetReadDeadline(deadline(ctx, s.config.ReadTimeout))
}

func (s *Session) setWriteDeadline(ctx context.Context, conn net.Conn) {
	_ = conn.SetWriteDeadline(deadline(ctx, s.config.WriteTimeout))
}

func (s *Session) recordReceived(n int) {
	if n > 0 {
		s.bytesReceived.Add(uint64(n))
		s.observer.OnBytesReceived(n)
	}
}

func (s *Session) recordSent(n int) {
	if n > 0 {
		s.bytesSent.Add(uint64(n))
		s.observer.OnBytesSent(n)
	}
}

// deadline returns the earlier of now+timeout and ctx's deadline. The zero
// time means no deadline.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}
	return d
}

// classify maps a transport failure to ErrTimeout or ErrConnection. Decode
// and banner errors pass through unchanged.
func classify(ctx context.Context, op string, err error) error {
	if isDecodeFailure(err) {
		return err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return qerrors.NewIOError(op, qerrors.ErrTimeout, err)
		}
		return qerrors.NewIOError(op, qerrors.ErrConnection, ctxErr)
	}

	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) {
		return qerrors.NewIOError(op, qerrors.ErrTimeout, err)
	}

	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return qerrors.NewIOError(op, qerrors.ErrConnection, err)
}

// isDecodeFailure reports errors caused by the bytes the peer sent rather
// than by the transport.
func isDecodeFailure(err error) bool {
	var derr *qerrors.DecodeError
	var berr *qerrors.BannerError
	return errors.As(err, &derr) ||
		errors.As(err, &berr) ||
		errors.Is(err, qerrors.ErrBannerTooLong) ||
		errors.Is(err, qerrors.ErrInvalidBanner)
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
