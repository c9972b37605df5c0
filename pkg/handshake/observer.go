package handshake

import (
	"context"

	"github.com/pzverkov/sshkex/pkg/protocol"
)

// Handshake steps, reported to Observer.OnStep and used as ProtocolError
// phases.
const (
	StepConnect = "connect"
	StepBanner  = "banner"
	StepKexInit = "kexinit"
)

// Observer provides hooks for handshake lifecycle, metrics, and tracing.
// Implementations should be lightweight; callbacks run inline with the
// handshake.
type Observer interface {
	OnSessionStart()
	OnSessionEnd()
	OnSessionFailed(err error)
	OnStep(ctx context.Context, step string) (context.Context, func(error))
	OnBytesReceived(n int)
	OnBytesSent(n int)
	OnProtocolError(err error)
	OnKexInit(msg *protocol.KexInit)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnSessionStart() {}
func (NopObserver) OnSessionEnd() {}
func (NopObserver) OnSessionFailed(err error) {}
func (NopObserver) OnStep(ctx context.Context, _ string) (context.Context, func(error)) {
	return ctx, func(error) {}
}
func (NopObserver) OnBytesReceived(int) {}
func (NopObserver) OnBytesSent(int) {}
func (NopObserver) OnProtocolError(error) {}
func (NopObserver) OnKexInit(*protocol.KexInit) {}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnSessionStart() {
	for _, o := range m {
		o.OnSessionStart()
	}
}

func (m MultiObserver) OnSessionEnd() {
	for _, o := range m {
		o.OnSessionEnd()
	}
}

func (m MultiObserver) OnSessionFailed(err error) {
	for _, o := range m {
		o.OnSessionFailed(err)
	}
}

func (m MultiObserver) OnStep(ctx context.Context, step string) (context.Context, func(error)) {
	finishers := make([]func(error), 0, len(m))
	for _, o := range m {
		var finish func(error)
		ctx, finish = o.OnStep(ctx, step)
		finishers = append(finishers, finish)
	}
	return ctx, func(err error) {
		for i := len(finishers) - 1; i >= 0; i-- {
			finishers[i](err)
		}
	}
}

func (m MultiObserver) OnBytesReceived(n int) {
	for _, o := range m {
		o.OnBytesReceived(n)
	}
}

func (m MultiObserver) OnBytesSent(n int) {
	for _, o := range m {
		o.OnBytesSent(n)
	}
}

func (m MultiObserver) OnProtocolError(err error) {
	for _, o := range m {
		o.OnProtocolError(err)
	}
}

func (m MultiObserver) OnKexInit(msg *protocol.KexInit) {
	for _, o := range m {
		o.OnKexInit(msg)
	}
}
