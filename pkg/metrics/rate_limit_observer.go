package metrics

import "time"

// RateLimitObserver records handshakes held back by a probe rate limiter.
type RateLimitObserver struct {
	collector *Collector
	logger    *Logger
}

// NewRateLimitObserver creates a rate limit observer that records metrics and logs events.
func NewRateLimitObserver(collector *Collector, logger *Logger) *RateLimitObserver {
	if collector == nil {
		collector = Global()
	}
	if logger == nil {
		logger = GetLogger()
	}

	return &RateLimitObserver{
		collector: collector,
		logger:    logger.Named("rate_limit"),
	}
}

// OnRateLimited records that the handshake to target waited for a token.
func (o *RateLimitObserver) OnRateLimited(target string, wait time.Duration) {
	o.collector.RecordRateLimited()
	fields := Fields{"wait": wait.String()}
	if target != "" {
		fields["target"] = target
	}
	o.logger.Debug("handshake delayed by rate limit", fields)
}
