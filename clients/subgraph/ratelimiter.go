package subgraph

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var rateLimiterDelayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "horizon_subgraph_rate_limited_total",
	Help: "Number of subgraph requests delayed by the call rate limiter",
}, []string{"source"})

// CallRateLimiter throttles the requests sent to one subgraph endpoint.
// A nil limiter does not limit.
type CallRateLimiter struct {
	limiter *rate.Limiter
}

// NewCallRateLimiter returns nil if ratePerSecond is not positive.
func NewCallRateLimiter(ratePerSecond float64, burst int) *CallRateLimiter {
	if ratePerSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}

	return &CallRateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Wait blocks until the next call is allowed or ctx is done.
func (crl *CallRateLimiter) Wait(ctx context.Context, source string) error {
	if crl == nil {
		return nil
	}

	if crl.limiter.Allow() {
		return nil
	}
	rateLimiterDelayedTotal.WithLabelValues(source).Inc()

	return crl.limiter.Wait(ctx)
}
