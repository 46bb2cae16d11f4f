// Package ratelimiter paces outgoing RPC calls.
//
// Some NFS servers (and the middleboxes in front of them) drop connections
// when a client pipelines thousands of calls at once. The transport consults a
// RateLimiter before queueing each attempt so that a burst of prefetch and
// write-back work is smoothed into a sustained call rate.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket over outgoing calls.
//
// A nil *RateLimiter is valid and never throttles.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing callsPerSecond sustained calls with the
// given burst. callsPerSecond == 0 disables limiting. A zero burst is raised
// to one so that Wait can make progress.
func New(callsPerSecond, burst uint) *RateLimiter {
	if callsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(callsPerSecond), int(burst)),
	}
}

// Unlimited reports whether the limiter lets every call through.
func (r *RateLimiter) Unlimited() bool {
	return r == nil || r.limiter.Limit() == rate.Inf
}

// Allow consumes a token if one is available.
func (r *RateLimiter) Allow() bool {
	if r.Unlimited() {
		return true
	}
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r.Unlimited() {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

// SetLimit changes the sustained rate. Zero removes the limit.
func (r *RateLimiter) SetLimit(callsPerSecond uint) {
	if r == nil {
		return
	}
	if callsPerSecond == 0 {
		r.limiter.SetLimit(rate.Inf)
		return
	}
	r.limiter.SetLimit(rate.Limit(callsPerSecond))
	if r.limiter.Burst() == 0 {
		r.limiter.SetBurst(1)
	}
}
