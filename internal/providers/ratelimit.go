package providers

import (
	"context"
	"sync"
	"time"
)

// DefaultRequestsPerMinute applies when no model rate limit is configured.
const DefaultRequestsPerMinute = 60

// RateLimiter implements a token bucket rate limiter.
type RateLimiter struct {
	mu sync.Mutex

	// Configuration
	requestsPerMinute int
	windowSeconds     float64

	// Token bucket state
	tokens     float64
	lastUpdate time.Time

	// Statistics
	totalConsumed int64
	totalWaited   time.Duration
	last429Time   time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	Utilization     float64       `json:"utilization"`
	TimeUntilToken  time.Duration `json:"time_until_token"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
	Last429Time     *time.Time    `json:"last_429_time,omitempty"`
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		windowSeconds:     60.0,
		tokens:            float64(requestsPerMinute),
		lastUpdate:        time.Now(),
	}
}

// Wait blocks until a token is available or context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()

		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		}

		waitTime := r.timeUntilToken()
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
			r.mu.Lock()
			r.totalWaited += waitTime
			r.mu.Unlock()
		}
	}
}

// Record429 notes a rate-limit answer. A positive retryAfter drains the bucket.
func (r *RateLimiter) Record429(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last429Time = time.Now()
	if retryAfter > 0 {
		r.tokens = 0
	}
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()

	utilization := 1.0 - (r.tokens / float64(r.requestsPerMinute))
	if utilization < 0 {
		utilization = 0
	}

	var timeUntilToken time.Duration
	if r.tokens < 1.0 {
		timeUntilToken = r.timeUntilToken()
	}

	var last429 *time.Time
	if !r.last429Time.IsZero() {
		t := r.last429Time
		last429 = &t
	}

	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.requestsPerMinute,
		Utilization:     utilization,
		TimeUntilToken:  timeUntilToken,
		TotalConsumed:   r.totalConsumed,
		TotalWaited:     r.totalWaited,
		Last429Time:     last429,
	}
}

// refill adds tokens based on elapsed time. Must be called with lock held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * r.refillRate()
	if r.tokens > float64(r.requestsPerMinute) {
		r.tokens = float64(r.requestsPerMinute)
	}
}

func (r *RateLimiter) refillRate() float64 {
	return float64(r.requestsPerMinute) / r.windowSeconds
}

// timeUntilToken must be called with lock held.
func (r *RateLimiter) timeUntilToken() time.Duration {
	tokensNeeded := 1.0 - r.tokens
	return time.Duration(tokensNeeded/r.refillRate()*1000) * time.Millisecond
}

// RateLimited wraps a Transcriber so every call first takes a limiter token.
type RateLimited struct {
	Transcriber
	limiter *RateLimiter
}

// WithRateLimit wraps t with a limiter of rpm requests per minute.
func WithRateLimit(t Transcriber, rpm int) *RateLimited {
	return &RateLimited{Transcriber: t, limiter: NewRateLimiter(rpm)}
}

// Transcribe waits for a token, then delegates. Rate-limit answers drain the bucket.
func (r *RateLimited) Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := r.Transcriber.Transcribe(ctx, req)
	if rle, ok := IsRateLimitError(err); ok {
		r.limiter.Record429(rle.RetryAfter)
	}
	return result, err
}

// Limiter exposes the underlying limiter for status reporting.
func (r *RateLimited) Limiter() *RateLimiter {
	return r.limiter
}
