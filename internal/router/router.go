// Package router implements the Request Router and Prompt Kernel: priority
// dispatch, token-bucket rate limiting, and retry-with-backoff over the LLM
// Backend Contract.
package router

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"tilecrawler/internal/llmclient"
	"tilecrawler/internal/metrics"
	"tilecrawler/internal/reqkind"
)

const maxRetries = 3

// Result is the outcome delivered on a Submit call's result channel. The
// call never blocks the task loop: it is always observed via this channel
// from a goroutine the caller owns.
type Result struct {
	Text           string
	Err            error // non-nil only for the non-retryable / budget-exceeded case
	Retries        int
	RateLimitWaits int
	Latency        time.Duration
}

// Option configures a Router.
type Option func(*Router)

// WithGlobalRate overrides the default global requests/minute bucket.
func WithGlobalRate(rps float64, burst int) Option {
	return func(r *Router) { r.global = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithKindRate overrides a single kind's bucket.
func WithKindRate(kind reqkind.Kind, rps float64, burst int) Option {
	return func(r *Router) { r.perKind[kind] = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithSink attaches the metrics sink outcomes are recorded into.
func WithSink(sink metrics.Sink) Option {
	return func(r *Router) { r.sink = sink }
}

// Router dispatches LLM calls through a single priority-ordered worker so
// the queue discipline in §4.4 (priority order, FIFO within a priority)
// holds across foreground and background (prefetch/summarization) work.
type Router struct {
	backend llmclient.Backend
	sink    metrics.Sink

	global  *rate.Limiter
	perKind map[reqkind.Kind]*rate.Limiter

	mu    sync.Mutex
	queue *priorityQueue
	seq   int64
	wake  chan struct{}
}

// NewRouter builds a Router and starts its single background dispatcher
// goroutine; Stop via ctx cancellation on submitted calls is sufficient,
// there is no separate shutdown method since the dispatcher is idle (blocked
// on wake) between tasks.
func NewRouter(backend llmclient.Backend, opts ...Option) *Router {
	r := &Router{
		backend: backend,
		sink:    metrics.Discard{},
		global:  rate.NewLimiter(rate.Limit(60.0/60.0*10), 10), // generous default
		perKind: map[reqkind.Kind]*rate.Limiter{},
		queue:   newPriorityQueue(),
		wake:    make(chan struct{}, 1),
	}
	for kind := range reqkind.Table {
		r.perKind[kind] = rate.NewLimiter(rate.Limit(2), 4)
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.dispatchLoop()
	return r
}

// Submit enqueues kind's request at its configured priority and returns a
// channel the caller's own goroutine observes; it never blocks the task
// loop itself.
func (r *Router) Submit(ctx context.Context, kind reqkind.Kind, req llmclient.Request) <-chan Result {
	out := make(chan Result, 1)
	cfg := reqkind.Table[kind]
	priority := cfg.Priority

	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.queue.push(&task{priority: priority, seq: seq, run: func() {
		out <- r.execute(ctx, kind, req)
	}})
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return out
}

// SubmitPrefetch submits a background request at the prefetch priority
// (§4.7), below any direct player-visible kind.
func (r *Router) SubmitPrefetch(ctx context.Context, kind reqkind.Kind, req llmclient.Request) <-chan Result {
	out := make(chan Result, 1)
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.queue.push(&task{priority: reqkind.PrefetchPriority, seq: seq, run: func() {
		out <- r.execute(ctx, kind, req)
	}})
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return out
}

func (r *Router) dispatchLoop() {
	for range r.wake {
		for {
			r.mu.Lock()
			t, ok := r.queue.pop()
			r.mu.Unlock()
			if !ok {
				break
			}
			t.run()
		}
	}
}

// execute runs the rate-limit + retry-with-backoff policy for a single
// request, classifying outcomes per §4.4 and always recording a metric.
func (r *Router) execute(ctx context.Context, kind reqkind.Kind, req llmclient.Request) Result {
	cfg := reqkind.Table[kind]
	deadline := cfg.Deadline
	if req.Deadline > 0 {
		deadline = req.Deadline
	}
	start := time.Now()

	callCtx := ctx
	var cancel context.CancelFunc
	if deadline > 0 {
		callCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	limiter := r.perKind[kind]
	rateWaits := 0
	retries := 0

	for attempt := 0; attempt < maxRetries; attempt++ {
		if waitErr := r.waitForRate(callCtx, limiter); waitErr != nil {
			return r.finish(kind, Result{Err: waitErr, Retries: retries, RateLimitWaits: rateWaits}, start, false)
		}
		rateWaits++

		text, err := r.backend.Complete(callCtx, req)
		if err == nil {
			return r.finish(kind, Result{Text: text, Retries: retries, RateLimitWaits: rateWaits}, start, true)
		}

		be, _ := llmclient.AsBackendError(err)
		if be == nil || !be.Retryable() {
			return r.finish(kind, Result{Err: err, Retries: retries, RateLimitWaits: rateWaits}, start, false)
		}

		retries++
		if attempt == maxRetries-1 {
			break
		}
		delay := backoffWithJitter(attempt, 100*time.Millisecond, 2*time.Second)
		select {
		case <-time.After(delay):
		case <-callCtx.Done():
			return r.finish(kind, Result{Err: callCtx.Err(), Retries: retries, RateLimitWaits: rateWaits}, start, false)
		}
	}
	return r.finish(kind, Result{Err: context.DeadlineExceeded, Retries: retries, RateLimitWaits: rateWaits}, start, false)
}

func (r *Router) waitForRate(ctx context.Context, kindLimiter *rate.Limiter) error {
	if err := r.global.Wait(ctx); err != nil {
		return err
	}
	if kindLimiter != nil {
		return kindLimiter.Wait(ctx)
	}
	return nil
}

func (r *Router) finish(kind reqkind.Kind, res Result, start time.Time, success bool) Result {
	res.Latency = time.Since(start)
	r.sink.RecordOutcome(metrics.Outcome{
		Kind:           string(kind),
		Success:        success,
		Fallback:       !success,
		Retries:        res.Retries,
		RateLimitWaits: res.RateLimitWaits,
		Latency:        res.Latency,
	})
	return res
}
