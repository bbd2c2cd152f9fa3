package provider

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/visibility-cli/internal/resilience"
)

// Adapter fans a prompt out across all configured backends. Each call is
// independently fault-isolated: one backend's outage never blocks or fails
// the others, and every outcome (success or error) is reported so the caller
// can persist it.
type Adapter struct {
	backends    []Backend
	limiter     *rate.Limiter
	maxParallel int
	retry       resilience.RetryConfig
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithInterCallDelay paces calls across backends as a rate-limit safeguard.
func WithInterCallDelay(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithMaxParallel bounds the number of concurrent backend calls.
func WithMaxParallel(n int) AdapterOption {
	return func(a *Adapter) {
		if n > 0 {
			a.maxParallel = n
		}
	}
}

// WithRetry overrides the per-call retry configuration.
func WithRetry(cfg resilience.RetryConfig) AdapterOption {
	return func(a *Adapter) {
		a.retry = cfg
	}
}

// NewAdapter creates an Adapter over the given backends.
func NewAdapter(backends []Backend, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		backends:    backends,
		maxParallel: len(backends),
		retry:       resilience.DefaultRetryConfig(),
	}
	if a.maxParallel == 0 {
		a.maxParallel = 1
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Backends returns the names of all configured backends.
func (a *Adapter) Backends() []string {
	names := make([]string, len(a.backends))
	for i, b := range a.backends {
		names[i] = b.Name()
	}
	return names
}

// FanOut sends the prompt to every backend and returns one Outcome per
// backend, in configuration order. It never returns an error: per-backend
// failures are recorded in the corresponding Outcome.
func (a *Adapter) FanOut(ctx context.Context, prompt string) []Outcome {
	outcomes := make([]Outcome, len(a.backends))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxParallel)

	for i, backend := range a.backends {
		g.Go(func() error {
			outcomes[i] = a.callOne(gctx, backend, prompt)
			return nil
		})
	}

	// Goroutines never return errors; outcomes carry them.
	_ = g.Wait()

	return outcomes
}

func (a *Adapter) callOne(ctx context.Context, backend Backend, prompt string) Outcome {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return Outcome{Backend: backend.Name(), Err: err}
		}
	}

	retry := a.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(backend.Name(), "generate")
	}

	start := time.Now()
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*Response, error) {
		return backend.Generate(ctx, prompt)
	})
	if err != nil {
		zap.L().Warn("backend call failed",
			zap.String("backend", backend.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return Outcome{Backend: backend.Name(), Err: err}
	}

	zap.L().Debug("backend call complete",
		zap.String("backend", backend.Name()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("output_tokens", resp.OutputTokens),
	)
	return Outcome{Backend: backend.Name(), Response: resp}
}
