// Package orchestrator runs translation providers: one by one until a
// candidate is accepted, all at once for comparison, or a batch of texts
// fanned out over a bounded worker pool.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/valpere/autotrad/internal/translator"
)

// ErrNoAnswer marks a provider that returned nothing usable.
var ErrNoAnswer = errors.New("no answer")

type OrchestratorConfig struct {
	// Timeout bounds each provider call. Zero means no per-call limit.
	Timeout time.Duration
}

// Accept decides whether a non-blank candidate may be used. A non-nil error
// rejects it and the chain moves on.
type Accept func(res *translator.ServiceResult) error

// Attempt records one provider invocation. Result is the answer the
// provider returned, nil when it failed.
type Attempt struct {
	Service  string
	Latency  time.Duration
	Err      error
	Rejected bool
	Result   *translator.ServiceResult
}

type OrchestratorResult struct {
	Accepted  *translator.ServiceResult
	Attempts  []Attempt
	Results   []translator.ServiceResult
	Errors    []error
	Succeeded int
	Failed    int
	Rejected  int
}

type Orchestrator struct {
	services []translator.TranslationService
	config   OrchestratorConfig
}

func New(services []translator.TranslationService, config OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		services: services,
		config:   config,
	}
}

func (o *Orchestrator) Services() []translator.TranslationService {
	return o.services
}

// call invokes svc under the per-provider timeout. Panics and blank results
// come back as errors.
func (o *Orchestrator) call(ctx context.Context, svc translator.TranslationService, req translator.TranslateRequest) (res *translator.ServiceResult, err error) {
	if o.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("%s: panic: %v", svc.Name(), r)
		}
	}()

	res, err = svc.Translate(ctx, req)
	switch {
	case err != nil:
		return res, fmt.Errorf("%s: %w", svc.Name(), err)
	case res == nil:
		return nil, fmt.Errorf("%s: %w", svc.Name(), ErrNoAnswer)
	case res.Error != "":
		return res, fmt.Errorf("%s: %s", svc.Name(), res.Error)
	case !translator.Answered(res):
		return res, fmt.Errorf("%s: %w", svc.Name(), ErrNoAnswer)
	}
	return res, nil
}

// Execute tries the services in order and stops at the first answer that
// accept allows. Failures never abort the chain; a cancelled ctx does.
func (o *Orchestrator) Execute(ctx context.Context, req translator.TranslateRequest, accept Accept) *OrchestratorResult {
	result := &OrchestratorResult{
		Attempts: make([]Attempt, 0, len(o.services)),
	}

	for _, svc := range o.services {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, ctx.Err())
			break
		}

		start := time.Now()
		res, err := o.call(ctx, svc, req)
		attempt := Attempt{Service: svc.Name(), Latency: time.Since(start)}

		if err != nil {
			attempt.Err = err
			result.Attempts = append(result.Attempts, attempt)
			result.Errors = append(result.Errors, err)
			result.Failed++
			continue
		}

		if accept != nil {
			if rerr := accept(res); rerr != nil {
				attempt.Err = rerr
				attempt.Rejected = true
				attempt.Result = res
				result.Attempts = append(result.Attempts, attempt)
				result.Errors = append(result.Errors, fmt.Errorf("%s: %w", svc.Name(), rerr))
				result.Rejected++
				continue
			}
		}

		attempt.Result = res
		result.Attempts = append(result.Attempts, attempt)
		result.Results = append(result.Results, *res)
		result.Succeeded++
		result.Accepted = res
		break
	}

	return result
}

// ExecuteAll calls every service concurrently and collects all answers, in
// service order. Used for side-by-side comparison.
func (o *Orchestrator) ExecuteAll(ctx context.Context, req translator.TranslateRequest) *OrchestratorResult {
	result := &OrchestratorResult{
		Attempts: make([]Attempt, len(o.services)),
		Results:  make([]translator.ServiceResult, 0, len(o.services)),
		Errors:   make([]error, 0),
	}

	type outcome struct {
		res *translator.ServiceResult
		err error
	}
	outcomes := make([]outcome, len(o.services))

	var wg sync.WaitGroup
	for i, svc := range o.services {
		wg.Add(1)
		go func(index int, service translator.TranslationService) {
			defer wg.Done()
			start := time.Now()
			res, err := o.call(ctx, service, req)
			outcomes[index] = outcome{res: res, err: err}
			attempt := Attempt{Service: service.Name(), Latency: time.Since(start), Err: err}
			if err == nil {
				attempt.Result = res
			}
			result.Attempts[index] = attempt
		}(i, svc)
	}
	wg.Wait()

	for _, oc := range outcomes {
		if oc.err != nil {
			result.Errors = append(result.Errors, oc.err)
			result.Failed++
			continue
		}
		result.Results = append(result.Results, *oc.res)
		result.Succeeded++
	}

	return result
}

// Warm runs fn for every item with at most limit running at once. Each item
// is isolated: an error or panic in one does not stop the others. The
// collected failures are returned joined.
func Warm(ctx context.Context, items []string, limit int, fn func(ctx context.Context, item string) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	if limit > 0 {
		g.SetLimit(limit)
	}

	fail := func(item string, err error) {
		mu.Lock()
		errs = append(errs, fmt.Errorf("%q: %w", item, err))
		mu.Unlock()
	}

	for _, item := range items {
		if ctx.Err() != nil {
			fail(item, ctx.Err())
			continue
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					fail(item, fmt.Errorf("panic: %v", r))
				}
			}()
			if err := fn(ctx, item); err != nil {
				fail(item, err)
			}
			return nil
		})
	}

	g.Wait()
	return errors.Join(errs...)
}
