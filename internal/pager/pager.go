// Package pager flattens a paginated listing into a single stream of items.
//
// Page 1 is fetched first to learn the page count. Its items are emitted
// before anything else; the remaining pages are fetched concurrently and
// their items are emitted in the order the fetches complete. Items within a
// page keep their order. A page that fails to load contributes no items and
// is reported to the failure handler instead of stopping the stream.
package pager

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"comment_notifier/internal/domain"
)

// FetchFunc loads one 1-based page.
type FetchFunc[T any] func(ctx context.Context, page, pageSize int) (*domain.Page[T], error)

// Limiter bounds fetches across several pagers. *semaphore.Weighted satisfies it.
type Limiter interface {
	Acquire(ctx context.Context, n int64) error
	Release(n int64)
}

// FailureHandler is told about every page that could not be loaded.
type FailureHandler func(page int, err error)

type options struct {
	pageSize    int
	concurrency int
	limiter     Limiter
	onFailure   FailureHandler
	logger      *slog.Logger
}

type Option func(*options)

func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithConcurrency caps how many pages of this stream are fetched at once.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLimiter makes every fetch hold one unit of l for its duration.
func WithLimiter(l Limiter) Option {
	return func(o *options) { o.limiter = l }
}

func WithFailureHandler(h FailureHandler) Option {
	return func(o *options) { o.onFailure = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

type Pager[T any] struct {
	fetch FetchFunc[T]
	opts  options
}

func New[T any](fetch FetchFunc[T], opts ...Option) *Pager[T] {
	o := options{
		pageSize:    50,
		concurrency: runtime.NumCPU(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Pager[T]{fetch: fetch, opts: o}
}

// Stream starts fetching and returns the item channel. The channel is closed
// once every page has been emitted or dropped, or ctx is done.
func (p *Pager[T]) Stream(ctx context.Context) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		p.run(ctx, out)
	}()
	return out
}

func (p *Pager[T]) run(ctx context.Context, out chan<- T) {
	first, err := p.get(ctx, 1)
	if err != nil {
		p.fail(ctx, 1, err)
		return
	}
	if !send(ctx, out, first.Items) {
		return
	}
	if first.TotalPages < 2 {
		return
	}

	var g errgroup.Group
	g.SetLimit(p.opts.concurrency)
	for page := 2; page <= first.TotalPages; page++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := p.get(ctx, page)
			if err != nil {
				p.fail(ctx, page, err)
				return nil
			}
			send(ctx, out, res.Items)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pager[T]) get(ctx context.Context, page int) (*domain.Page[T], error) {
	if p.opts.limiter != nil {
		if err := p.opts.limiter.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer p.opts.limiter.Release(1)
	}

	res, err := p.fetch(ctx, page, p.opts.pageSize)
	if err != nil {
		return nil, err
	}

	p.opts.logger.Debug("fetched page",
		"page", page,
		"items", len(res.Items),
		"total_pages", res.TotalPages,
	)
	return res, nil
}

func (p *Pager[T]) fail(ctx context.Context, page int, err error) {
	// cancellation is not a page failure
	if ctx.Err() != nil {
		return
	}
	p.opts.logger.Warn("page dropped", "page", page, "error", err)
	if p.opts.onFailure != nil {
		p.opts.onFailure(page, err)
	}
}

func send[T any](ctx context.Context, out chan<- T, items []T) bool {
	for _, item := range items {
		select {
		case out <- item:
		case <-ctx.Done():
			return false
		}
	}
	return true
}
