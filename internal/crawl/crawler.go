// Package crawl walks accounts, their claims and the claims' comments and
// flattens them into a stream of triples.
//
// Expansion is done by two fixed pools of N workers: one turns accounts into
// claims, the other turns claims into comments. Each level also shares a
// semaphore of size N across all of its page requests, so no more than N
// claim_list and N comment_list requests are outstanding at any time.
// Triples are delivered in completion order; siblings are never ordered.
package crawl

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"comment_notifier/internal/domain"
	"comment_notifier/internal/pager"
)

// Lister fetches single pages of each listing.
type Lister interface {
	ListAccounts(ctx context.Context, page, pageSize int) (*domain.Page[domain.Account], error)
	ListClaims(ctx context.Context, accountID string, page, pageSize int) (*domain.Page[domain.Claim], error)
	ListComments(ctx context.Context, claimID string, page, pageSize int) (*domain.Page[domain.Comment], error)
}

type Config struct {
	PageSize    int
	Concurrency int // zero means runtime.NumCPU()
}

// Tally counts what a walk has seen so far.
type Tally struct {
	Accounts    atomic.Int64
	Claims      atomic.Int64
	Comments    atomic.Int64
	FailedPages atomic.Int64
}

type Crawler struct {
	lister      Lister
	pageSize    int
	concurrency int
	logger      *slog.Logger
}

func New(lister Lister, cfg Config, logger *slog.Logger) *Crawler {
	n := cfg.Concurrency
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &Crawler{
		lister:      lister,
		pageSize:    cfg.PageSize,
		concurrency: n,
		logger:      logger.With("component", "crawl"),
	}
}

type accountClaim struct {
	account domain.Account
	claim   domain.Claim
}

// Walk starts the traversal. The returned channel is closed after the account
// listing is exhausted and every claim and comment expansion has finished.
// Callers must drain the channel or cancel ctx.
func (c *Crawler) Walk(ctx context.Context) (<-chan domain.Triple, *Tally) {
	tally := &Tally{}
	n := c.concurrency

	accounts := pager.New(c.lister.ListAccounts,
		c.pagerOptions(tally, nil, "method", "account_list")...,
	).Stream(ctx)

	claims := make(chan accountClaim, n)
	claimLimiter := semaphore.NewWeighted(int64(n))

	var claimWorkers sync.WaitGroup
	for range n {
		claimWorkers.Add(1)
		go func() {
			defer claimWorkers.Done()
			for account := range accounts {
				tally.Accounts.Add(1)
				c.expandAccount(ctx, account, claimLimiter, claims, tally)
			}
		}()
	}
	go func() {
		claimWorkers.Wait()
		close(claims)
	}()

	out := make(chan domain.Triple, n)
	commentLimiter := semaphore.NewWeighted(int64(n))

	var commentWorkers sync.WaitGroup
	for range n {
		commentWorkers.Add(1)
		go func() {
			defer commentWorkers.Done()
			for ac := range claims {
				tally.Claims.Add(1)
				c.expandClaim(ctx, ac, commentLimiter, out, tally)
			}
		}()
	}
	go func() {
		commentWorkers.Wait()
		close(out)
	}()

	return out, tally
}

func (c *Crawler) expandAccount(ctx context.Context, account domain.Account, limiter pager.Limiter, out chan<- accountClaim, tally *Tally) {
	fetch := func(ctx context.Context, page, pageSize int) (*domain.Page[domain.Claim], error) {
		return c.lister.ListClaims(ctx, account.ID, page, pageSize)
	}

	claims := pager.New(fetch,
		c.pagerOptions(tally, limiter, "method", "claim_list", "account_id", account.ID)...,
	).Stream(ctx)

	for claim := range claims {
		select {
		case out <- accountClaim{account: account, claim: claim}:
		case <-ctx.Done():
		}
	}
}

func (c *Crawler) expandClaim(ctx context.Context, ac accountClaim, limiter pager.Limiter, out chan<- domain.Triple, tally *Tally) {
	fetch := func(ctx context.Context, page, pageSize int) (*domain.Page[domain.Comment], error) {
		return c.lister.ListComments(ctx, ac.claim.ID, page, pageSize)
	}

	comments := pager.New(fetch,
		c.pagerOptions(tally, limiter, "method", "comment_list", "claim_id", ac.claim.ID)...,
	).Stream(ctx)

	for comment := range comments {
		select {
		case out <- domain.Triple{Account: ac.account, Claim: ac.claim, Comment: comment}:
			tally.Comments.Add(1)
		case <-ctx.Done():
		}
	}
}

func (c *Crawler) pagerOptions(tally *Tally, limiter pager.Limiter, logArgs ...any) []pager.Option {
	opts := []pager.Option{
		pager.WithPageSize(c.pageSize),
		pager.WithConcurrency(c.concurrency),
		pager.WithLogger(c.logger.With(logArgs...)),
		pager.WithFailureHandler(func(page int, err error) {
			tally.FailedPages.Add(1)
		}),
	}
	if limiter != nil {
		opts = append(opts, pager.WithLimiter(limiter))
	}
	return opts
}
