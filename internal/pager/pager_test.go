package pager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"comment_notifier/internal/domain"
)

var errBoom = errors.New("boom")

// collect drains a stream into a slice.
func collect[T any](items <-chan T) []T {
	var out []T
	for item := range items {
		out = append(out, item)
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubPages serves totalPages pages of perPage distinct strings, failing the
// pages listed in failing.
func stubPages(totalPages, perPage int, failing ...int) (FetchFunc[string], []string) {
	fail := make(map[int]bool)
	for _, p := range failing {
		fail[p] = true
	}

	var all []string
	pages := make(map[int][]string)
	for p := 1; p <= totalPages; p++ {
		for i := 0; i < perPage; i++ {
			item := fmt.Sprintf("p%d-i%d", p, i)
			pages[p] = append(pages[p], item)
			if !fail[p] {
				all = append(all, item)
			}
		}
	}

	fetch := func(ctx context.Context, page, pageSize int) (*domain.Page[string], error) {
		if fail[page] {
			return nil, errBoom
		}
		// later pages answer faster so completion order differs from page order
		time.Sleep(time.Duration(totalPages-page) * time.Millisecond)
		return &domain.Page[string]{
			Items:      pages[page],
			Page:       page,
			PageSize:   pageSize,
			TotalItems: totalPages * perPage,
			TotalPages: totalPages,
		}, nil
	}
	return fetch, all
}

func TestStreamYieldsUnionOfAllPages(t *testing.T) {
	for _, total := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("%d pages", total), func(t *testing.T) {
			fetch, want := stubPages(total, 3)

			got := collect(New(fetch, WithPageSize(3), WithLogger(quietLogger())).Stream(context.Background()))

			assert.ElementsMatch(t, want, got)
		})
	}
}

func TestStreamEmitsFirstPageFirst(t *testing.T) {
	fetch, _ := stubPages(5, 4)

	got := collect(New(fetch, WithLogger(quietLogger())).Stream(context.Background()))

	require.Len(t, got, 20)
	assert.Equal(t, []string{"p1-i0", "p1-i1", "p1-i2", "p1-i3"}, got[:4])
}

func TestStreamEmptyListing(t *testing.T) {
	fetch := func(ctx context.Context, page, pageSize int) (*domain.Page[string], error) {
		return &domain.Page[string]{Page: 1, PageSize: pageSize}, nil
	}

	got := collect(New(fetch, WithLogger(quietLogger())).Stream(context.Background()))
	assert.Empty(t, got)
}

func TestStreamFirstPageFailureYieldsNothing(t *testing.T) {
	fetch, _ := stubPages(3, 2, 1)

	var failed []int
	got := collect(New(fetch,
		WithLogger(quietLogger()),
		WithFailureHandler(func(page int, err error) {
			failed = append(failed, page)
			assert.ErrorIs(t, err, errBoom)
		}),
	).Stream(context.Background()))

	assert.Empty(t, got)
	assert.Equal(t, []int{1}, failed)
}

func TestStreamDropsFailedPage(t *testing.T) {
	fetch, want := stubPages(5, 2, 3)

	var mu sync.Mutex
	var failed []int
	got := collect(New(fetch,
		WithLogger(quietLogger()),
		WithFailureHandler(func(page int, err error) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, page)
		}),
	).Stream(context.Background()))

	assert.ElementsMatch(t, want, got)
	assert.Len(t, got, 8)
	assert.Equal(t, []int{3}, failed)
}

func TestStreamRespectsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	fetch := func(ctx context.Context, page, pageSize int) (*domain.Page[int], error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return &domain.Page[int]{Items: []int{page}, Page: page, TotalPages: 12}, nil
	}

	got := collect(New(fetch, WithConcurrency(3), WithLogger(quietLogger())).Stream(context.Background()))

	assert.Len(t, got, 12)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestStreamSharesLimiter(t *testing.T) {
	limiter := semaphore.NewWeighted(2)

	var inFlight, peak atomic.Int32
	fetch := func(ctx context.Context, page, pageSize int) (*domain.Page[int], error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		return &domain.Page[int]{Items: []int{page}, Page: page, TotalPages: 6}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items := collect(New(fetch, WithConcurrency(6), WithLimiter(limiter), WithLogger(quietLogger())).
				Stream(context.Background()))
			assert.Len(t, items, 6)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestStreamStopsOnCancel(t *testing.T) {
	fetch := func(ctx context.Context, page, pageSize int) (*domain.Page[int], error) {
		return &domain.Page[int]{Items: []int{1, 2, 3}, Page: page, TotalPages: 100}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream := New(fetch, WithLogger(quietLogger())).Stream(ctx)

	<-stream
	cancel()

	done := make(chan struct{})
	go func() {
		for range stream {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream was not closed after cancel")
	}
}
