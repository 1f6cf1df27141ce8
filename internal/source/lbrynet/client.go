package lbrynet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"comment_notifier/internal/domain"
)

const (
	SourceID   = "lbrynet"
	SourceName = "LBRY SDK"

	methodAccountList = "account_list"
	methodClaimList   = "claim_list"
	methodCommentList = "comment_list"

	maxBodySize = 16 << 20
)

// Config holds API client configuration.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client performs single-page listing calls against the API endpoint.
// It never retries unless MaxAttempts is greater than one.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a new API client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID),
	}
}

// ID returns the source identifier.
func (c *Client) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (c *Client) Name() string {
	return SourceName
}

// ListAccounts fetches one page of accounts.
func (c *Client) ListAccounts(ctx context.Context, page, pageSize int) (*domain.Page[domain.Account], error) {
	res, err := fetchPage[accountItem](ctx, c, methodAccountList, map[string]any{
		"page":      page,
		"page_size": pageSize,
	}, page)
	if err != nil {
		return nil, err
	}

	out := &domain.Page[domain.Account]{
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalItems: res.TotalItems,
		TotalPages: res.TotalPages,
		Items:      make([]domain.Account, 0, len(res.Items)),
	}
	for _, a := range res.Items {
		out.Items = append(out.Items, domain.Account{
			ID:        a.ID,
			Name:      a.Name,
			IsDefault: a.IsDefault,
		})
	}
	return out, nil
}

// ListClaims fetches one page of the claims owned by an account.
func (c *Client) ListClaims(ctx context.Context, accountID string, page, pageSize int) (*domain.Page[domain.Claim], error) {
	res, err := fetchPage[claimItem](ctx, c, methodClaimList, map[string]any{
		"account_id": accountID,
		"page":       page,
		"page_size":  pageSize,
	}, page)
	if err != nil {
		return nil, err
	}

	out := &domain.Page[domain.Claim]{
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalItems: res.TotalItems,
		TotalPages: res.TotalPages,
		Items:      make([]domain.Claim, 0, len(res.Items)),
	}
	for _, cl := range res.Items {
		out.Items = append(out.Items, domain.Claim{
			ID:        cl.ClaimID,
			Name:      cl.Name,
			Timestamp: cl.Timestamp.Time(),
		})
	}
	return out, nil
}

// ListComments fetches one page of the comments left on a claim.
func (c *Client) ListComments(ctx context.Context, claimID string, page, pageSize int) (*domain.Page[domain.Comment], error) {
	res, err := fetchPage[commentItem](ctx, c, methodCommentList, map[string]any{
		"claim_id":  claimID,
		"page":      page,
		"page_size": pageSize,
	}, page)
	if err != nil {
		return nil, err
	}

	out := &domain.Page[domain.Comment]{
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalItems: res.TotalItems,
		TotalPages: res.TotalPages,
		Items:      make([]domain.Comment, 0, len(res.Items)),
	}
	for _, cm := range res.Items {
		out.Items = append(out.Items, domain.Comment{
			ID:            cm.CommentID,
			ClaimID:       cm.ClaimID,
			Text:          cm.Comment,
			CommenterID:   cm.ChannelID,
			CommenterName: cm.ChannelName,
			CommenterURL:  cm.ChannelURL,
			IsHidden:      cm.IsHidden,
			Timestamp:     cm.Timestamp.Time(),
		})
	}
	return out, nil
}

func fetchPage[T any](ctx context.Context, c *Client, method string, params map[string]any, page int) (*pageResult[T], error) {
	body, err := json.Marshal(request{Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	var res *pageResult[T]
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		res, err = doRequest[T](ctx, c, method, page, body)
		if err == nil {
			return res, nil
		}

		if attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("request failed, retrying",
			"method", method,
			"page", page,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, networkError(method, page, ctx.Err())
		case <-time.After(backoff):
		}
	}

	return nil, err
}

func doRequest[T any](ctx context.Context, c *Client, method string, page int, body []byte) (*pageResult[T], error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, networkError(method, page, fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "CommentNotifier/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(method, page, fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, invalidResponse(method, page, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var payload response[T]
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&payload); err != nil {
		return nil, invalidResponse(method, page, fmt.Errorf("decode response: %w", err))
	}
	if payload.Result == nil {
		return nil, invalidResponse(method, page, fmt.Errorf("missing result"))
	}

	return payload.Result, nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if c.maxBackoff > 0 && backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}
