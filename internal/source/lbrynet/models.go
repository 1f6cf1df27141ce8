package lbrynet

import (
	"encoding/json"
	"fmt"
	"time"
)

// request is the body of every call to the API endpoint.
type request struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

type response[T any] struct {
	Result *pageResult[T] `json:"result"`
}

type pageResult[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

type accountItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

type claimItem struct {
	ClaimID   string    `json:"claim_id"`
	Name      string    `json:"name"`
	Timestamp epochTime `json:"timestamp"`
}

type commentItem struct {
	CommentID   string    `json:"comment_id"`
	ClaimID     string    `json:"claim_id"`
	Comment     string    `json:"comment"`
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	ChannelURL  string    `json:"channel_url"`
	IsHidden    bool      `json:"is_hidden"`
	Timestamp   epochTime `json:"timestamp"`
}

// epochTime decodes an integer count of seconds since the Unix epoch.
type epochTime time.Time

func (t *epochTime) UnmarshalJSON(data []byte) error {
	var secs int64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("epoch timestamp: %w", err)
	}
	*t = epochTime(time.Unix(secs, 0).UTC())
	return nil
}

func (t epochTime) Time() time.Time {
	return time.Time(t)
}
