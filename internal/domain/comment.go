package domain

import "time"

type Account struct {
	ID        string
	Name      string
	IsDefault bool
}

type Claim struct {
	ID        string
	Name      string
	Timestamp time.Time
}

type Comment struct {
	ID            string
	ClaimID       string
	Text          string
	CommenterID   string
	CommenterName string
	CommenterURL  string
	IsHidden      bool
	Timestamp     time.Time
}

// CommentRecord is the persisted, denormalized view of a comment that has
// already been notified.
type CommentRecord struct {
	ID            string    `db:"id" json:"id"`
	AccountID     string    `db:"account_id" json:"account_id"`
	ClaimID       string    `db:"claim_id" json:"claim_id"`
	ClaimName     string    `db:"claim_name" json:"claim_name"`
	CommenterID   string    `db:"commenter_id" json:"commenter_id"`
	CommenterName string    `db:"commenter_name" json:"commenter_name"`
	CommenterURL  string    `db:"commenter_url" json:"commenter_url"`
	Text          string    `db:"comment" json:"comment"`
	IsHidden      bool      `db:"is_hidden" json:"is_hidden"`
	Timestamp     time.Time `db:"timestamp" json:"timestamp"`
}

// Triple pairs a comment with the account and claim it was reached through.
type Triple struct {
	Account Account
	Claim   Claim
	Comment Comment
}

// Record builds the record to persist for t.
func (t Triple) Record() CommentRecord {
	return CommentRecord{
		ID:            t.Comment.ID,
		AccountID:     t.Account.ID,
		ClaimID:       t.Comment.ClaimID,
		ClaimName:     t.Claim.Name,
		CommenterID:   t.Comment.CommenterID,
		CommenterName: t.Comment.CommenterName,
		CommenterURL:  t.Comment.CommenterURL,
		Text:          t.Comment.Text,
		IsHidden:      t.Comment.IsHidden,
		Timestamp:     t.Comment.Timestamp.UTC(),
	}
}
