package domain

type Classification int

const (
	Unchanged Classification = iota
	New
	Updated
)

func (c Classification) String() string {
	switch c {
	case New:
		return "new"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Change is the outcome of comparing an observed comment with the store.
type Change struct {
	Kind   Classification
	Record CommentRecord
}

// Notification is one outbound message about a changed comment.
type Notification struct {
	From    string
	To      string
	Subject string
	Body    string
	Kind    Classification
	Record  CommentRecord
}
