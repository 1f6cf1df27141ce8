package service

import "fmt"

type Op string

const (
	OpPersist Op = "persist"
	OpNotify  Op = "notify"
)

// RecordError is a failure tied to one comment. Whether it ends the run
// depends on the configured policy; any other error always does.
type RecordError struct {
	Op        Op
	CommentID string
	Err       error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s comment %s: %v", e.Op, e.CommentID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
