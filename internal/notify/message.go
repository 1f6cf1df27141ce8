package notify

import (
	"bytes"
	"fmt"
	"time"

	"comment_notifier/internal/domain"
)

// Compose builds the message sent for a new or updated comment.
func Compose(from, to string, change domain.Change) domain.Notification {
	rec := change.Record

	verb := "New"
	if change.Kind == domain.Updated {
		verb = "Updated"
	}

	var body bytes.Buffer
	fmt.Fprintf(&body, "%s\n---\n\n", rec.ClaimName)
	fmt.Fprintf(&body, "%s (%s)\n", rec.CommenterName, rec.CommenterURL)
	fmt.Fprintf(&body, "%s\n", rec.Timestamp.UTC().Format(time.RFC1123))
	fmt.Fprintf(&body, "===\n%s\n", rec.Text)

	return domain.Notification{
		From:    from,
		To:      to,
		Subject: headerValue(fmt.Sprintf("%s Comment from %s on %s", verb, rec.CommenterName, rec.ClaimName)),
		Body:    body.String(),
		Kind:    change.Kind,
		Record:  rec,
	}
}
