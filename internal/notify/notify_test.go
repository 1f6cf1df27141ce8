package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comment_notifier/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(id string) domain.CommentRecord {
	return domain.CommentRecord{
		ID:            id,
		ClaimName:     "My Video",
		CommenterName: "@bob",
		CommenterURL:  "lbry://@bob#b",
		Text:          "nice one",
		Timestamp:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// recordingSender records sends and the peak number of concurrent calls.
type recordingSender struct {
	mu       sync.Mutex
	sent     []string
	inFlight atomic.Int32
	peak     atomic.Int32
	failOn   string
}

func (s *recordingSender) Send(ctx context.Context, n domain.Notification) error {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	if cur > s.peak.Load() {
		s.peak.Store(cur)
	}
	time.Sleep(time.Millisecond)

	if n.Record.ID == s.failOn {
		return errors.New("smtp: 451 try later")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n.Record.ID)
	return nil
}

func TestCompose(t *testing.T) {
	n := Compose("from@x", "to@x", domain.Change{Kind: domain.New, Record: record("c1")})

	assert.Equal(t, "from@x", n.From)
	assert.Equal(t, "to@x", n.To)
	assert.Equal(t, "New Comment from @bob on My Video", n.Subject)
	assert.Equal(t, domain.New, n.Kind)
	assert.Equal(t, "c1", n.Record.ID)

	assert.Contains(t, n.Body, "My Video\n---\n")
	assert.Contains(t, n.Body, "@bob (lbry://@bob#b)\n")
	assert.Contains(t, n.Body, "Fri, 01 Mar 2024 12:00:00 UTC")
	assert.True(t, strings.HasSuffix(n.Body, "===\nnice one\n"))
}

func TestComposeUpdated(t *testing.T) {
	n := Compose("f", "t", domain.Change{Kind: domain.Updated, Record: record("c1")})
	assert.Equal(t, "Updated Comment from @bob on My Video", n.Subject)
}

func TestDispatcherSendsEachOnceSerially(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, 4, quietLogger())

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	var producers sync.WaitGroup
	for p := range 4 {
		producers.Add(1)
		go func() {
			defer producers.Done()
			for i := range 10 {
				n := domain.Notification{Record: record(fmt.Sprintf("p%d-%d", p, i))}
				assert.NoError(t, d.Enqueue(context.Background(), n))
			}
		}()
	}
	producers.Wait()
	d.Close()

	require.NoError(t, <-done)
	assert.Len(t, sender.sent, 40)
	assert.Equal(t, 40, d.Sent())
	assert.Equal(t, int32(1), sender.peak.Load())

	seen := make(map[string]bool)
	for _, id := range sender.sent {
		assert.False(t, seen[id], "sent %s twice", id)
		seen[id] = true
	}
}

func TestDispatcherStopsOnFailure(t *testing.T) {
	sender := &recordingSender{failOn: "c2"}
	d := NewDispatcher(sender, 10, quietLogger())

	for _, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, d.Enqueue(context.Background(), domain.Notification{Record: record(id)}))
	}
	d.Close()

	err := d.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "comment c2")
	assert.Equal(t, []string{"c1"}, sender.sent)
}

func TestDispatcherSkipsWithHandler(t *testing.T) {
	sender := &recordingSender{failOn: "c2"}
	var failed []string
	d := NewDispatcher(sender, 10, quietLogger(), WithErrorHandler(func(n domain.Notification, err error) error {
		failed = append(failed, n.Record.ID)
		return nil
	}))

	for _, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, d.Enqueue(context.Background(), domain.Notification{Record: record(id)}))
	}
	d.Close()

	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, []string{"c1", "c3"}, sender.sent)
	assert.Equal(t, []string{"c2"}, failed)
	assert.Equal(t, 2, d.Sent())
	assert.Equal(t, 1, d.Dropped())
}

func TestDispatcherEnqueueHonorsContext(t *testing.T) {
	d := NewDispatcher(&recordingSender{}, 0, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := d.Enqueue(ctx, domain.Notification{Record: record("c1")})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcherCloseTwice(t *testing.T) {
	d := NewDispatcher(&recordingSender{}, 1, quietLogger())
	d.Close()
	assert.NotPanics(t, d.Close)
}

func TestSMTPSender(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth

	s := NewSMTPSender(SMTPConfig{Address: "mail.local:1025"})
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}

	n := Compose("notifier@lbry.local", "user@lbry.local", domain.Change{Kind: domain.New, Record: record("c1")})
	require.NoError(t, s.Send(context.Background(), n))

	assert.Equal(t, "mail.local:1025", gotAddr)
	assert.Nil(t, gotAuth)
	assert.Equal(t, "notifier@lbry.local", gotFrom)
	assert.Equal(t, []string{"user@lbry.local"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: New Comment from @bob on My Video\r\n")
	assert.Contains(t, string(gotMsg), "\r\n\r\nMy Video\r\n---\r\n")
}

func TestSMTPSenderAuthAndError(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Address: "mail.local:587", User: "u", Password: "p"})
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		assert.NotNil(t, a)
		return errors.New("connection refused")
	}

	err := s.Send(context.Background(), domain.Notification{Record: record("c1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending email")
}

func TestFormatEmailHeaders(t *testing.T) {
	n := domain.Notification{From: "a@x", To: "b@x", Subject: "hi", Body: "line1\nline2\n"}
	msg := string(FormatEmail(n, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))

	assert.True(t, strings.HasPrefix(msg, "From: a@x\r\nTo: b@x\r\nSubject: hi\r\n"))
	assert.Contains(t, msg, "Date: Tue, 02 Jan 2024 03:04:05 +0000\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	assert.True(t, strings.HasSuffix(msg, "line1\r\nline2\r\n"))
}

// headerLines returns the header block of a rendered message, one entry per line.
func headerLines(t *testing.T, msg []byte) []string {
	t.Helper()
	head, _, ok := strings.Cut(string(msg), "\r\n\r\n")
	require.True(t, ok, "message has no header/body separator")
	return strings.Split(head, "\r\n")
}

func TestFormatEmailRejectsHeaderInjection(t *testing.T) {
	rec := record("c1")
	rec.CommenterName = "@eve\r\nBcc: attacker@evil.test"
	rec.ClaimName = "video\nX-Spam: yes"
	n := Compose("notifier@lbry.local", "user@lbry.local\r\nCc: other@evil.test", domain.Change{Kind: domain.New, Record: rec})

	lines := headerLines(t, FormatEmail(n, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))

	require.Len(t, lines, 6)
	for _, line := range lines {
		assert.False(t, strings.HasPrefix(line, "Bcc:"), "unexpected header %q", line)
		assert.False(t, strings.HasPrefix(line, "Cc:"), "unexpected header %q", line)
		assert.False(t, strings.HasPrefix(line, "X-Spam:"), "unexpected header %q", line)
	}
	assert.Equal(t, "Subject: New Comment from @eve Bcc: attacker@evil.test on video X-Spam: yes", lines[2])
	assert.Equal(t, "To: user@lbry.local Cc: other@evil.test", lines[1])
	assert.NotContains(t, n.Subject, "\n")
}

func TestFormatEmailEncodesNonASCIISubject(t *testing.T) {
	rec := record("c1")
	rec.CommenterName = "@zoë"
	rec.ClaimName = "Café ☕"
	n := Compose("notifier@lbry.local", "user@lbry.local", domain.Change{Kind: domain.New, Record: rec})

	lines := headerLines(t, FormatEmail(n, time.Now()))

	subject := lines[2]
	require.True(t, strings.HasPrefix(subject, "Subject: =?utf-8?q?"), subject)
	for _, r := range subject {
		assert.Less(t, r, rune(0x80), "non-ASCII rune in %q", subject)
	}

	decoded, err := new(mime.WordDecoder).DecodeHeader(strings.TrimPrefix(subject, "Subject: "))
	require.NoError(t, err)
	assert.Equal(t, "New Comment from @zoë on Café ☕", decoded)
}

func TestLogSender(t *testing.T) {
	var buf strings.Builder
	s := NewLogSender(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, s.Send(context.Background(), domain.Notification{Subject: "hello", Record: record("c9")}))
	assert.Contains(t, buf.String(), "subject=hello")
	assert.Contains(t, buf.String(), "comment_id=c9")
}
