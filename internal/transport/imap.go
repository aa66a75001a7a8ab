package transport

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	"github.com/sirupsen/logrus"

	"smartmailer/internal/config"
	"smartmailer/internal/model"
)

// IMAPFetcher implements MailboxFetcher over an authenticated IMAP
// session. The cursor is the highest UID observed so far, so a restart
// resumes exactly after the last committed message.
type IMAPFetcher struct {
	client  *client.Client
	mailbox string
}

// NewIMAPFetcher connects and authenticates to the IMAP server.
func NewIMAPFetcher(cfg *config.MailboxConfig) (*IMAPFetcher, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(cfg.IMAPUser, cfg.IMAPPassword); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	return &IMAPFetcher{client: c, mailbox: "INBOX"}, nil
}

// FetchNew fetches up to maxCount messages with UIDs beyond the cursor.
// It returns the messages together with the advanced cursor; the caller
// persists the cursor only after the batch is committed.
func (f *IMAPFetcher) FetchNew(ctx context.Context, cursor string, maxCount int) ([]model.Message, string, error) {
	if _, err := f.client.Select(f.mailbox, true); err != nil {
		return nil, cursor, Transient("imap.select", err)
	}

	lastUID := parseUIDCursor(cursor)

	criteria := imap.NewSearchCriteria()
	seqset := new(imap.SeqSet)
	seqset.AddRange(lastUID+1, 0)
	criteria.Uid = seqset

	uids, err := f.client.UidSearch(criteria)
	if err != nil {
		return nil, cursor, Transient("imap.search", err)
	}
	if len(uids) == 0 {
		return nil, cursor, nil
	}
	if len(uids) > maxCount {
		uids = uids[:maxCount]
	}

	fetchSet := new(imap.SeqSet)
	fetchSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- f.client.UidFetch(fetchSet, items, messages)
	}()

	var result []model.Message
	nextUID := lastUID
	for msg := range messages {
		if msg.Uid > nextUID {
			nextUID = msg.Uid
		}
		m, err := f.parseMessage(msg, section)
		if err != nil {
			logrus.Warnf("Failed to parse IMAP message %d: %v", msg.Uid, err)
			continue
		}
		result = append(result, m)
	}

	if err := <-done; err != nil {
		return nil, cursor, Transient("imap.fetch", err)
	}

	return result, formatUIDCursor(nextUID), nil
}

// parseMessage converts an IMAP message into the internal message value.
func (f *IMAPFetcher) parseMessage(msg *imap.Message, section *imap.BodySectionName) (model.Message, error) {
	m := model.Message{
		MessageID:  fmt.Sprintf("imap-%d", msg.Uid),
		ReceivedAt: time.Now(),
	}

	if msg.Envelope != nil {
		m.Subject = msg.Envelope.Subject
		if msg.Envelope.MessageId != "" {
			m.MessageID = msg.Envelope.MessageId
		}
		if !msg.Envelope.Date.IsZero() {
			m.ReceivedAt = msg.Envelope.Date
		}
		if len(msg.Envelope.From) > 0 {
			m.Sender = msg.Envelope.From[0].Address()
		}
		if len(msg.Envelope.To) > 0 {
			m.Recipient = msg.Envelope.To[0].Address()
		}
	}

	body, err := extractPlainText(msg, section)
	if err != nil {
		return m, err
	}
	m.BodyText = body

	return m, nil
}

// extractPlainText pulls the text/plain content out of the message body.
func extractPlainText(msg *imap.Message, section *imap.BodySectionName) (string, error) {
	r := msg.GetBody(section)
	if r == nil {
		return "", nil
	}

	entity, err := message.Read(r)
	if err != nil {
		return "", fmt.Errorf("failed to read message: %w", err)
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", fmt.Errorf("failed to read part: %w", err)
			}

			contentType := p.Header.Get("Content-Type")
			if !strings.Contains(contentType, "text/plain") {
				continue
			}
			content, err := io.ReadAll(p.Body)
			if err != nil {
				return "", fmt.Errorf("failed to read part body: %w", err)
			}
			return strings.TrimSpace(string(content)), nil
		}
		return "", nil
	}

	content, err := io.ReadAll(entity.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read message body: %w", err)
	}
	return strings.TrimSpace(string(content)), nil
}

func parseUIDCursor(cursor string) uint32 {
	if !strings.HasPrefix(cursor, "uid:") {
		return 0
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(cursor, "uid:"), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

func formatUIDCursor(uid uint32) string {
	return "uid:" + strconv.FormatUint(uint64(uid), 10)
}

// Close logs out of the IMAP session.
func (f *IMAPFetcher) Close() error {
	return f.client.Logout()
}
