package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"smartmailer/internal/config"
	"smartmailer/internal/model"
)

// GmailFetcher implements MailboxFetcher using the Gmail API. The
// cursor is the unix timestamp of the newest committed fetch window.
type GmailFetcher struct {
	service   *gmail.Service
	userEmail string
}

// GmailSender implements ReplySender using the Gmail API send scope.
type GmailSender struct {
	service   *gmail.Service
	userEmail string
	fromName  string
}

func newGmailService(ctx context.Context, cfg *config.MailboxConfig, scopes ...string) (*gmail.Service, error) {
	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	tokenSource := oauth2Config.TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return service, nil
}

// NewGmailFetcher creates a Gmail API fetcher with readonly scope.
func NewGmailFetcher(cfg *config.MailboxConfig) (*GmailFetcher, error) {
	service, err := newGmailService(context.Background(), cfg, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, err
	}
	return &GmailFetcher{service: service, userEmail: cfg.UserEmail}, nil
}

// NewGmailSender creates a Gmail API sender with send scope.
func NewGmailSender(cfg *config.MailboxConfig, fromName string) (*GmailSender, error) {
	service, err := newGmailService(context.Background(), cfg, gmail.GmailSendScope)
	if err != nil {
		return nil, err
	}
	return &GmailSender{service: service, userEmail: cfg.UserEmail, fromName: fromName}, nil
}

// FetchNew lists messages received after the cursor's timestamp
// boundary, up to maxCount, and returns the advanced cursor. The
// listing is newest-first, so when the backlog exceeds maxCount the
// cursor carries the next page token and the boundary stays put until
// every older page has been drained; moving the boundary off a
// truncated listing would hide the unfetched remainder behind `after:`
// permanently.
func (f *GmailFetcher) FetchNew(ctx context.Context, cursor string, maxCount int) ([]model.Message, string, error) {
	cur := parseGmailCursor(cursor)
	query := fmt.Sprintf("after:%d", cur.since.Unix())

	call := f.service.Users.Messages.List(f.userEmail).Q(query).MaxResults(int64(maxCount)).Context(ctx)
	if cur.pageToken != "" {
		call = call.PageToken(cur.pageToken)
	}
	response, err := call.Do()
	if err != nil {
		return nil, cursor, classifyGmailError("gmail.list", err)
	}

	var result []model.Message
	pending := cur.pendingMax
	for _, msg := range response.Messages {
		full, err := f.service.Users.Messages.Get(f.userEmail, msg.Id).Format("full").Context(ctx).Do()
		if err != nil {
			logrus.Warnf("Failed to get message %s: %v", msg.Id, err)
			continue
		}

		m := f.parseMessage(full)
		if m.ReceivedAt.After(pending) {
			pending = m.ReceivedAt
		}
		result = append(result, m)
	}

	next := gmailCursor{since: cur.since, pageToken: response.NextPageToken, pendingMax: pending}
	if response.NextPageToken == "" {
		// Last page: commit the newest timestamp seen across the pages.
		next = gmailCursor{since: cur.since}
		if !pending.IsZero() {
			next.since = pending
		}
	}

	return result, next.String(), nil
}

// parseMessage converts a Gmail API message into the internal value.
func (f *GmailFetcher) parseMessage(msg *gmail.Message) model.Message {
	m := model.Message{
		MessageID:  msg.Id,
		ReceivedAt: time.UnixMilli(msg.InternalDate),
	}

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Subject":
			m.Subject = header.Value
		case "From":
			m.Sender = parseAddress(header.Value)
		case "To":
			m.Recipient = parseAddress(header.Value)
		}
	}

	m.BodyText = extractGmailText(msg.Payload)
	return m
}

// extractGmailText recursively collects text/plain body parts.
func extractGmailText(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}

	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	for _, sub := range part.Parts {
		if text := extractGmailText(sub); text != "" {
			return text
		}
	}
	return ""
}

// parseAddress strips an optional display name from an address header.
func parseAddress(header string) string {
	if start := strings.LastIndex(header, "<"); start >= 0 {
		if end := strings.LastIndex(header, ">"); end > start {
			return strings.TrimSpace(header[start+1 : end])
		}
	}
	return strings.TrimSpace(header)
}

// Close is a no-op; the Gmail API client holds no connection.
func (f *GmailFetcher) Close() error {
	return nil
}

// Send delivers an HTML reply through the Gmail API.
func (s *GmailSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s <%s>\r\n", s.fromName, s.userEmail))
	b.WriteString(fmt.Sprintf("To: %s\r\n", to))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)

	message := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(b.String())),
	}

	if _, err := s.service.Users.Messages.Send(s.userEmail, message).Context(ctx).Do(); err != nil {
		return classifyGmailError("gmail.send", err)
	}
	return nil
}

// Close is a no-op; the Gmail API client holds no connection.
func (s *GmailSender) Close() error {
	return nil
}

// classifyGmailError tags a Gmail API failure as transient or permanent.
// Rate limits, quota errors and server errors are retryable; auth and
// request validation errors are not.
func classifyGmailError(op string, err error) error {
	s := strings.ToLower(err.Error())

	if strings.Contains(s, "429") || strings.Contains(s, "quota") ||
		strings.Contains(s, "rate limit") || strings.Contains(s, "too many requests") {
		return Transient(op, err)
	}

	if strings.Contains(s, "401") || strings.Contains(s, "unauthorized") ||
		strings.Contains(s, "invalid_grant") || strings.Contains(s, "403") ||
		strings.Contains(s, "forbidden") || strings.Contains(s, "400") ||
		strings.Contains(s, "invalid") {
		return Permanent(op, err)
	}

	return Transient(op, err)
}

// gmailCursor is the fetch position: the committed timestamp boundary
// plus, while a multi-page backlog is being drained, the next page
// token and the newest timestamp observed so far across those pages.
type gmailCursor struct {
	since      time.Time
	pageToken  string
	pendingMax time.Time
}

func parseGmailCursor(cursor string) gmailCursor {
	// Fresh deployment: start with the last 24 hours of backlog.
	cur := gmailCursor{since: time.Now().Add(-24 * time.Hour)}

	for _, part := range strings.Split(cursor, ";") {
		switch {
		case strings.HasPrefix(part, "ts:"):
			if n, err := strconv.ParseInt(strings.TrimPrefix(part, "ts:"), 10, 64); err == nil {
				cur.since = time.Unix(n, 0)
			}
		case strings.HasPrefix(part, "pt:"):
			cur.pageToken = strings.TrimPrefix(part, "pt:")
		case strings.HasPrefix(part, "max:"):
			if n, err := strconv.ParseInt(strings.TrimPrefix(part, "max:"), 10, 64); err == nil {
				cur.pendingMax = time.Unix(n, 0)
			}
		}
	}
	return cur
}

func (c gmailCursor) String() string {
	s := "ts:" + strconv.FormatInt(c.since.Unix(), 10)
	if c.pageToken != "" {
		s += ";pt:" + c.pageToken
		if !c.pendingMax.IsZero() {
			s += ";max:" + strconv.FormatInt(c.pendingMax.Unix(), 10)
		}
	}
	return s
}
