package gmail

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	gmailv1 "google.golang.org/api/gmail/v1"

	"github.com/mikey/promo-sweeper/internal/core"
)

const (
	user = "me"

	// DefaultPageSize is the largest page Gmail returns for message lists
	DefaultPageSize = 500

	labelStarred   = "STARRED"
	labelImportant = "IMPORTANT"
)

// Client is a core.MailClient backed by the Gmail API
type Client struct {
	svc      *gmailv1.Service
	pageSize int64
	logger   *zap.Logger
}

// NewClient creates a new Gmail mail client
func NewClient(svc *gmailv1.Service, pageSize int, logger *zap.Logger) *Client {
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		svc:      svc,
		pageSize: int64(pageSize),
		logger:   logger,
	}
}

// List pages through the messages matching query. max <= 0 lists everything.
func (c *Client) List(ctx context.Context, query string, max int) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		call := c.svc.Users.Messages.List(user).Q(query).MaxResults(c.pageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return ids, fmt.Errorf("failed to list messages: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
			if max > 0 && len(ids) >= max {
				return ids, nil
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	c.logger.Debug("Listed messages", zap.String("query", query), zap.Int("count", len(ids)))
	return ids, nil
}

// Fetch retrieves a message with its headers, flags and plain text body
func (c *Client) Fetch(ctx context.Context, id string) (*core.Email, error) {
	msg, err := c.svc.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}

	email := &core.Email{
		EmailMetadata: core.EmailMetadata{ID: msg.Id},
		ReceivedAt:    time.UnixMilli(msg.InternalDate).UTC(),
	}
	for _, l := range msg.LabelIds {
		switch l {
		case labelStarred:
			email.Starred = true
		case labelImportant:
			email.Important = true
		}
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				email.Sender = senderAddress(h.Value)
			case "subject":
				email.Subject = h.Value
			}
		}
		email.Body = messageText(msg.Payload)
	}
	if email.Body == "" {
		email.Body = msg.Snippet
	}
	return email, nil
}

// Trash moves messages to the Gmail trash. Nothing is deleted permanently.
// It returns the ids trashed before any failure, in request order.
func (c *Client) Trash(ctx context.Context, ids []string) ([]string, error) {
	trashed := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return trashed, err
		}
		if _, err := c.svc.Users.Messages.Trash(user, id).Context(ctx).Do(); err != nil {
			return trashed, fmt.Errorf("failed to trash message %s: %w", id, err)
		}
		trashed = append(trashed, id)
	}
	c.logger.Info("Moved messages to trash", zap.Int("count", len(trashed)))
	return trashed, nil
}

// senderAddress returns the bare address of a From header, or the header
// itself when it does not parse
func senderAddress(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil || addr == nil {
		for _, part := range strings.Split(from, ",") {
			if a, e := mail.ParseAddress(strings.TrimSpace(part)); e == nil {
				return strings.ToLower(a.Address)
			}
		}
		return strings.TrimSpace(from)
	}
	return strings.ToLower(addr.Address)
}
