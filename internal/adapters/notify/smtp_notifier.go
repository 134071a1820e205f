package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/core"
)

const (
	dialTimeout = 10 * time.Second
	ioTimeout   = 30 * time.Second
)

// SMTPNotifier mails a digest of flagged decisions to the reviewers
type SMTPNotifier struct {
	addr      string
	username  string
	password  string
	from      string
	to        []string
	startTLS  bool
	tlsConfig *tls.Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewSMTPNotifier creates a new SMTP review notifier. With startTLS the
// connection is upgraded before EHLO is repeated; the server must offer
// STARTTLS. Authentication is skipped when username is empty.
func NewSMTPNotifier(addr, username, password, from string, to []string, startTLS bool, logger *zap.Logger) *SMTPNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPNotifier{
		addr:     addr,
		username: username,
		password: password,
		from:     from,
		to:       to,
		startTLS: startTLS,
		logger:   logger,
		now:      time.Now,
	}
}

// NotifyFlagged sends one digest for every flagged decision of a session
func (n *SMTPNotifier) NotifyFlagged(ctx context.Context, sessionID string, flagged []*core.DecisionResult) error {
	if len(flagged) == 0 {
		return nil
	}
	if len(n.to) == 0 {
		return errors.New("no digest recipients configured")
	}

	msg := BuildDigest(n.from, n.to, sessionID, flagged, n.now())
	if err := n.send(ctx, msg); err != nil {
		return err
	}

	n.logger.Info("Sent review digest",
		zap.String("session_id", sessionID),
		zap.Int("flagged", len(flagged)),
		zap.Strings("to", n.to))
	return nil
}

func (n *SMTPNotifier) send(ctx context.Context, msg []byte) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", n.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(ioTimeout)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c, err := n.newClient(conn, hostname)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if n.username != "" {
		if err := c.Auth(sasl.NewPlainClient("", n.username, n.password)); err != nil {
			return fmt.Errorf("AUTH failed: %w", err)
		}
	}

	if err := c.Mail(n.from, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	recipientOK := false
	for _, rcpt := range n.to {
		if err := c.Rcpt(rcpt, nil); err != nil {
			n.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", rcpt),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send digest data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		n.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// newClient greets the server, upgrading to TLS first when configured
func (n *SMTPNotifier) newClient(conn net.Conn, hostname string) (*smtp.Client, error) {
	if !n.startTLS {
		c := smtp.NewClient(conn)
		if err := c.Hello(hostname); err != nil {
			c.Close()
			return nil, fmt.Errorf("EHLO failed: %w", err)
		}
		return c, nil
	}

	cfg := &tls.Config{}
	if n.tlsConfig != nil {
		cfg = n.tlsConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName, _, _ = net.SplitHostPort(n.addr)
	}
	c, err := smtp.NewClientStartTLS(conn, cfg)
	if err != nil {
		return nil, fmt.Errorf("STARTTLS failed: %w", err)
	}
	return c, nil
}

// BuildDigest renders the digest as an RFC 5322 plain text message
func BuildDigest(from string, to []string, sessionID string, flagged []*core.DecisionResult, date time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: [promo-sweeper] %d message(s) need review (session %s)\r\n", len(flagged), sessionID)
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "The following messages were flagged for human review in session %s.\r\n", sessionID)
	b.WriteString("They were not moved to trash.\r\n\r\n")
	for i, d := range flagged {
		fmt.Fprintf(&b, "%d. %s\r\n", i+1, d.MessageID)
		fmt.Fprintf(&b, "   Sender:     %s\r\n", oneLine(d.Sender))
		fmt.Fprintf(&b, "   Label:      %s (%.1f%%, %s)\r\n", d.Label, d.Confidence, d.Tier)
		fmt.Fprintf(&b, "   Reason:     %s\r\n", oneLine(d.Reason))
		b.WriteString("\r\n")
	}
	return b.Bytes()
}

// oneLine keeps header-like values from breaking the layout
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NopNotifier discards digests when notifications are disabled
type NopNotifier struct{}

// NotifyFlagged does nothing
func (NopNotifier) NotifyFlagged(context.Context, string, []*core.DecisionResult) error {
	return nil
}
