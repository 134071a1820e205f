package notify

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/promo-sweeper/internal/core"
)

type capturedMail struct {
	from string
	to   []string
	data string
}

type captureBackend struct {
	mu       sync.Mutex
	messages []capturedMail
	reject   string
}

func (b *captureBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &captureSession{backend: b}, nil
}

func (b *captureBackend) received() []capturedMail {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]capturedMail(nil), b.messages...)
}

type captureSession struct {
	backend *captureBackend
	current capturedMail
}

func (s *captureSession) Reset() { s.current = capturedMail{} }

func (s *captureSession) Logout() error { return nil }

func (s *captureSession) Mail(from string, _ *smtp.MailOptions) error {
	s.current.from = from
	return nil
}

func (s *captureSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	if to == s.backend.reject {
		return &smtp.SMTPError{Code: 550, Message: "mailbox unavailable"}
	}
	s.current.to = append(s.current.to, to)
	return nil
}

func (s *captureSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.current.data = string(data)
	s.backend.mu.Lock()
	s.backend.messages = append(s.backend.messages, s.current)
	s.backend.mu.Unlock()
	return nil
}

func startServer(t *testing.T, backend *captureBackend, tlsConfig *tls.Config) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := smtp.NewServer(backend)
	srv.Domain = "localhost"
	srv.TLSConfig = tlsConfig
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })
	return ln.Addr().String()
}

// selfSignedTLS returns a server config with a certificate for 127.0.0.1 and
// a client config that trusts it
func selfSignedTLS(t *testing.T) (*tls.Config, *tls.Config) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	pool.AddCert(cert)
	server := &tls.Config{Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}}}
	return server, &tls.Config{RootCAs: pool}
}

func flaggedDecisions() []*core.DecisionResult {
	return []*core.DecisionResult{
		{
			MessageID:  "m1",
			Sender:     "offers@bank-example.in",
			Label:      core.LabelPromotional,
			Confidence: 91.2,
			Tier:       core.TierHigh,
			Decision:   core.DecisionFlagged,
			Reason:     "Protected entity: india/banking",
		},
		{
			MessageID:  "m2",
			Sender:     "news@shop-example.com",
			Label:      core.LabelPromotional,
			Confidence: 78,
			Tier:       core.TierMedium,
			Decision:   core.DecisionFlagged,
			Reason:     "Medium confidence\nneeds review",
		},
	}
}

func TestNotifyFlaggedSendsDigest(t *testing.T) {
	backend := &captureBackend{}
	addr := startServer(t, backend, nil)

	n := NewSMTPNotifier(addr, "", "", "sweeper@example.com", []string{"me@example.com"}, false, nil)
	require.NoError(t, n.NotifyFlagged(context.Background(), "20240301-120000", flaggedDecisions()))

	msgs := backend.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, "sweeper@example.com", msgs[0].from)
	assert.Equal(t, []string{"me@example.com"}, msgs[0].to)
	assert.Contains(t, msgs[0].data, "Subject: [promo-sweeper] 2 message(s) need review (session 20240301-120000)")
	assert.Contains(t, msgs[0].data, "offers@bank-example.in")
	assert.Contains(t, msgs[0].data, "Medium confidence needs review")
}

func TestNotifyFlaggedSkipsRejectedRecipient(t *testing.T) {
	backend := &captureBackend{reject: "gone@example.com"}
	addr := startServer(t, backend, nil)

	n := NewSMTPNotifier(addr, "", "", "sweeper@example.com",
		[]string{"gone@example.com", "me@example.com"}, false, nil)
	require.NoError(t, n.NotifyFlagged(context.Background(), "s", flaggedDecisions()))

	msgs := backend.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"me@example.com"}, msgs[0].to)

	n = NewSMTPNotifier(addr, "", "", "sweeper@example.com", []string{"gone@example.com"}, false, nil)
	assert.Error(t, n.NotifyFlagged(context.Background(), "s", flaggedDecisions()))
}

func TestNotifyFlaggedNothingToSend(t *testing.T) {
	n := NewSMTPNotifier("127.0.0.1:1", "", "", "a@b", nil, false, nil)
	assert.NoError(t, n.NotifyFlagged(context.Background(), "s", nil))
	assert.Error(t, n.NotifyFlagged(context.Background(), "s", flaggedDecisions()))
}

func TestNotifyFlaggedConnectionError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	n := NewSMTPNotifier(addr, "", "", "a@b", []string{"c@d"}, false, nil)
	err = n.NotifyFlagged(context.Background(), "s", flaggedDecisions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestNotifyFlaggedUpgradesToTLS(t *testing.T) {
	serverTLS, clientTLS := selfSignedTLS(t)
	backend := &captureBackend{}
	addr := startServer(t, backend, serverTLS)

	n := NewSMTPNotifier(addr, "", "", "sweeper@example.com", []string{"me@example.com"}, true, nil)
	n.tlsConfig = clientTLS
	require.NoError(t, n.NotifyFlagged(context.Background(), "tls-session", flaggedDecisions()))

	msgs := backend.received()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].data, "(session tls-session)")
}

func TestNotifyFlaggedStartTLSRequiresServerSupport(t *testing.T) {
	backend := &captureBackend{}
	addr := startServer(t, backend, nil)

	n := NewSMTPNotifier(addr, "", "", "sweeper@example.com", []string{"me@example.com"}, true, nil)
	err := n.NotifyFlagged(context.Background(), "s", flaggedDecisions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STARTTLS failed")
	assert.Empty(t, backend.received())
}

func TestNotifyFlaggedRejectsUntrustedCertificate(t *testing.T) {
	serverTLS, _ := selfSignedTLS(t)
	addr := startServer(t, &captureBackend{}, serverTLS)

	n := NewSMTPNotifier(addr, "", "", "sweeper@example.com", []string{"me@example.com"}, true, nil)
	assert.Error(t, n.NotifyFlagged(context.Background(), "s", flaggedDecisions()))
}

func TestBuildDigest(t *testing.T) {
	date := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := string(BuildDigest("from@x", []string{"a@x", "b@x"}, "sid", flaggedDecisions(), date))

	header, body, ok := strings.Cut(msg, "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, header, "To: a@x, b@x")
	assert.Contains(t, header, "Date: Fri, 01 Mar 2024 12:00:00 +0000")
	assert.Contains(t, header, "Content-Type: text/plain; charset=utf-8")
	assert.Contains(t, body, "1. m1")
	assert.Contains(t, body, "2. m2")
	assert.Contains(t, body, "PROMOTIONAL (91.2%, HIGH)")
}

func TestNopNotifier(t *testing.T) {
	var n core.ReviewNotifier = NopNotifier{}
	assert.NoError(t, n.NotifyFlagged(context.Background(), "s", flaggedDecisions()))
}
