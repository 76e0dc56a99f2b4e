// Package mail delivers card share links to card holders. It implements the
// MailSender contract the bulk processor drains email jobs through.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/cardrail/cardrail/card"
	"github.com/cardrail/cardrail/config"
	"github.com/cardrail/cardrail/errors"
	"github.com/cardrail/cardrail/logger"
)

// Sender delivers one card email
type Sender interface {
	SendCardEmail(ctx context.Context, c *card.Card) error
}

// NewSender builds a sender from configuration. DryRun yields a sender that
// logs instead of delivering, which is the development default.
func NewSender(cfg config.MailConfig, log *zap.SugaredLogger) (Sender, error) {
	if cfg.DryRun {
		return &DryRunSender{shareBaseURL: cfg.ShareBaseURL, log: log}, nil
	}
	if cfg.SMTPHost == "" {
		return nil, errors.New("SMTP host is not configured")
	}
	return &SMTPSender{cfg: cfg, log: log}, nil
}

// SMTPSender delivers card emails over SMTP with plain auth
type SMTPSender struct {
	cfg config.MailConfig
	log *zap.SugaredLogger
}

// SendCardEmail sends the holder their share link. The returned error text
// becomes the item's failure reason, so it stays short and descriptive.
func (s *SMTPSender) SendCardEmail(ctx context.Context, c *card.Card) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "send cancelled")
	}
	if c.Email == "" {
		return errors.New("card has no email address")
	}

	msg := buildMessage(s.cfg.FromAddress, c, shareLink(s.cfg.ShareBaseURL, c.Code))

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.FromAddress, []string{c.Email}, msg); err != nil {
		return errors.Wrapf(err, "SMTP delivery to %s failed", c.Email)
	}

	s.log.Debugw("card email sent",
		logger.FieldCardID, c.ID,
		"to", c.Email,
	)
	return nil
}

// DryRunSender logs what would have been sent. Used in development and as
// the safe default until SMTP is configured.
type DryRunSender struct {
	shareBaseURL string
	log          *zap.SugaredLogger
}

func (s *DryRunSender) SendCardEmail(_ context.Context, c *card.Card) error {
	if c.Email == "" {
		return errors.New("card has no email address")
	}
	s.log.Infow("dry run: card email suppressed",
		logger.FieldCardID, c.ID,
		"to", c.Email,
		"link", shareLink(s.shareBaseURL, c.Code),
	)
	return nil
}

// shareLink composes the public card URL embedded in the email
func shareLink(baseURL, code string) string {
	return strings.TrimSuffix(baseURL, "/") + "/c/" + code
}

// buildMessage renders the RFC 5322 message body
func buildMessage(from string, c *card.Card, link string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", c.Email)
	fmt.Fprintf(&b, "Subject: Your digital business card is ready\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Hi %s,\r\n\r\n", c.FullName)
	b.WriteString("Your digital business card is ready to share.\r\n\r\n")
	fmt.Fprintf(&b, "View and share it here: %s\r\n\r\n", link)
	b.WriteString("Add it to your phone's wallet from that page to share it with a tap.\r\n")
	return []byte(b.String())
}
