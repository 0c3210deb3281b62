// Package email delivers event notifications over SMTP. There is no email
// library in use elsewhere; net/smtp covers the single plain-text message
// this provider sends.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"sort"
	"strings"

	"github.com/exportflowlabs/exportflow/internal/config"
	"github.com/exportflowlabs/exportflow/internal/notify/domain"
)

type Provider struct {
	cfg config.NotifyConfig
}

func New(cfg config.NotifyConfig) *Provider {
	return &Provider{cfg: cfg}
}

func (p *Provider) Name() string { return "email" }

func (p *Provider) Send(ctx context.Context, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", p.cfg.SMTPHost, p.cfg.SMTPPort)
	var auth smtp.Auth
	if p.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", p.cfg.SMTPUser, p.cfg.SMTPPass, p.cfg.SMTPHost)
	}

	msg := buildMessage(p.cfg.From, p.cfg.To, n)
	return smtp.SendMail(addr, auth, p.cfg.From, []string{p.cfg.To}, msg)
}

func buildMessage(from, to string, n domain.Notification) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: [exportflow] %s\r\n", n.EventType)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")

	fmt.Fprintf(&b, "Event %s for export %s\r\n\r\n", n.EventType, n.ExportID)

	keys := make([]string, 0, len(n.Data))
	for k := range n.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\r\n", k, n.Data[k])
	}
	return []byte(b.String())
}
