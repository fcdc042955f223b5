// Package notify implements the optional HTML digest notifier: it batches
// alert-worthy records over an interval and emails a summary, the way the
// teacher's alerter paired a periodic evaluation loop with an SMTP
// notifier. AI-assisted analysis and the gRPC sidecar are dropped — nothing
// in this spec calls for cross-process text summarization — but the
// markdown-to-HTML rendering and smtp.SendMail delivery are kept.
package notify

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/gomarkdown/markdown"

	"icsdissect/internal/record"
)

// SMTPConfig holds the mail relay settings for Notifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Notifier batches alert records and periodically emails an HTML digest.
type Notifier struct {
	cfg      SMTPConfig
	auth     smtp.Auth
	interval time.Duration

	mu      sync.Mutex
	pending []string

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Notifier that flushes its pending digest every interval.
func New(cfg SMTPConfig, interval time.Duration) *Notifier {
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	return &Notifier{
		cfg:      cfg,
		auth:     auth,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Alert records one line of alert text, markdown-formatted, for inclusion
// in the next digest.
func (n *Notifier) Alert(r *record.UnifiedRecord, reason string) {
	line := fmt.Sprintf("* `%s` **%s** %s -> %s: %s", r.Timestamp, r.Protocol, r.SIP, r.DIP, reason)
	n.mu.Lock()
	n.pending = append(n.pending, line)
	n.mu.Unlock()
}

// Start launches the periodic digest loop.
func (n *Notifier) Start() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(n.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n.flush()
			case <-n.stopCh:
				return
			}
		}
	}()
}

// Stop ends the digest loop and sends any remaining pending alerts.
func (n *Notifier) Stop() {
	close(n.stopCh)
	n.wg.Wait()
	n.flush()
}

func (n *Notifier) flush() {
	n.mu.Lock()
	lines := n.pending
	n.pending = nil
	n.mu.Unlock()

	if len(lines) == 0 {
		return
	}

	md := []byte("# ICS Dissector Alert Digest\n\n" + strings.Join(lines, "\n"))
	html := markdown.ToHTML(md, nil, nil)

	subject := fmt.Sprintf("ICS Dissector Alert Digest (%d event(s))", len(lines))
	if err := n.send(subject, string(html)); err != nil {
		log.Printf("notify: failed to send digest: %v", err)
		return
	}
	log.Printf("notify: digest with %d alert(s) sent", len(lines))
}

func (n *Notifier) send(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	recipients := strings.Split(n.cfg.To, ",")

	msg := []byte("To: " + n.cfg.To + "\r\n" +
		"From: " + n.cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		body)

	if err := smtp.SendMail(addr, n.auth, n.cfg.From, recipients, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
