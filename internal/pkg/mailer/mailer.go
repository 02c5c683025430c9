// Package mailer is the boundary to the notification transport. The core
// hands over render-and-send jobs; template rendering and actual delivery are
// the transport's problem. The SMTP implementation here is what production
// runs against; tests substitute the Dispatcher interface.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Job is one render-and-send request: which template, for whom, with which
// substitution variables.
type Job struct {
	ID          string
	TemplateKey string
	Recipient   string
	Variables   map[string]string
}

// Dispatcher delivers render jobs to the transport. Implementations must
// honor the context deadline; a timed-out send is an error the caller records
// as a dispatch failure.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// SMTPConfig holds configuration for the SMTP transport.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	FromEmail string
	UseTLS    bool
	// SendTimeout bounds one delivery when the caller's context carries no
	// deadline of its own.
	SendTimeout time.Duration
}

// SMTPDispatcher implements Dispatcher over SMTP.
type SMTPDispatcher struct {
	config SMTPConfig
	logger zerolog.Logger
}

// NewSMTPDispatcher creates a new SMTP-backed dispatcher.
func NewSMTPDispatcher(config SMTPConfig, logger zerolog.Logger) *SMTPDispatcher {
	if config.SendTimeout <= 0 {
		config.SendTimeout = 10 * time.Second
	}
	return &SMTPDispatcher{config: config, logger: logger}
}

// Dispatch sends one job. Without SMTP credentials configured it logs the job
// and reports success, which keeps development environments mail-free.
func (d *SMTPDispatcher) Dispatch(ctx context.Context, job Job) error {
	if d.config.Username == "" || d.config.Password == "" {
		d.logger.Warn().
			Str("jobId", job.ID).
			Str("templateKey", job.TemplateKey).
			Str("recipient", job.Recipient).
			Msg("SMTP credentials not configured - notification logged instead of sent")
		return nil
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.SendTimeout)
		defer cancel()
	}

	if err := d.send(ctx, job); err != nil {
		d.logger.Error().Err(err).
			Str("jobId", job.ID).
			Str("templateKey", job.TemplateKey).
			Str("recipient", job.Recipient).
			Msg("Failed to deliver notification job")
		return err
	}
	return nil
}

func (d *SMTPDispatcher) send(ctx context.Context, job Job) error {
	addr := d.config.Host + ":" + strconv.Itoa(d.config.Port)

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if d.config.UseTLS {
		conn = tls.Client(conn, &tls.Config{ServerName: d.config.Host})
	}

	client, err := smtp.NewClient(conn, d.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Quit()

	auth := smtp.PlainAuth("", d.config.Username, d.config.Password, d.config.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}

	if err := client.Mail(d.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(job.Recipient); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err := w.Write([]byte(d.message(job))); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return nil
}

// message builds the transport envelope. The template key and variables ride
// in headers for the downstream renderer; the plain-text body is a fallback.
func (d *SMTPDispatcher) message(job Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", d.config.FromName, d.config.FromEmail)
	fmt.Fprintf(&b, "To: %s\r\n", job.Recipient)
	fmt.Fprintf(&b, "Subject: [%s]\r\n", job.TemplateKey)
	fmt.Fprintf(&b, "X-Job-ID: %s\r\n", job.ID)
	fmt.Fprintf(&b, "X-Template-Key: %s\r\n", job.TemplateKey)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")

	keys := make([]string, 0, len(job.Variables))
	for k := range job.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, job.Variables[k])
	}
	return b.String()
}
