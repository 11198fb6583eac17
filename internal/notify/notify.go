package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Subject of every report mail
const Subject = "FIX trader report"

// ErrNotificationFailed wraps every delivery failure
var ErrNotificationFailed = errors.New("notification failed")

// Notifier delivers a batch report
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// FormatReport numbers lines from 1 as HTML fragments
func FormatReport(lines []string) string {
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "<br><b>%d</b>. %s", i+1, line)
	}
	return b.String()
}

// LogNotifier writes reports to the log
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, text string) error {
	n.logger.Info("batch report", zap.String("report", text))
	return nil
}

// SMTPConfig holds mail relay settings
type SMTPConfig struct {
	Addr     string
	Host     string
	Username string
	Password string
	From     string
	To       string
}

// SMTPNotifier mails reports as HTML
type SMTPNotifier struct {
	cfg      SMTPConfig
	logger   *zap.Logger
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg SMTPConfig, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, logger: logger, sendMail: smtp.SendMail}
}

// Notify sends text as the HTML body of a report mail
func (n *SMTPNotifier) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	msg := fmt.Sprintf("From: %s\r\n", n.cfg.From)
	msg += fmt.Sprintf("To: %s\r\n", n.cfg.To)
	msg += fmt.Sprintf("Subject: %s\r\n", Subject)
	msg += "MIME-Version: 1.0\r\n"
	msg += "Content-Type: text/html; charset=UTF-8\r\n\r\n"
	msg += text + "\r\n"

	if err := n.sendMail(n.cfg.Addr, auth, n.cfg.From, []string{n.cfg.To}, []byte(msg)); err != nil {
		n.logger.Error("failed to send report", zap.String("to", n.cfg.To), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}
	n.logger.Info("report sent", zap.String("to", n.cfg.To))
	return nil
}
