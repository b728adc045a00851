package delivery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// LogNotifier writes notifications via zap instead of sending them anywhere,
// used as a safe default (§4.7.1).
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, address, subject, body string) (Outcome, string, error) {
	messageID := fingerprintMessage(address, subject, body)
	n.logger.Info("notification", zap.String("address", address), zap.String("subject", subject), zap.String("message_id", messageID))
	return Accepted, messageID, nil
}

func fingerprintMessage(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// SMTPNotifier sends plain-text email via the standard library's net/smtp.
// The spec explicitly places "the concrete email transport" out of scope, and
// no example in the retrieval pack imports a transactional-email SDK, so
// net/smtp is the appropriately minimal placeholder here rather than a
// third-party dependency this repo has no other use for.
type SMTPNotifier struct {
	addr   string
	auth   smtp.Auth
	from   string
	logger *zap.Logger
}

// SMTPConfig configures an SMTPNotifier.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// NewSMTPNotifier builds an SMTPNotifier from cfg.
func NewSMTPNotifier(cfg SMTPConfig, logger *zap.Logger) *SMTPNotifier {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPNotifier{addr: addr, auth: auth, from: cfg.From, logger: logger}
}

func (n *SMTPNotifier) Send(ctx context.Context, address, subject, body string) (Outcome, string, error) {
	msg := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", address, subject, body)

	if err := smtp.SendMail(n.addr, n.auth, n.from, []string{address}, []byte(msg)); err != nil {
		n.logger.Warn("smtp notifier: send failed", zap.String("address", address), zap.Error(err))
		return TransientFailure, "", err
	}

	return Accepted, fingerprintMessage(address, subject, body), nil
}
