package engine

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"rulegate/internal/metadata"
)

// BlockedNotification describes a save that validation rejected.
type BlockedNotification struct {
	To        string
	TableName string
	RecordNum int64
	User      *metadata.UserContext
	RuleNames []string // every triggered rule, blocking or not
	Errors    []string // messages from the rules that blocked
}

// Notifier delivers blocked-save notifications. Implementations must be
// safe for concurrent use.
type Notifier interface {
	NotifyBlocked(ctx context.Context, n *BlockedNotification) error
}

// NoopNotifier discards notifications. Used when no SMTP host is configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyBlocked(context.Context, *BlockedNotification) error { return nil }

// SMTPNotifier sends plain-text notification mail over unauthenticated SMTP.
type SMTPNotifier struct {
	Addr string // host:port
	From string
}

func NewSMTPNotifier(addr, from string) *SMTPNotifier {
	return &SMTPNotifier{Addr: addr, From: from}
}

func (s *SMTPNotifier) NotifyBlocked(_ context.Context, n *BlockedNotification) error {
	subject := fmt.Sprintf("[rulegate] Validation Rule Blocked Save: %s", n.TableName)

	var b strings.Builder
	fmt.Fprintf(&b, "A record save was blocked by validation rules.\r\n\r\n")
	fmt.Fprintf(&b, "Table: %s\r\n", n.TableName)
	fmt.Fprintf(&b, "Record #: %d\r\n", n.RecordNum)
	if n.User != nil {
		fmt.Fprintf(&b, "User: %s (%s)\r\n", n.User.Name, n.User.Email)
	}
	fmt.Fprintf(&b, "Date: %s\r\n\r\n", time.Now().UTC().Format("2006-01-02 15:04:05"))
	if len(n.RuleNames) > 0 {
		fmt.Fprintf(&b, "Triggered rules:\r\n")
		for _, name := range n.RuleNames {
			fmt.Fprintf(&b, "  - %s\r\n", name)
		}
	}
	if len(n.Errors) > 0 {
		fmt.Fprintf(&b, "\r\nErrors:\r\n")
		for _, msg := range n.Errors {
			fmt.Fprintf(&b, "  - %s\r\n", msg)
		}
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		s.From, n.To, subject, b.String())

	if err := smtp.SendMail(s.Addr, nil, s.From, []string{n.To}, []byte(msg)); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}
