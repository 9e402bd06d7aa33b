package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Submission 是通知所需的表单提交摘要。
type Submission struct {
	ID         uint
	TenantName string
	FormKey    string
	Locale     string
	Name       string
	Email      string
	Fields     map[string]string
	CreatedAt  time.Time
}

// Notifier 在新的表单提交到达时发出通知。
type Notifier interface {
	NotifySubmission(ctx context.Context, submission Submission) error
}

// LogNotifier 仅记录日志，未配置 SMTP 时使用。
type LogNotifier struct {
	Logger *logrus.Logger
}

// NotifySubmission 写一条 info 日志。
func (n LogNotifier) NotifySubmission(_ context.Context, s Submission) error {
	if n.Logger == nil {
		return nil
	}
	n.Logger.WithFields(logrus.Fields{
		"submission_id": s.ID,
		"tenant":        s.TenantName,
		"form_key":      s.FormKey,
		"locale":        s.Locale,
	}).Info("form submission received")
	return nil
}

// SMTPSettings 描述发信账号。
type SMTPSettings struct {
	Addr     string
	User     string
	Password string
	From     string
	To       string
}

// sendFunc 与 smtp.SendMail 同签名，测试时替换。
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier 通过 SMTP 发送纯文本通知邮件。
type SMTPNotifier struct {
	settings SMTPSettings
	send     sendFunc
}

// NewSMTPNotifier 校验必填项后构造 SMTPNotifier。
func NewSMTPNotifier(settings SMTPSettings) (*SMTPNotifier, error) {
	if strings.TrimSpace(settings.Addr) == "" {
		return nil, eris.New("smtp address is required")
	}
	if strings.TrimSpace(settings.From) == "" || strings.TrimSpace(settings.To) == "" {
		return nil, eris.New("smtp from and notify addresses are required")
	}
	return &SMTPNotifier{settings: settings, send: smtp.SendMail}, nil
}

// NotifySubmission 发送一封包含全部字段的邮件。
func (n *SMTPNotifier) NotifySubmission(ctx context.Context, s Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if n.settings.User != "" {
		host, _, err := net.SplitHostPort(n.settings.Addr)
		if err != nil {
			return eris.Wrap(err, "parse smtp address")
		}
		auth = smtp.PlainAuth("", n.settings.User, n.settings.Password, host)
	}

	msg := buildMessage(n.settings.From, n.settings.To, s)
	if err := n.send(n.settings.Addr, auth, n.settings.From, []string{n.settings.To}, msg); err != nil {
		return eris.Wrap(err, "send notification mail")
	}
	return nil
}

func buildMessage(from, to string, s Submission) []byte {
	subject := fmt.Sprintf("[%s] New %s submission", headerSafe(s.TenantName), headerSafe(s.FormKey))

	var body strings.Builder
	fmt.Fprintf(&body, "Form: %s\r\n", headerSafe(s.FormKey))
	fmt.Fprintf(&body, "Locale: %s\r\n", headerSafe(s.Locale))
	if s.Name != "" {
		fmt.Fprintf(&body, "Name: %s\r\n", headerSafe(s.Name))
	}
	if s.Email != "" {
		fmt.Fprintf(&body, "Email: %s\r\n", headerSafe(s.Email))
	}
	body.WriteString("\r\n")

	keys := make([]string, 0, len(s.Fields))
	for key := range s.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&body, "%s: %s\r\n", key, strings.ReplaceAll(s.Fields[key], "\n", "\r\n  "))
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", headerSafe(from))
	fmt.Fprintf(&msg, "To: %s\r\n", headerSafe(to))
	if s.Email != "" {
		fmt.Fprintf(&msg, "Reply-To: %s\r\n", headerSafe(s.Email))
	}
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(body.String())
	return []byte(msg.String())
}

// headerSafe 去掉换行，用于邮件头以及正文开头的单行字段。
func headerSafe(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}
