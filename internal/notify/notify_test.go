package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
)

func TestSMTPNotifierSendsMessage(t *testing.T) {
	n, err := NewSMTPNotifier(SMTPSettings{Addr: "mail.example.com:587", User: "bot", Password: "pw", From: "bot@example.com", To: "sales@example.com"})
	if err != nil {
		t.Fatalf("NewSMTPNotifier returned error: %v", err)
	}

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg, gotAuth = addr, to, string(msg), a
		return nil
	}

	err = n.NotifySubmission(context.Background(), Submission{
		ID:         7,
		TenantName: "Acme",
		FormKey:    "contact",
		Locale:     "de",
		Name:       "Eve\nTo: victim@example.com",
		Email:      "visitor@example.com\r\nBcc: spam@example.com",
		Fields:     map[string]string{"message": "Hallo\nWelt", "company": "ACME"},
	})
	if err != nil {
		t.Fatalf("NotifySubmission returned error: %v", err)
	}

	if gotAddr != "mail.example.com:587" || len(gotTo) != 1 || gotTo[0] != "sales@example.com" {
		t.Fatalf("unexpected envelope addr=%s to=%v", gotAddr, gotTo)
	}
	if gotAuth == nil {
		t.Fatal("expected plain auth when user is set")
	}
	if !strings.Contains(gotMsg, "Subject: [Acme] New contact submission") {
		t.Fatalf("missing subject in %q", gotMsg)
	}
	if strings.Contains(gotMsg, "\r\nBcc:") || strings.Contains(gotMsg, "\nTo: victim") {
		t.Fatalf("header injection not neutralised: %q", gotMsg)
	}
	if !strings.Contains(gotMsg, "Reply-To: visitor@example.com  Bcc: spam@example.com\r\n") {
		t.Fatalf("expected flattened reply-to in %q", gotMsg)
	}
	if !strings.Contains(gotMsg, "\r\nName: Eve To: victim@example.com\r\n") ||
		!strings.Contains(gotMsg, "\r\nEmail: visitor@example.com  Bcc: spam@example.com\r\n") {
		t.Fatalf("expected single-line name and email in body: %q", gotMsg)
	}
	if strings.Index(gotMsg, "company: ACME") > strings.Index(gotMsg, "message: Hallo") {
		t.Fatal("expected fields sorted by key")
	}
}

func TestSMTPNotifierPropagatesErrors(t *testing.T) {
	n, err := NewSMTPNotifier(SMTPSettings{Addr: "localhost:25", From: "a@example.com", To: "b@example.com"})
	if err != nil {
		t.Fatalf("NewSMTPNotifier returned error: %v", err)
	}
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	if err := n.NotifySubmission(context.Background(), Submission{FormKey: "contact"}); err == nil {
		t.Fatal("expected send error")
	}
}

func TestNewSMTPNotifierValidates(t *testing.T) {
	if _, err := NewSMTPNotifier(SMTPSettings{From: "a@example.com", To: "b@example.com"}); err == nil {
		t.Fatal("expected missing address error")
	}
	if _, err := NewSMTPNotifier(SMTPSettings{Addr: "localhost:25"}); err == nil {
		t.Fatal("expected missing from/to error")
	}
}

func TestLogNotifierWithoutLogger(t *testing.T) {
	if err := (LogNotifier{}).NotifySubmission(context.Background(), Submission{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
