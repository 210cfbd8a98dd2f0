package utils

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"taskflow-project/backend/logging"
)

func TestSMTPMailer_Send(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "no-reply@taskflow.local"})

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	m.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		return nil
	}

	if err := m.Send(context.Background(), "ana@example.com", "Your code", "Code: 123456"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "ana@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	msg := string(gotMsg)
	for _, want := range []string{"Subject: Your code", "To: <ana@example.com>", "Code: 123456"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message does not contain %q:\n%s", want, msg)
		}
	}
}

func TestSMTPMailer_BreakerOpensAfterFailures(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "no-reply@taskflow.local"})
	calls := 0
	m.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		calls++
		return errors.New("connection refused")
	}

	for i := 0; i < 6; i++ {
		if err := m.Send(context.Background(), "ana@example.com", "s", "b"); err == nil {
			t.Fatal("expected an error")
		}
	}
	if calls != 4 {
		t.Errorf("relay called %d times, want 4 before the breaker opens", calls)
	}
}

func TestLogMailer_DoesNotLogBody(t *testing.T) {
	hook := test.NewLocal(logging.Logger)
	defer hook.Reset()

	if err := (LogMailer{}).Send(context.Background(), "ana@example.com", "Reset code", "Your verification code is 123456."); err != nil {
		t.Fatalf("Send: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("nothing logged")
	}
	if !strings.Contains(entry.Message, "ana@example.com") || !strings.Contains(entry.Message, "Reset code") {
		t.Errorf("envelope missing from %q", entry.Message)
	}
	if strings.Contains(entry.Message, "123456") {
		t.Errorf("body leaked into log: %q", entry.Message)
	}
}
