package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"budgetwatch/internal/core"
)

func TestMailer_Unconfigured(t *testing.T) {
	m := NewMailer(Config{}, nil)

	sent, err := m.SendEmail(context.Background(), "a@x", "Budget Exceeded", "Budget exceeded for Food")
	if err != nil || sent {
		t.Fatalf("SendEmail = %v, %v; want false, nil", sent, err)
	}
	if m.Enabled() {
		t.Fatal("mailer without host reports enabled")
	}
}

func TestMailer_ConnectionRefused(t *testing.T) {
	// Reserve a port and close it so the dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	m := NewMailer(Config{Host: "127.0.0.1", Port: port, From: "me@x", Timeout: time.Second}, nil)
	sent, err := m.SendEmail(context.Background(), "a@x", "s", "b")
	if sent {
		t.Fatal("reported sent on refused connection")
	}
	if !errors.Is(err, core.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestMailer_RequiresStartTLS(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	// A relay that greets and answers EHLO without advertising STARTTLS.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("220 test ESMTP\r\n"))
		buf := make([]byte, 512)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			line := strings.ToUpper(string(buf[:n]))
			switch {
			case strings.HasPrefix(line, "EHLO"):
				_, _ = conn.Write([]byte("250-test\r\n250 8BITMIME\r\n"))
			case strings.HasPrefix(line, "QUIT"):
				_, _ = conn.Write([]byte("221 bye\r\n"))
				return
			default:
				_, _ = conn.Write([]byte("250 ok\r\n"))
			}
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	m := NewMailer(Config{Host: "127.0.0.1", Port: port, From: "me@x", Timeout: 2 * time.Second}, nil)
	sent, err := m.SendEmail(context.Background(), "a@x", "s", "b")
	if sent || !errors.Is(err, core.ErrTransport) {
		t.Fatalf("SendEmail = %v, %v; want false, ErrTransport", sent, err)
	}
	if !strings.Contains(err.Error(), "STARTTLS") {
		t.Fatalf("error should mention STARTTLS: %v", err)
	}
}

func TestMailer_EmptyRecipient(t *testing.T) {
	m := NewMailer(Config{Host: "smtp.example.com", Port: 587}, nil)
	_, err := m.SendEmail(context.Background(), " ", "s", "b")
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestMailer_BuildMessage(t *testing.T) {
	m := NewMailer(Config{Host: "smtp.example.com", Port: 587, From: "me@example.com"}, nil)
	msg, err := m.buildMessage("a@example.com", "Budget über\r\nBcc: evil@example.com", "line1\nline2")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	if strings.Contains(out, "\r\nBcc: evil@example.com") {
		t.Fatalf("header injection not neutralised:\n%s", out)
	}
	for _, want := range []string{
		"From: <me@example.com>",
		"To: <a@example.com>",
		"Message-ID: <",
		"Date: ",
		"=?UTF-8?",
		"line1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("message missing %q:\n%s", want, out)
		}
	}
}

func TestMailer_InvalidAddress(t *testing.T) {
	m := NewMailer(Config{Host: "smtp.example.com", Port: 587, From: "me@example.com"}, nil)
	sent, err := m.SendEmail(context.Background(), "not an address", "s", "b")
	if sent || !errors.Is(err, core.ErrValidation) {
		t.Fatalf("SendEmail = %v, %v; want false, ErrValidation", sent, err)
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unknown recipient", &textproto.Error{Code: 550, Msg: "no such user"}, true},
		{"bad credentials", fmt.Errorf("SMTP AUTH failed: %w", &textproto.Error{Code: 535, Msg: "authentication failed"}), true},
		{"mailbox busy", &textproto.Error{Code: 450, Msg: "try again later"}, false},
		{"service closing", &textproto.Error{Code: 421, Msg: "closing"}, false},
		{"dial failure", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPermanent(tt.err); got != tt.want {
				t.Errorf("isPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}
