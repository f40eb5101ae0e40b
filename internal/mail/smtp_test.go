package mail

import (
	"testing"

	"workspaces/internal/config"
)

func TestSplitHostPort(t *testing.T) {
	cases := []struct {
		input string
		host  string
		port  int
	}{
		{"mail.example.org", "mail.example.org", 0},
		{"mail.example.org:587", "mail.example.org", 587},
		{"[2001:db8::1]:465", "2001:db8::1", 465},
		{"[2001:db8::1]", "2001:db8::1", 0},
		{"2001:db8::1", "2001:db8::1", 0},
		{"mail.example.org:nope", "mail.example.org:nope", 0},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			host, port := splitHostPort(tc.input)
			if host != tc.host || port != tc.port {
				t.Errorf("splitHostPort(%q) = (%q, %d), want (%q, %d)",
					tc.input, host, port, tc.host, tc.port)
			}
		})
	}
}

func TestNewSMTPMailer(t *testing.T) {
	t.Run("from falls back to the username", func(t *testing.T) {
		m, err := NewSMTPMailer(config.SMTPConfig{
			Relay:    "mail.example.org:587",
			Username: "workspaces@example.org",
		})
		if err != nil {
			t.Fatalf("NewSMTPMailer() error = %v", err)
		}
		if m.From() != "workspaces@example.org" {
			t.Errorf("From() = %q, want the username", m.From())
		}
	})

	t.Run("explicit from wins", func(t *testing.T) {
		m, err := NewSMTPMailer(config.SMTPConfig{
			Relay:    "mail.example.org",
			Username: "relayuser",
			From:     "workspaces@example.org",
		})
		if err != nil {
			t.Fatalf("NewSMTPMailer() error = %v", err)
		}
		if m.From() != "workspaces@example.org" {
			t.Errorf("From() = %q", m.From())
		}
	})

	t.Run("empty relay", func(t *testing.T) {
		if _, err := NewSMTPMailer(config.SMTPConfig{}); err == nil {
			t.Error("NewSMTPMailer() = nil, want an error")
		}
	})

	t.Run("unknown tls mode", func(t *testing.T) {
		_, err := NewSMTPMailer(config.SMTPConfig{Relay: "mail.example.org", TLS: "tight"})
		if err == nil {
			t.Error("NewSMTPMailer() = nil, want an error")
		}
	})

	t.Run("unknown auth mechanism", func(t *testing.T) {
		_, err := NewSMTPMailer(config.SMTPConfig{Relay: "mail.example.org", Auth: "ntlm"})
		if err == nil {
			t.Error("NewSMTPMailer() = nil, want an error")
		}
	})
}
