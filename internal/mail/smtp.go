package mail

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gomail "github.com/wneessen/go-mail"

	"workspaces/internal/config"
	"workspaces/internal/workspace"
)

// SMTPMailer submits plain-text messages through a configured relay.
type SMTPMailer struct {
	client *gomail.Client
	from   string
}

// NewSMTPMailer builds a mailer from the [smtp] config block. The relay may
// be "host", "host:port", or "[IPv6]:port"; TLS defaults to STARTTLS with
// "wrapper" selecting implicit TLS (port 465 unless given).
func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	host, port := splitHostPort(cfg.Relay)
	if host == "" {
		return nil, fmt.Errorf("smtp relay host is empty")
	}

	opts := []gomail.Option{
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	}

	switch cfg.TLS {
	case "", "starttls":
		opts = append(opts, gomail.WithTLSPortPolicy(gomail.TLSMandatory))
		if port != 0 {
			opts = append(opts, gomail.WithPort(port))
		}
	case "wrapper":
		if port != 0 {
			opts = append(opts, gomail.WithSSL(), gomail.WithPort(port))
		} else {
			opts = append(opts, gomail.WithSSLPort(false))
		}
	default:
		return nil, fmt.Errorf("unknown smtp tls mode: %s", cfg.TLS)
	}

	switch cfg.Auth {
	case "":
		opts = append(opts, gomail.WithSMTPAuth(gomail.SMTPAuthAutoDiscover))
	case "plain":
		opts = append(opts, gomail.WithSMTPAuth(gomail.SMTPAuthPlain))
	case "login":
		opts = append(opts, gomail.WithSMTPAuth(gomail.SMTPAuthLogin))
	default:
		return nil, fmt.Errorf("unknown smtp auth mechanism: %s", cfg.Auth)
	}

	client, err := gomail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	return &SMTPMailer{client: client, from: from}, nil
}

// From returns the sender address for outgoing notifications: the configured
// from address, or the relay username.
func (m *SMTPMailer) From() string { return m.from }

func (m *SMTPMailer) Send(ctx context.Context, from, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return fmt.Errorf("invalid sender address %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("delivering to %s: %w", to, err)
	}
	return nil
}

// splitHostPort parses "host", "host:port", or "[IPv6]:port". A missing or
// unparsable port yields 0.
func splitHostPort(input string) (string, int) {
	if rest, ok := strings.CutPrefix(input, "["); ok {
		if idx := strings.Index(rest, "]:"); idx >= 0 {
			port, err := strconv.Atoi(rest[idx+2:])
			if err != nil {
				return rest[:idx], 0
			}
			return rest[:idx], port
		}
		return strings.TrimSuffix(rest, "]"), 0
	}
	if idx := strings.LastIndex(input, ":"); idx >= 0 {
		if port, err := strconv.Atoi(input[idx+1:]); err == nil {
			return input[:idx], port
		}
	}
	return input, 0
}

// Compile-time check that SMTPMailer implements the Mailer interface.
var _ workspace.Mailer = (*SMTPMailer)(nil)
