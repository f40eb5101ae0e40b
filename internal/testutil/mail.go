package testutil

import (
	"context"
	"fmt"
	"sync"
)

// SentMail records one message delivered through FakeMailer.
type SentMail struct {
	From    string
	To      string
	Subject string
	Body    string
}

// FakeMailer records sent messages instead of delivering them.
type FakeMailer struct {
	mu   sync.Mutex
	Err  error
	sent []SentMail
}

func NewFakeMailer() *FakeMailer {
	return &FakeMailer{}
}

func (m *FakeMailer) Send(_ context.Context, from, to, subject, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMail{From: from, To: to, Subject: subject, Body: body})
	return nil
}

// Sent returns a copy of all recorded messages.
func (m *FakeMailer) Sent() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMail, len(m.sent))
	copy(out, m.sent)
	return out
}

// FakeResolver maps usernames to addresses from a fixed table.
type FakeResolver struct {
	Addresses map[string]string
	Err       error
}

func NewFakeResolver(addresses map[string]string) *FakeResolver {
	return &FakeResolver{Addresses: addresses}
}

func (r *FakeResolver) Lookup(username string) (string, error) {
	if r.Err != nil {
		return "", r.Err
	}
	addr, ok := r.Addresses[username]
	if !ok {
		return "", fmt.Errorf("no address configured for %s", username)
	}
	return addr, nil
}
