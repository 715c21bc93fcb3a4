package mailer

import (
	"context"
	"errors"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrInvalidMessage is returned for messages without a recipient or body.
	ErrInvalidMessage = errors.New("mailer: invalid message")
	// ErrDispatchFailed wraps transport failures.
	ErrDispatchFailed = errors.New("mailer: dispatch failed")
)

// Message is a single outbound email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Validate checks the message has a recipient, a subject and a body.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" || !strings.Contains(m.To, "@") {
		return ErrInvalidMessage
	}
	if strings.TrimSpace(m.Subject) == "" {
		return ErrInvalidMessage
	}
	if m.HTML == "" && m.Text == "" {
		return ErrInvalidMessage
	}
	return nil
}

// Dispatcher sends a message and returns the transport's message id.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, msg Message) (string, error)

// Send calls f.
func (f DispatcherFunc) Send(ctx context.Context, msg Message) (string, error) {
	return f(ctx, msg)
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewMessageID returns a sortable message identifier.
func NewMessageID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
