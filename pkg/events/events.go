package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/diagnosis/kabataan-portal/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

type Subscriber interface {
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type Message struct {
	Subject    string
	Data       []byte
	ReceivedAt time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

// NewNATSEventBus connects to NATS; name identifies the client to the server.
func NewNATSEventBus(url, name string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data any) error {
	payload, err := Encode(data)
	if err != nil {
		return err
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject)

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:    msg.Subject,
			Data:       msg.Data,
			ReceivedAt: time.Now(),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return nil
}

func (n *NATSEventBus) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

// NopBus drops every event. Used when NATS_URL is not configured.
type NopBus struct{}

func (NopBus) Publish(context.Context, string, any) error { return nil }
func (NopBus) Close() error                               { return nil }

func Encode(data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return payload, nil
}

// Subjects
const (
	AllAuth = "auth.>"

	CodeIssued         = "auth.code.issued"
	AccountVerified    = "auth.account.verified"
	OfficerIneligible  = "auth.officer.ineligible"
	SessionEstablished = "auth.session.established"
	PasswordReset      = "auth.password.reset"
)

// Identity fields carry logger.HashIdentity digests, never raw addresses.

type CodeIssuedEvent struct {
	Identity  string    `json:"identity"`
	Purpose   string    `json:"purpose"`
	Delivered bool      `json:"delivered"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AccountVerifiedEvent struct {
	Identity   string    `json:"identity"`
	Class      string    `json:"class"`
	VerifiedAt time.Time `json:"verified_at"`
}

type OfficerIneligibleEvent struct {
	Identity string    `json:"identity"`
	Reasons  []string  `json:"reasons"`
	At       time.Time `json:"at"`
}

type SessionEstablishedEvent struct {
	Identity  string    `json:"identity"`
	Class     string    `json:"class"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}

type PasswordResetEvent struct {
	Identity string    `json:"identity"`
	Class    string    `json:"class"`
	At       time.Time `json:"at"`
}
