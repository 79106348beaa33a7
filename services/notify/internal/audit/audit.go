// Package audit turns auth events from the bus into an audit log.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/diagnosis/kabataan-portal/pkg/events"
	"github.com/diagnosis/kabataan-portal/pkg/metrics"
)

var ErrUnknownSubject = errors.New("unknown event subject")

type Recorder struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Recorder {
	return &Recorder{log: log}
}

// Handle decodes one message and writes a single audit line for it.
// Ineligible officer logins are logged at warn level.
func (r *Recorder) Handle(msg *events.Message) error {
	level, attrs, err := decode(msg)
	if err != nil {
		metrics.EventsConsumedTotal.WithLabelValues(msg.Subject, "rejected").Inc()
		return err
	}
	metrics.EventsConsumedTotal.WithLabelValues(msg.Subject, "ok").Inc()

	args := append([]any{"subject", msg.Subject, "received_at", msg.ReceivedAt}, attrs...)
	r.log.Log(context.Background(), level, "Auth event", args...)
	return nil
}

// Subscribe attaches the recorder to every auth subject. Replicas share the
// queue so each event is recorded once.
func (r *Recorder) Subscribe(sub events.Subscriber, queue string) error {
	return sub.QueueSubscribe(events.AllAuth, queue, func(msg *events.Message) {
		if err := r.Handle(msg); err != nil {
			r.log.Error("Failed to record auth event", "subject", msg.Subject, "error", err)
		}
	})
}

func decode(msg *events.Message) (slog.Level, []any, error) {
	switch msg.Subject {
	case events.CodeIssued:
		var e events.CodeIssuedEvent
		if err := unmarshal(msg, &e); err != nil {
			return 0, nil, err
		}
		return slog.LevelInfo, []any{"identity", e.Identity, "purpose", e.Purpose, "delivered", e.Delivered, "expires_at", e.ExpiresAt}, nil

	case events.AccountVerified:
		var e events.AccountVerifiedEvent
		if err := unmarshal(msg, &e); err != nil {
			return 0, nil, err
		}
		return slog.LevelInfo, []any{"identity", e.Identity, "class", e.Class, "verified_at", e.VerifiedAt}, nil

	case events.OfficerIneligible:
		var e events.OfficerIneligibleEvent
		if err := unmarshal(msg, &e); err != nil {
			return 0, nil, err
		}
		return slog.LevelWarn, []any{"identity", e.Identity, "reasons", e.Reasons, "at", e.At}, nil

	case events.SessionEstablished:
		var e events.SessionEstablishedEvent
		if err := unmarshal(msg, &e); err != nil {
			return 0, nil, err
		}
		return slog.LevelInfo, []any{"identity", e.Identity, "class", e.Class, "session_id", e.SessionID, "at", e.At}, nil

	case events.PasswordReset:
		var e events.PasswordResetEvent
		if err := unmarshal(msg, &e); err != nil {
			return 0, nil, err
		}
		return slog.LevelInfo, []any{"identity", e.Identity, "class", e.Class, "at", e.At}, nil
	}
	return 0, nil, fmt.Errorf("%w: %s", ErrUnknownSubject, msg.Subject)
}

func unmarshal(msg *events.Message, dst any) error {
	if err := json.Unmarshal(msg.Data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", msg.Subject, err)
	}
	return nil
}
