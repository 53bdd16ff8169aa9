package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/canvass/internal/core/domain"
)

const (
	// StreamName is the JetStream stream holding enumeration events.
	StreamName = "CANVASS_ENUMERATION"
	// SubjectAll matches every enumeration event.
	SubjectAll = "canvass.enumeration.>"
)

// ProgressSubject returns the subject for an in-flight progress event.
func ProgressSubject(runID string) string {
	return "canvass.enumeration." + runID + ".progress"
}

// CompletedSubject returns the subject for the final event of a run.
func CompletedSubject(runID string) string {
	return "canvass.enumeration." + runID + ".completed"
}

// RunSubjects matches every event of one run.
func RunSubjects(runID string) string {
	return "canvass.enumeration." + runID + ".>"
}

// SubjectFor picks the subject an event belongs on.
func SubjectFor(p *domain.EnumerationProgress) string {
	if p.Done {
		return CompletedSubject(p.RunID)
	}
	return ProgressSubject(p.RunID)
}

type streamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   streamPublisher
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectAll},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// stream may already exist
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishProgress publishes p on its progress or completed subject.
func (p *Publisher) PublishProgress(ctx context.Context, ev *domain.EnumerationProgress) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectFor(ev), data, nats.Context(ctx))
	return err
}

// Conn returns the underlying connection, nil for publishers built in tests.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("canvass"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
