package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okian/jackcount/internal/domain/types"
	"github.com/okian/jackcount/pkg/metrics"
)

// PublishConn is the part of *nats.Conn the publisher needs.
type PublishConn interface {
	Publish(subject string, data []byte) error
}

// Publisher emits frame results on <prefix>.<session_id>.
type Publisher struct {
	conn   PublishConn
	prefix string
}

// NewPublisher creates a result publisher.
func NewPublisher(conn PublishConn, prefix string) *Publisher {
	return &Publisher{conn: conn, prefix: strings.TrimSuffix(prefix, ".")}
}

// Subject returns the subject results of sessionID are published on.
func (p *Publisher) Subject(sessionID string) string {
	return p.prefix + "." + subjectToken(sessionID)
}

// Publish sends r as JSON.
func (p *Publisher) Publish(_ context.Context, r types.FrameResult) error {
	b, err := json.Marshal(r)
	if err != nil {
		metrics.RecordStreamError("out", "encode")
		return fmt.Errorf("encode result: %w", err)
	}
	if err := p.conn.Publish(p.Subject(r.SessionID), b); err != nil {
		metrics.RecordStreamError("out", "publish")
		return fmt.Errorf("publish result: %w", err)
	}
	metrics.RecordStreamMessage("out")
	return nil
}

// subjectToken makes s safe to use as one subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
