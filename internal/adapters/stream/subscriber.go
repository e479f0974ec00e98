package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/okian/jackcount/internal/domain/model"
	"github.com/okian/jackcount/internal/domain/types"
	"github.com/okian/jackcount/pkg/logger"
	"github.com/okian/jackcount/pkg/metrics"
)

const drainPollInterval = 10 * time.Millisecond

// Ingestor accepts decoded frames. duplicate is true when the frame id was
// already seen.
type Ingestor interface {
	Enqueue(ctx context.Context, f model.Frame) (duplicate bool, err error)
}

// Conn is the part of *nats.Conn the subscriber needs.
type Conn interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// DecodeFrame parses a JSON frame message.
func DecodeFrame(data []byte) (model.Frame, error) {
	var req types.FrameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return model.Frame{}, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if req.SessionID == "" {
		return model.Frame{}, ErrMissingSession
	}
	return req.Frame(req.SessionID), nil
}

// Subscriber feeds frames from a NATS subject into an Ingestor.
type Subscriber struct {
	conn     Conn
	subject  string
	ingestor Ingestor
	logger   logger.Logger

	mu  sync.Mutex
	sub *nats.Subscription
	ctx context.Context
}

// NewSubscriber creates a subscriber for subject.
func NewSubscriber(conn Conn, subject string, ingestor Ingestor) *Subscriber {
	return &Subscriber{
		conn:     conn,
		subject:  subject,
		ingestor: ingestor,
		logger:   logger.Get().Named("nats-subscriber"),
		ctx:      context.Background(),
	}
}

// Start subscribes. Frames are ingested with ctx's values but not its
// cancellation, so messages drained by Stop still reach the ingestor.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return nil
	}
	s.ctx = context.WithoutCancel(ctx)
	sub, err := s.conn.Subscribe(s.subject, s.HandleMessage)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	s.sub = sub
	s.logger.Info(ctx, "subscribed", logger.String("subject", s.subject))
	return nil
}

// Stop drains the subscription and waits until every pending message has
// been handled or ctx is done.
func (s *Subscriber) Stop(ctx context.Context) error {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	if sub == nil {
		return nil
	}

	if err := sub.Drain(); err != nil {
		return fmt.Errorf("drain %s: %w", s.subject, err)
	}

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for sub.IsValid() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("drain %s: %w", s.subject, ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

// HandleMessage decodes and ingests one message. Bad messages are counted and
// logged, never fatal.
func (s *Subscriber) HandleMessage(msg *nats.Msg) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	metrics.RecordStreamMessage("in")

	f, err := DecodeFrame(msg.Data)
	if err != nil {
		reason := "decode"
		if errors.Is(err, ErrMissingSession) {
			reason = "missing_session"
		}
		metrics.RecordStreamError("in", reason)
		s.logger.Warn(ctx, "dropping frame message", logger.String("subject", msg.Subject), logger.Error(err))
		return
	}

	if _, err := s.ingestor.Enqueue(ctx, f); err != nil {
		metrics.RecordStreamError("in", "ingest")
		s.logger.Warn(ctx, "frame not ingested",
			logger.String("session_id", f.SessionID),
			logger.String("frame_id", f.FrameID),
			logger.Error(err),
		)
	}
}
