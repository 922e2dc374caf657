// Package countevents publishes thread comment count changes on NATS.
package countevents

import (
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/threadkit/internal/thread"
)

// SubjectPrefix is followed by the post id.
const SubjectPrefix = "comments.count_updated."

// Subject returns the subject count updates of postID are published on.
func Subject(postID string) string { return SubjectPrefix + postID }

// Event is the payload sent on SubjectPrefix subjects.
type Event struct {
	EventID    string    `json:"event_id"`
	PostID     string    `json:"post_id"`
	Count      int       `json:"count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher forwards count updates to NATS. It implements
// thread.CountListener. The zero value and a nil pointer are no-op stubs.
type Publisher struct {
	publish func(subject string, data []byte) error
	log     *zap.Logger
}

var _ thread.CountListener = (*Publisher)(nil)

// New publishes on core NATS. Pass nc=nil to get a no-op stub.
func New(nc *nats.Conn, log *zap.Logger) *Publisher {
	p := &Publisher{log: orNop(log)}
	if nc != nil {
		p.publish = nc.Publish
	}
	return p
}

// NewJetStream publishes asynchronously through JetStream so updates are
// persisted by a stream bound to SubjectPrefix.
func NewJetStream(js nats.JetStreamContext, log *zap.Logger) *Publisher {
	p := &Publisher{log: orNop(log)}
	if js != nil {
		p.publish = func(subject string, data []byte) error {
			_, err := js.PublishAsync(subject, data)
			return err
		}
	}
	return p
}

// CommentCountUpdated publishes u fire-and-forget. Failures are logged and
// never reach the store.
func (p *Publisher) CommentCountUpdated(u thread.CountUpdate) {
	if p == nil || p.publish == nil {
		return
	}
	data, err := json.Marshal(Event{
		EventID:    uuid.NewString(),
		PostID:     u.PostID,
		Count:      u.Count,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		p.log.Warn("countevents: marshal failed", zap.String("post_id", u.PostID), zap.Error(err))
		return
	}
	if err := p.publish(Subject(u.PostID), data); err != nil {
		p.log.Warn("countevents: publish failed", zap.String("post_id", u.PostID), zap.Error(err))
	}
}

// Subscribe delivers the count updates of postID ("*" for every post) to fn.
// Malformed payloads are logged and skipped.
func Subscribe(nc *nats.Conn, postID string, fn func(thread.CountUpdate), log *zap.Logger) (*nats.Subscription, error) {
	log = orNop(log)
	return nc.Subscribe(Subject(postID), func(m *nats.Msg) {
		u, err := Decode(m.Data)
		if err != nil {
			log.Warn("countevents: bad payload", zap.String("subject", m.Subject), zap.Error(err))
			return
		}
		fn(u)
	})
}

// Decode parses an Event payload into a CountUpdate.
func Decode(data []byte) (thread.CountUpdate, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return thread.CountUpdate{}, err
	}
	return thread.CountUpdate{PostID: ev.PostID, Count: ev.Count}, nil
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
