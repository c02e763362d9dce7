package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Publish sends a message to topic.
//
// QoS 0 is at most once, 1 at least once, 2 exactly once. Retained
// messages are replayed to new subscribers; use them for status, not
// for events.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Publisher is the publishing half of Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// ChangeEvent is the payload published for each committed write.
type ChangeEvent struct {
	ID        string    `json:"id"`
	Table     string    `json:"table"`
	Op        string    `json:"op"`
	Rows      int       `json:"rows"`
	Timestamp time.Time `json:"timestamp"`
}

// ChangePublisher publishes table change events. It satisfies the
// store's change notifier contract.
type ChangePublisher struct {
	pub    Publisher
	topics Topics
	qos    byte

	now   func() time.Time
	newID func() string
}

// NewChangePublisher returns a publisher that sends events through pub
// under topics at the given QoS.
func NewChangePublisher(pub Publisher, topics Topics, qos byte) *ChangePublisher {
	return &ChangePublisher{
		pub:    pub,
		topics: topics,
		qos:    qos,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// PublishChange publishes one ChangeEvent to <prefix>/tables/<table>/<op>.
func (p *ChangePublisher) PublishChange(table, op string, rows int) error {
	event := ChangeEvent{
		ID:        p.newID(),
		Table:     table,
		Op:        op,
		Rows:      rows,
		Timestamp: p.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: encoding event: %w", ErrPublishFailed, err)
	}
	return p.pub.Publish(p.topics.TableChange(table, op), payload, p.qos, false)
}
