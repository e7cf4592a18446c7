package kafka

import (
	"encoding/json"
	"time"
)

// Topics для Kafka.
const (
	TopicOrderEvents     = "ordercore.order.events"
	TopicDeadLetterQueue = "ordercore.dlq"
)

// Kafka headers для retry-логики downstream-потребителей.
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// EventEnvelope — конверт, в котором outbox-сообщения публикуются в Kafka.
// Payload переносится как есть, без повторной сериализации.
type EventEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}
