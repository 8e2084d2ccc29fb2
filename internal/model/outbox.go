package model

import "time"

// OutboxEvent is a row in the transactional outbox; Debezium relays it to
// the Kafka topic in the topic column.
type OutboxEvent struct {
	ID          int64     `db:"id"`
	Aggregate   string    `db:"aggregate"`    // e.g. "campaign_contact"
	AggregateID string    `db:"aggregate_id"` // send ULID
	Topic       string    `db:"topic"`
	Payload     []byte    `db:"payload"`
	CreatedAt   time.Time `db:"created_at"`
}
