package model

import "time"

// Event types emitted by the matching core.
const (
	EventRequestMatched   = "request.matched"
	EventMatchHired       = "match.hired"
	EventPlacementCreated = "placement.created"
)

// OutboxEvent is a pending event row. Rows are inserted in the same
// transaction as the state change they describe, then picked up by the
// dispatcher, so an event is recorded exactly once per state change and
// delivered at least once.
type OutboxEvent struct {
	ID          int64      `gorm:"autoIncrement;primaryKey"`
	EventType   string     `gorm:"size:64;not null;index"`
	Payload     string     `gorm:"not null"` // JSON
	CreatedAt   time.Time  `gorm:"not null"`
	PublishedAt *time.Time `gorm:"index"`
	Attempts    int        `gorm:"not null"`
}
