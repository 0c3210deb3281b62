// Package outbox persists side-effect events in the same transaction as the
// state change that caused them. The dispatcher drains the table after
// commit; a notification failure can therefore never roll back or block a
// committed transition.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventExportCreated  = "export.created"
	EventExportUpdated  = "export.updated"
	EventStatusChanged  = "export.status_changed"
	EventReconcileDrift = "export.reconcile_drift"
)

// Event is one outbox row. ULID ids make insertion order and lexicographic
// order agree, which the consumer offset relies on.
type Event struct {
	ID         string         `gorm:"primaryKey;type:text" json:"id"`
	ExportID   snowflake.ID   `gorm:"not null;index" json:"export_id"`
	EventType  string         `gorm:"type:text;not null" json:"event_type"`
	Payload    datatypes.JSON `gorm:"not null" json:"payload"`
	RecordedAt time.Time      `gorm:"not null;index" json:"recorded_at"`
}

func (Event) TableName() string { return "export_events" }

// ConsumerOffset tracks how far a named consumer has drained the table.
type ConsumerOffset struct {
	ConsumerID  string    `gorm:"primaryKey;type:text"`
	LastEventID string    `gorm:"type:text;not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (ConsumerOffset) TableName() string { return "event_consumer_offsets" }

// New builds an event with a fresh ULID and a JSON-encoded payload.
func New(exportID snowflake.ID, eventType string, payload any, at time.Time) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode outbox payload: %w", err)
	}
	return &Event{
		ID:         ulid.Make().String(),
		ExportID:   exportID,
		EventType:  eventType,
		Payload:    datatypes.JSON(raw),
		RecordedAt: at,
	}, nil
}

// Append writes the event using the caller's transaction handle.
func Append(ctx context.Context, db *gorm.DB, ev *Event) error {
	return db.WithContext(ctx).Create(ev).Error
}

// FetchAfter returns up to limit events with ids greater than afterID, in id
// order.
func FetchAfter(ctx context.Context, db *gorm.DB, afterID string, limit int) ([]Event, error) {
	var events []Event
	err := db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// Offset reads the consumer's last drained event id; empty when the consumer
// has never run.
func Offset(ctx context.Context, db *gorm.DB, consumerID string) (string, error) {
	var row ConsumerOffset
	err := db.WithContext(ctx).
		Where("consumer_id = ?", consumerID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return "", err
	}
	return row.LastEventID, nil
}

// CommitOffset advances the consumer's offset.
func CommitOffset(ctx context.Context, db *gorm.DB, consumerID, eventID string, at time.Time) error {
	row := ConsumerOffset{ConsumerID: consumerID, LastEventID: eventID, UpdatedAt: at}
	return db.WithContext(ctx).Save(&row).Error
}

// DeleteDispatchedBefore drops events older than the cutoff that every
// consumer has already drained past.
func DeleteDispatchedBefore(ctx context.Context, db *gorm.DB, cutoff time.Time, minOffset string) (int64, error) {
	res := db.WithContext(ctx).
		Where("recorded_at < ? AND id <= ?", cutoff, minOffset).
		Delete(&Event{})
	return res.RowsAffected, res.Error
}
