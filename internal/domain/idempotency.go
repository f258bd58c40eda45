// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency records the result of a previously processed webhook call,
// keyed by (channel_identifier, key). Messaging providers redeliver events;
// request creation is not retry-safe, so replays must return the originally
// created request instead of creating a duplicate.
type Idempotency struct {
	ID                string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	ChannelIdentifier string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_channel_key,priority:1"`
	Key               string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_channel_key,priority:2"`
	RequestID         string    `gorm:"type:TEXT NOT NULL"`
	Status            int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt         time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt         time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
