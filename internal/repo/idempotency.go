// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the Idempotency
// model used to implement safe-retry semantics for webhook deliveries.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/domain"
)

// ErrDuplicate indicates that an idempotency record already exists for the
// given (channel_identifier, key) tuple.
var ErrDuplicate = errors.New("duplicate")

// GetIdempotency returns a non-expired record or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, channelIdentifier, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(channelIdentifier) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("channel_identifier = ? AND key = ? AND expires_at > ?", channelIdentifier, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// CreateIdempotency inserts a record and returns ErrDuplicate on unique violation.
func CreateIdempotency(ctx context.Context, db *gorm.DB, channelIdentifier, key, requestID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:                uuid.NewString(),
		ChannelIdentifier: channelIdentifier,
		Key:               key,
		RequestID:         requestID,
		Status:            status,
		CreatedAt:         now,
		ExpiresAt:         now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// IdempotencyStore is the gorm-backed store handed to the HTTP layer for
// webhook replay detection.
type IdempotencyStore struct {
	DB *gorm.DB
}

// NewIdempotencyStore wraps a database handle in an IdempotencyStore.
func NewIdempotencyStore(db *gorm.DB) IdempotencyStore {
	return IdempotencyStore{DB: db}
}

// Get returns the non-expired record for the (channel, key) tuple.
func (s IdempotencyStore) Get(ctx context.Context, channelIdentifier, key string, now time.Time) (*domain.Idempotency, error) {
	return GetIdempotency(ctx, s.DB, channelIdentifier, key, now)
}

// Create inserts a record, returning ErrDuplicate when the tuple is taken.
func (s IdempotencyStore) Create(ctx context.Context, channelIdentifier, key, requestID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return CreateIdempotency(ctx, s.DB, channelIdentifier, key, requestID, status, ttl)
}
