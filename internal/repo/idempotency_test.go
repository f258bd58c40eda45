package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/domain"
)

func TestGetIdempotency_EmptyChannelIsNotFound(t *testing.T) {
	db := newRequestRepoDB(t, &domain.Idempotency{})
	_, err := GetIdempotency(context.Background(), db, "", "k1", time.Now().UTC())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateIdempotency_RoundTrip(t *testing.T) {
	db := newRequestRepoDB(t, &domain.Idempotency{})
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "573001112233", "k1", "req-1", 201, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.ID == "" || rec.RequestID != "req-1" || rec.Status != 201 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "573001112233", "k1", time.Now().UTC())
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.RequestID != "req-1" {
		t.Fatalf("expected req-1, got %q", got.RequestID)
	}
}

func TestCreateIdempotency_DuplicateKey(t *testing.T) {
	db := newRequestRepoDB(t, &domain.Idempotency{})
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "573001112233", "k1", "req-1", 201, time.Hour); err != nil {
		t.Fatalf("first CreateIdempotency: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "573001112233", "k1", "req-2", 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Same key under another channel is a distinct tuple.
	if _, err := CreateIdempotency(ctx, db, "573009998877", "k1", "req-3", 201, time.Hour); err != nil {
		t.Fatalf("cross-channel CreateIdempotency: %v", err)
	}
}

func TestGetIdempotency_ExpiredRecordsInvisible(t *testing.T) {
	db := newRequestRepoDB(t, &domain.Idempotency{})
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "573001112233", "k1", "req-1", 201, time.Millisecond); err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	_, err := GetIdempotency(ctx, db, "573001112233", "k1", time.Now().UTC().Add(time.Minute))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired record to be invisible, got %v", err)
	}
}
