package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/domain"
)

func TestFindUserByIdentificationNumber(t *testing.T) {
	db := newRequestRepoDB(t, &domain.User{})
	ctx := context.Background()

	u := domain.User{
		ID:                   uuid.NewString(),
		DisplayName:          "Ana Gómez",
		Email:                "ana@example.com",
		IdentificationNumber: "123456789",
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	got, err := FindUserByIdentificationNumber(ctx, db, "123456789")
	if err != nil {
		t.Fatalf("FindUserByIdentificationNumber: %v", err)
	}
	if got.ID != u.ID || got.DisplayName != "Ana Gómez" {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := FindUserByIdentificationNumber(ctx, db, "999999999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUser(t *testing.T) {
	db := newRequestRepoDB(t, &domain.User{})
	ctx := context.Background()

	u := domain.User{
		ID:                   uuid.NewString(),
		DisplayName:          "Luis Rojas",
		Email:                "luis@example.com",
		IdentificationNumber: "987654321",
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	got, err := GetUser(ctx, db, u.ID)
	if err != nil || got.Email != "luis@example.com" {
		t.Fatalf("GetUser: %+v, %v", got, err)
	}

	if _, err := GetUser(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
