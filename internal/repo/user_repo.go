// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the identity-lookup side of the store:
// users are read by the assignment correlator and never written by it.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/domain"
)

// FindUserByIdentificationNumber resolves a user by their normalized
// identification number. The caller normalizes the number first (see
// internal/normalize); this function matches the stored column verbatim.
// Returns ErrNotFound when no user matches.
func FindUserByIdentificationNumber(ctx context.Context, db *gorm.DB, normalized string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, "identification_number = ?", normalized).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user by primary key, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
