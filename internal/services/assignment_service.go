// Package services – AssignmentService
//
// This file implements AssignmentService, which binds anonymous
// channel-originated certificate requests to a resolved user, one at a time
// or in bulk. The bulk path is the system's one genuinely tricky algorithm:
// a user can message several times before ever identifying themselves, so a
// single identification event must retroactively attribute every request
// accumulated under that channel identifier — atomically with respect to
// concurrent request creation on the same identifier.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/domain"
	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/normalize"
	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/repo"
)

// AssignmentService implements requester attribution for certificate requests.
type AssignmentService struct {
	// DB is the GORM handle used for persistence. The bulk assignment opens
	// its own transaction per call.
	DB *gorm.DB
}

// NewAssignmentService constructs an AssignmentService bound to the given DB.
func NewAssignmentService(db *gorm.DB) *AssignmentService {
	return &AssignmentService{DB: db}
}

// AssignmentResult reports the outcome of a bulk identification event.
// TotalAssigned is the authoritative count of how much history got
// retroactively attributed to the user.
type AssignmentResult struct {
	User          *domain.User                `json:"user"`
	Requests      []domain.CertificateRequest `json:"requests"`
	TotalAssigned int64                       `json:"total_assigned"`
}

// AssignRequesterUser sets requester_user_id on a single request. The user id
// is taken on trust; existence is the caller's concern. Assignment is
// additive: the engine never clears an assignment, and re-assigning the same
// user is a harmless overwrite.
func (s *AssignmentService) AssignRequesterUser(ctx context.Context, requestID, userID string) (*domain.CertificateRequest, error) {
	tr := otel.Tracer("services/AssignmentService")
	ctx, span := tr.Start(ctx, "AssignRequesterUser",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	if err := repo.UpdateRequestFields(ctx, s.DB, requestID, map[string]any{"requester_user_id": userID}); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, mapStoreErr(err)
	}
	r, err := repo.GetRequest(ctx, s.DB, requestID)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// IdentifyAndAssign resolves an identification number to a user and assigns
// that user to every request originating from the channel identifier.
//
// Steps:
//  1. Normalize the identification number so lookups are invariant to
//     formatting ("123.456.789" equals "123456789").
//  2. Resolve the user; ErrUserNotFound if no user matches.
//  3. In one transaction, bulk-update requester_user_id on all matching
//     requests (any status, previous assignments overwritten to the same
//     resolved user) and re-read the affected set.
//
// The update and the re-read share a transaction, so a request created
// concurrently under the same identifier is either fully included in the
// result or cleanly excluded, never half-updated. Running the operation twice
// yields the same assignments and the same count.
func (s *AssignmentService) IdentifyAndAssign(ctx context.Context, channelIdentifier, identificationNumber string) (*AssignmentResult, error) {
	tr := otel.Tracer("services/AssignmentService")
	ctx, span := tr.Start(ctx, "IdentifyAndAssign")
	defer span.End()

	channel := normalize.ChannelIdentifier(channelIdentifier)
	if channel == "" {
		return nil, ErrMissingChannelIdentifier
	}
	number := normalize.IdentificationNumber(identificationNumber)
	if number == "" {
		return nil, ErrEmptyIdentificationNumber
	}

	user, err := repo.FindUserByIdentificationNumber(ctx, s.DB, number)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	res := &AssignmentResult{User: user}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		total, err := repo.BulkAssignRequester(ctx, tx, channel, user.ID)
		if err != nil {
			return mapStoreErr(err)
		}
		res.TotalAssigned = total

		requests, err := repo.ListByChannelIdentifier(ctx, tx, channel)
		if err != nil {
			return err
		}
		res.Requests = requests
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("user.id", user.ID),
		attribute.Int64("assigned.total", res.TotalAssigned),
	)
	return res, nil
}
