// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// CertificateRequest model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Status-transition legality lives in the
// service layer; the guarded UPDATE helpers here only provide the atomic
// compare-and-set primitive (WHERE on current status) the services build on.
//
// Error semantics:
//   - When a request is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - The guarded transition helpers return the number of rows affected and
//     leave "zero rows" interpretation (missing vs illegal state) to callers.
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateRequest inserts a new CertificateRequest row. A UUID primary key and
// UTC creation timestamp are assigned here; Status always starts at PENDING
// regardless of what the caller set.
func CreateRequest(ctx context.Context, db *gorm.DB, r *domain.CertificateRequest) (*domain.CertificateRequest, error) {
	r.ID = uuid.NewString()
	r.Status = domain.StatusPending
	r.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// GetRequest fetches a single request by ID, or ErrNotFound if missing.
func GetRequest(ctx context.Context, db *gorm.DB, id string) (*domain.CertificateRequest, error) {
	var r domain.CertificateRequest
	if err := db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// CountRequests returns the total number of certificate requests.
func CountRequests(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.CertificateRequest{}).Count(&total).Error
	return total, err
}

// ListRequestsPage returns a paginated slice of requests ordered by creation
// time descending. The caller computes offset and limit.
func ListRequestsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.CertificateRequest, error) {
	var out []domain.CertificateRequest
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListByChannelIdentifier returns every request originating from the given
// channel identifier, oldest first. Many requests may share one identifier
// before the requester ever identifies themselves.
func ListByChannelIdentifier(ctx context.Context, db *gorm.DB, channelIdentifier string) ([]domain.CertificateRequest, error) {
	var out []domain.CertificateRequest
	err := db.WithContext(ctx).
		Where("channel_identifier = ?", channelIdentifier).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// UpdateRequestFields applies a partial update to a request. Returns
// ErrNotFound if no row matches the id.
func UpdateRequestFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.CertificateRequest{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRequest hard-deletes a request. Returns ErrNotFound if no row matched.
// Deletion is administrative and unconditional; it is not gated by status.
func DeleteRequest(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Delete(&domain.CertificateRequest{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

//
// Guarded transitions
//
// Each helper issues a single UPDATE with the legal source statuses in the
// WHERE clause. Concurrent callers race on the row; exactly one UPDATE
// matches, the rest observe zero rows affected. This is the per-id
// linearization point for the whole lifecycle engine.
//

// BeginProcessing moves a PENDING request to IN_PROGRESS and stamps
// processing_started_at. Returns the number of rows affected (0 or 1).
func BeginProcessing(ctx context.Context, db *gorm.DB, id string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.CertificateRequest{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"status":                domain.StatusInProgress,
			"processing_started_at": now,
		})
	return res.RowsAffected, res.Error
}

// CompleteRequest moves a processable request to COMPLETED, recording the
// produced document path, the completion reason, and the processing end time.
// Only PENDING and IN_PROGRESS rows match. Returns rows affected (0 or 1).
func CompleteRequest(ctx context.Context, db *gorm.DB, id string, documentPath, completionReason *string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.CertificateRequest{}).
		Where("id = ? AND status IN ?", id, []domain.RequestStatus{domain.StatusPending, domain.StatusInProgress}).
		Updates(map[string]any{
			"status":              domain.StatusCompleted,
			"document_path":       documentPath,
			"completion_reason":   completionReason,
			"processing_ended_at": now,
		})
	return res.RowsAffected, res.Error
}

// FailRequest moves a request to FAILED with the given error message. Any
// non-COMPLETED row matches: failing an already-failed request overwrites the
// recorded message. Returns rows affected (0 or 1).
func FailRequest(ctx context.Context, db *gorm.DB, id, errorMessage string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.CertificateRequest{}).
		Where("id = ? AND status <> ?", id, domain.StatusCompleted).
		Updates(map[string]any{
			"status":              domain.StatusFailed,
			"error_message":       errorMessage,
			"processing_ended_at": now,
		})
	return res.RowsAffected, res.Error
}

// StampDocumentSent records the delivery confirmation time, keeping the first
// stamp on repeated calls. The update matches any existing row regardless of
// status; rows affected is 0 only when the request does not exist.
func StampDocumentSent(ctx context.Context, db *gorm.DB, id string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.CertificateRequest{}).
		Where("id = ?", id).
		Update("document_sent_at", gorm.Expr("COALESCE(document_sent_at, ?)", now))
	return res.RowsAffected, res.Error
}

// BulkAssignRequester sets requester_user_id on every request sharing the
// channel identifier, regardless of status or any previous assignment.
// Meant to run inside a transaction together with the re-read of the
// affected set. Returns the number of rows updated.
func BulkAssignRequester(ctx context.Context, db *gorm.DB, channelIdentifier, userID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.CertificateRequest{}).
		Where("channel_identifier = ?", channelIdentifier).
		Update("requester_user_id", userID)
	return res.RowsAffected, res.Error
}

// requestSortable is the allow-list of ORDER BY columns for SearchRequests.
// Anything else falls back to created_at (defense against SQL injection via
// the order parameter).
var requestSortable = map[string]struct{}{
	"created_at":       {},
	"updated_at":       {},
	"status":           {},
	"certificate_type": {},
	"requester_name":   {},
}

// SearchRequests performs a LIKE search over the human-facing request fields
// plus the folded search_text column, and returns one page of matches plus
// the total match count. Callers fold the term the same way search_text is
// folded at write time, so accented stored values still match.
func SearchRequests(ctx context.Context, db *gorm.DB, term string, offset, limit int, orderBy, orderDir string) ([]domain.CertificateRequest, int64, error) {
	if _, ok := requestSortable[orderBy]; !ok {
		orderBy = "created_at"
	}
	if orderDir != "asc" {
		orderDir = "desc"
	}

	pattern := "%" + term + "%"
	q := db.WithContext(ctx).
		Model(&domain.CertificateRequest{}).
		Where(
			"search_text LIKE ? OR certificate_type LIKE ? OR requester_name LIKE ? OR requester_document LIKE ? OR channel_identifier LIKE ?",
			pattern, pattern, pattern, pattern, pattern,
		)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.CertificateRequest{}, 0, nil
	}

	var out []domain.CertificateRequest
	err := q.
		Order(fmt.Sprintf("%s %s", orderBy, orderDir)).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, total, err
}
