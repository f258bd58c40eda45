// Package services – RequestService
//
// This file implements RequestService, the lifecycle engine for certificate
// requests. It owns the state machine over {PENDING, IN_PROGRESS, COMPLETED,
// FAILED}: status is mutated exclusively through the named transition methods
// here, never through free-form field updates.
//
// Every transition runs as a single guarded UPDATE (legal source statuses in
// the WHERE clause) inside a transaction, so concurrent calls on the same
// request serialize at the row: of two racing MarkCompleted calls exactly one
// succeeds and the other observes ErrInvalidTransition.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the request id and, where relevant, the resulting status.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/domain"
	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/normalize"
	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/repo"
	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/utils"
)

// RequestService implements the certificate-request lifecycle use-cases:
// creation from inbound channel events, the status transitions, partial field
// updates, deletion, and operator-facing listing/search.
type RequestService struct {
	// DB is the GORM handle used for persistence. Transitions open their own
	// transaction per call.
	DB *gorm.DB
}

// NewRequestService constructs a RequestService bound to the given DB handle.
func NewRequestService(db *gorm.DB) *RequestService {
	return &RequestService{DB: db}
}

// CreateRequestInput carries the fields accepted when a request is created
// from an inbound channel event.
type CreateRequestInput struct {
	ChannelIdentifier     string
	CertificateType       string
	RequesterName         string
	RequesterDocument     string
	RequestPayload        []byte
	InteractionTranscript []byte
}

// UpdateRequestInput carries the free fields an operator may patch on an
// existing request. Status is deliberately absent: it moves only through the
// named transitions.
type UpdateRequestInput struct {
	CertificateType   *string
	RequesterName     *string
	RequesterDocument *string
}

// Create persists a new request in PENDING state. The channel identifier is
// canonicalized so later identification events correlate regardless of how
// the provider formatted the number.
func (s *RequestService) Create(ctx context.Context, in CreateRequestInput) (*domain.CertificateRequest, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	channel := normalize.ChannelIdentifier(in.ChannelIdentifier)
	if channel == "" {
		return nil, ErrMissingChannelIdentifier
	}
	certType := strings.TrimSpace(in.CertificateType)
	if certType == "" {
		return nil, ErrMissingCertificateType
	}

	r := &domain.CertificateRequest{
		ChannelIdentifier:     channel,
		CertificateType:       certType,
		RequesterName:         strings.TrimSpace(in.RequesterName),
		RequesterDocument:     normalize.IdentificationNumber(in.RequesterDocument),
		RequestPayload:        in.RequestPayload,
		InteractionTranscript: in.InteractionTranscript,
	}
	r.SearchText = searchText(r)
	created, err := repo.CreateRequest(ctx, s.DB, r)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	span.SetAttributes(attribute.String("request.id", created.ID))
	return created, nil
}

// Get returns a request by id or ErrRequestNotFound.
func (s *RequestService) Get(ctx context.Context, id string) (*domain.CertificateRequest, error) {
	r, err := repo.GetRequest(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return r, nil
}

// ListPage returns a page of requests ordered by creation time descending,
// plus the total count for pagination metadata.
func (s *RequestService) ListPage(ctx context.Context, page, pageSize int) ([]domain.CertificateRequest, int64, error) {
	page, pageSize = utils.NormalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	total, err := repo.CountRequests(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.CertificateRequest{}, 0, nil
	}

	items, err := repo.ListRequestsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// Update applies a partial update to the free request fields. Returns
// ErrRequestNotFound if the request does not exist; a patch with no fields
// set is a no-op returning the current record.
func (s *RequestService) Update(ctx context.Context, id string, in UpdateRequestInput) (*domain.CertificateRequest, error) {
	fields := map[string]any{}
	if in.CertificateType != nil {
		ct := strings.TrimSpace(*in.CertificateType)
		if ct == "" {
			return nil, ErrMissingCertificateType
		}
		fields["certificate_type"] = ct
	}
	if in.RequesterName != nil {
		fields["requester_name"] = strings.TrimSpace(*in.RequesterName)
	}
	if in.RequesterDocument != nil {
		fields["requester_document"] = normalize.IdentificationNumber(*in.RequesterDocument)
	}

	if len(fields) > 0 {
		// Recompute the folded search column from the final field values in
		// the same transaction.
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := repo.UpdateRequestFields(ctx, tx, id, fields); err != nil {
				return err
			}
			cur, err := repo.GetRequest(ctx, tx, id)
			if err != nil {
				return err
			}
			return repo.UpdateRequestFields(ctx, tx, id, map[string]any{"search_text": searchText(cur)})
		})
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrRequestNotFound
			}
			return nil, mapStoreErr(err)
		}
	}
	return s.Get(ctx, id)
}

// searchText folds the human-facing request fields into the search_text
// column so LIKE matches are invariant to case and diacritics.
func searchText(r *domain.CertificateRequest) string {
	parts := make([]string, 0, 4)
	for _, s := range []string{r.CertificateType, r.RequesterName, r.RequesterDocument, r.ChannelIdentifier} {
		if folded := normalize.SearchTerm(s); folded != "" {
			parts = append(parts, folded)
		}
	}
	return strings.Join(parts, " ")
}

// BeginProcessing moves a PENDING request to IN_PROGRESS, stamping
// processing_started_at. Any other current status is ErrInvalidTransition.
func (s *RequestService) BeginProcessing(ctx context.Context, id string) (*domain.CertificateRequest, error) {
	return s.transition(ctx, id, "BeginProcessing", func(tx *gorm.DB, now time.Time) (int64, error) {
		return repo.BeginProcessing(ctx, tx, id, now)
	})
}

// MarkCompleted terminates a request at COMPLETED, recording the produced
// document path and completion reason. Legal only from a processable status
// (PENDING or IN_PROGRESS); completing an already-completed or failed request
// returns ErrInvalidTransition and leaves the record untouched.
func (s *RequestService) MarkCompleted(ctx context.Context, id string, documentPath, completionReason *string) (*domain.CertificateRequest, error) {
	return s.transition(ctx, id, "MarkCompleted", func(tx *gorm.DB, now time.Time) (int64, error) {
		return repo.CompleteRequest(ctx, tx, id, documentPath, completionReason, now)
	})
}

// MarkFailed terminates a request at FAILED with the given message. Failing
// an already-failed request is allowed and overwrites the recorded message;
// failing a completed request is ErrInvalidTransition. An empty message is
// ErrEmptyErrorMessage and performs no write.
func (s *RequestService) MarkFailed(ctx context.Context, id, errorMessage string) (*domain.CertificateRequest, error) {
	errorMessage = strings.TrimSpace(errorMessage)
	if errorMessage == "" {
		return nil, ErrEmptyErrorMessage
	}
	return s.transition(ctx, id, "MarkFailed", func(tx *gorm.DB, now time.Time) (int64, error) {
		return repo.FailRequest(ctx, tx, id, errorMessage, now)
	})
}

// MarkDocumentSent stamps the delivery confirmation time. It is independent
// of status, safe in any state, and idempotent: repeated calls keep the first
// stamp. Only a missing request fails (ErrRequestNotFound).
func (s *RequestService) MarkDocumentSent(ctx context.Context, id string) (*domain.CertificateRequest, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "MarkDocumentSent",
		trace.WithAttributes(attribute.String("request.id", id)),
	)
	defer span.End()

	rows, err := repo.StampDocumentSent(ctx, s.DB, id, time.Now().UTC())
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if rows == 0 {
		return nil, ErrRequestNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes a request unconditionally. No state-machine gating applies.
func (s *RequestService) Delete(ctx context.Context, id string) error {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("request.id", id)),
	)
	defer span.End()

	if err := repo.DeleteRequest(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrRequestNotFound
		}
		return mapStoreErr(err)
	}
	return nil
}

// Search normalizes the term and pagination and delegates the bounded query
// to the store. An empty term after trimming is ErrEmptySearchTerm.
func (s *RequestService) Search(ctx context.Context, term string, p utils.SearchPagination) ([]domain.CertificateRequest, int64, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(attribute.Int("page", p.Page), attribute.Int("limit", p.Limit)),
	)
	defer span.End()

	term = normalize.SearchTerm(term)
	if term == "" {
		return nil, 0, ErrEmptySearchTerm
	}
	p = p.Normalize()
	return repo.SearchRequests(ctx, s.DB, term, p.Offset(), p.Limit, p.OrderBy, p.OrderDirection)
}

// transition runs one guarded status update inside a transaction. When the
// UPDATE matches no row the request is re-read in the same transaction to
// tell a missing request apart from an illegal source state.
func (s *RequestService) transition(ctx context.Context, id, name string, apply func(tx *gorm.DB, now time.Time) (int64, error)) (*domain.CertificateRequest, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, name,
		trace.WithAttributes(attribute.String("request.id", id)),
	)
	defer span.End()

	var out *domain.CertificateRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := apply(tx, time.Now().UTC())
		if err != nil {
			return mapStoreErr(err)
		}
		if rows == 0 {
			if _, err := repo.GetRequest(ctx, tx, id); err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return ErrRequestNotFound
				}
				return err
			}
			return ErrInvalidTransition
		}
		out, err = repo.GetRequest(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("request.status", string(out.Status)))
	return out, nil
}

// mapStoreErr translates driver-level write conflicts into the retryable
// sentinel. SQLite reports lock contention as "database is locked" / SQLITE_BUSY.
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	low := strings.ToLower(err.Error())
	if strings.Contains(low, "database is locked") || strings.Contains(low, "sqlite_busy") {
		return ErrConflict
	}
	return err
}
