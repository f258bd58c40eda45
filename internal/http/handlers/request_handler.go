// Certificate request HTTP handlers.
//
// This file exposes the operator-facing REST endpoints for certificate
// requests:
//   - POST   /certificate-requests                     (create)
//   - GET    /certificate-requests                     (list, paginated)
//   - GET    /certificate-requests/search              (search, paginated)
//   - GET    /certificate-requests/{id}                (fetch)
//   - PATCH  /certificate-requests/{id}                (update free fields)
//   - DELETE /certificate-requests/{id}                (delete)
//   - POST   /certificate-requests/{id}/process        (begin processing)
//   - POST   /certificate-requests/{id}/complete       (mark completed)
//   - POST   /certificate-requests/{id}/fail           (mark failed)
//   - POST   /certificate-requests/{id}/document-sent  (confirm delivery)
//   - POST   /certificate-requests/{id}/assign         (assign one user)
//   - POST   /certificate-requests/identify            (bulk identify+assign)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. Status-transition legality lives
// in the service layer; handlers only map its sentinel errors onto
// status codes.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/domain"
	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/services"
	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/utils"
)

//
// Service contracts (context-aware)
//

// RequestService defines the lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type RequestService interface {
	// Create persists a new PENDING request from an inbound channel event.
	Create(ctx context.Context, in services.CreateRequestInput) (*domain.CertificateRequest, error)
	// Get returns a request by id.
	Get(ctx context.Context, id string) (*domain.CertificateRequest, error)
	// ListPage returns a page of requests and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.CertificateRequest, int64, error)
	// Update patches the free request fields (never status).
	Update(ctx context.Context, id string, in services.UpdateRequestInput) (*domain.CertificateRequest, error)
	// BeginProcessing moves PENDING → IN_PROGRESS.
	BeginProcessing(ctx context.Context, id string) (*domain.CertificateRequest, error)
	// MarkCompleted terminates a processable request at COMPLETED.
	MarkCompleted(ctx context.Context, id string, documentPath, completionReason *string) (*domain.CertificateRequest, error)
	// MarkFailed terminates a non-completed request at FAILED.
	MarkFailed(ctx context.Context, id, errorMessage string) (*domain.CertificateRequest, error)
	// MarkDocumentSent stamps the delivery confirmation time.
	MarkDocumentSent(ctx context.Context, id string) (*domain.CertificateRequest, error)
	// Delete removes a request unconditionally.
	Delete(ctx context.Context, id string) error
	// Search runs a bounded, normalized search.
	Search(ctx context.Context, term string, p utils.SearchPagination) ([]domain.CertificateRequest, int64, error)
}

// AssignmentService defines requester-attribution operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type AssignmentService interface {
	// AssignRequesterUser binds one request to a user id.
	AssignRequesterUser(ctx context.Context, requestID, userID string) (*domain.CertificateRequest, error)
	// IdentifyAndAssign resolves an identification number and bulk-assigns
	// the user to every request from the channel identifier.
	IdentifyAndAssign(ctx context.Context, channelIdentifier, identificationNumber string) (*services.AssignmentResult, error)
}

//
// Handler wiring
//

// IdempotencyStore persists webhook delivery bookkeeping so that a retried
// delivery can be answered with the originally created request.
type IdempotencyStore interface {
	// Get returns the stored record for the (channel, key) tuple, or an error
	// when none exists or it has expired.
	Get(ctx context.Context, channelIdentifier, key string, now time.Time) (*domain.Idempotency, error)
	// Create inserts a record; a concurrent redelivery holding the same tuple
	// surfaces as repo.ErrDuplicate.
	Create(ctx context.Context, channelIdentifier, key, requestID string, status int, ttl time.Duration) (*domain.Idempotency, error)
}

// Handlers groups the HTTP endpoints for certificate requests and assignment.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	reqSvc    RequestService
	assignSvc AssignmentService
	idem      IdempotencyStore
}

// New constructs and returns a Handlers instance bound to the given services.
// idem may be nil, which disables webhook replay detection.
func New(reqSvc RequestService, assignSvc AssignmentService, idem IdempotencyStore) *Handlers {
	return &Handlers{reqSvc: reqSvc, assignSvc: assignSvc, idem: idem}
}

//
// DTOs
//

// CreateRequestBody is the JSON payload for creating a certificate request.
type CreateRequestBody struct {
	// ChannelIdentifier is the phone-like id of the originating conversation.
	ChannelIdentifier string `json:"channel_identifier" binding:"required" example:"+573001234567"`
	// CertificateType is the requested document category.
	CertificateType string `json:"certificate_type" binding:"required" example:"Labor Certificate"`
	// RequesterName optionally names the requester if already known.
	RequesterName string `json:"requester_name,omitempty" example:"Ana Pérez"`
	// RequesterDocument optionally carries the requester's document number.
	RequesterDocument string `json:"requester_document,omitempty" example:"123.456.789"`
	// RequestPayload is free-form structured data from the channel event.
	RequestPayload json.RawMessage `json:"request_payload,omitempty" swaggertype:"object"`
	// InteractionTranscript is the ordered conversation log at creation time.
	InteractionTranscript json.RawMessage `json:"interaction_transcript,omitempty" swaggertype:"object"`
}

// UpdateRequestBody is the JSON payload for patching free request fields.
type UpdateRequestBody struct {
	CertificateType   *string `json:"certificate_type,omitempty"`
	RequesterName     *string `json:"requester_name,omitempty"`
	RequesterDocument *string `json:"requester_document,omitempty"`
}

// CompleteRequestBody is the JSON payload for the completion transition.
type CompleteRequestBody struct {
	DocumentPath     *string `json:"document_path,omitempty" example:"certificates/2026/ana-perez.pdf"`
	CompletionReason *string `json:"completion_reason,omitempty" example:"generated from HR template"`
}

// FailRequestBody is the JSON payload for the failure transition.
type FailRequestBody struct {
	ErrorMessage string `json:"error_message" binding:"required" example:"employee record not found in HR system"`
}

// AssignUserBody is the JSON payload for single-request assignment.
type AssignUserBody struct {
	UserID string `json:"user_id" binding:"required" format:"uuid"`
}

// IdentifyBody is the JSON payload for a bulk identification event.
type IdentifyBody struct {
	ChannelIdentifier    string `json:"channel_identifier" binding:"required" example:"+573001234567"`
	IdentificationNumber string `json:"identification_number" binding:"required" example:"123.456.789"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListRequestsResponse wraps a page of requests and pagination information.
type ListRequestsResponse struct {
	Requests   []domain.CertificateRequest `json:"requests"`
	Pagination Pagination                  `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	page = utils.AtoiDefault(c.Query("page"), utils.DefaultPage)
	pageSize = utils.AtoiDefault(c.Query("page_size"), utils.DefaultPageSize)
	return utils.NormalizePage(page, pageSize)
}

// requestID validates the :id path parameter as a UUID, failing the request
// with 400 when it is not. The second return value reports validity.
func requestID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a UUID")
		return "", false
	}
	return id, true
}

// failFromService translates service sentinel errors into HTTP responses.
// fallbackCode is used for unexpected (5xx) failures.
func failFromService(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrRequestNotFound),
		errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeInvalidTransition, err.Error())
	case errors.Is(err, services.ErrConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrMissingChannelIdentifier),
		errors.Is(err, services.ErrMissingCertificateType),
		errors.Is(err, services.ErrEmptyErrorMessage),
		errors.Is(err, services.ErrEmptyIdentificationNumber),
		errors.Is(err, services.ErrEmptySearchTerm):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

//
// Handlers
//

// CreateRequest godoc
// @ID          createCertificateRequest
// @Summary     Create a certificate request
// @Description Creates a PENDING request from an inbound channel event and returns it.
// @Tags        CertificateRequests
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateRequestBody  true  "Create payload"
//
// @Success     201  {object}  domain.CertificateRequest
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /certificate-requests [post]
func (h *Handlers) CreateRequest(c *gin.Context) {
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	r, err := h.reqSvc.Create(c.Request.Context(), services.CreateRequestInput{
		ChannelIdentifier:     body.ChannelIdentifier,
		CertificateType:       body.CertificateType,
		RequesterName:         body.RequesterName,
		RequesterDocument:     body.RequesterDocument,
		RequestPayload:        body.RequestPayload,
		InteractionTranscript: body.InteractionTranscript,
	})
	if err != nil {
		failFromService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, r)
}

// ListRequests godoc
// @ID          listCertificateRequests
// @Summary     List certificate requests (paginated)
// @Tags        CertificateRequests
// @Produce     json
//
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListRequestsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /certificate-requests [get]
func (h *Handlers) ListRequests(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.reqSvc.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, pageResponse(items, page, pageSize, total))
}

// SearchRequests godoc
// @ID          searchCertificateRequests
// @Summary     Search certificate requests
// @Description Searches across certificate type, requester name/document, and channel identifier.
// @Tags        CertificateRequests
// @Produce     json
//
// @Param       q                query  string  true   "Search term"
// @Param       page             query  int     false  "Page number"       minimum(1) default(1)
// @Param       limit            query  int     false  "Items per page"    minimum(1) maximum(100) default(10)
// @Param       order_by         query  string  false  "Sort column"       Enums(created_at, updated_at, status, certificate_type, requester_name)
// @Param       order_direction  query  string  false  "Sort direction"    Enums(asc, desc)
//
// @Success     200  {object}  handlers.ListRequestsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Empty search term"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /certificate-requests/search [get]
func (h *Handlers) SearchRequests(c *gin.Context) {
	p := utils.SearchPagination{
		Page:           utils.AtoiDefault(c.Query("page"), utils.DefaultPage),
		Limit:          utils.AtoiDefault(c.Query("limit"), utils.DefaultSearchLimit),
		OrderBy:        strings.TrimSpace(c.Query("order_by")),
		OrderDirection: strings.TrimSpace(c.Query("order_direction")),
	}.Normalize()

	items, total, err := h.reqSvc.Search(c.Request.Context(), c.Query("q"), p)
	if err != nil {
		failFromService(c, err, ErrCodeSearchFailed)
		return
	}
	ok(c, http.StatusOK, pageResponse(items, p.Page, p.Limit, total))
}

// GetRequest godoc
// @ID          getCertificateRequest
// @Summary     Fetch a certificate request
// @Tags        CertificateRequests
// @Produce     json
//
// @Param       id  path  string  true  "Request ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.CertificateRequest
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /certificate-requests/{id} [get]
func (h *Handlers) GetRequest(c *gin.Context) {
	id, valid := requestID(c)
	if !valid {
		return
	}
	r, err := h.reqSvc.Get(c.Request.Context(), id)
	if err != nil {
		failFromService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, r)
}

// UpdateRequest godoc
// @ID          updateCertificateRequest
// @Summary     Update free request fields
// @Description Patches certificate type and requester identity fields. Status is immutable here.
// @Tags        CertificateRequests
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Request ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateRequestBody  true  "Patch payload"
//
// @Success     200  {object}  domain.CertificateRequest
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /certificate-requests/{id} [patch]
func (h *Handlers) UpdateRequest(c *gin.Context) {
	id, valid := requestID(c)
	if !valid {
		return
	}
	var body UpdateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	r, err := h.reqSvc.Update(c.Request.Context(), id, services.UpdateRequestInput{
		CertificateType:   body.CertificateType,
		RequesterName:     body.RequesterName,
		RequesterDocument: body.RequesterDocument,
	})
	if err != nil {
		failFromService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, r)
}

// DeleteRequest godoc
// @ID          deleteCertificateRequest
// @Summary     Delete a certificate request
// @Description Administrative, unconditional delete; not gated by status.
// @Tags        CertificateRequests
// @Produce     json
//
// @Param       id  path  string  true  "Request ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /certificate-requests/{id} [delete]
func (h *Handlers) DeleteRequest(c *gin.Context) {
	id, valid := requestID(c)
	if !valid {
		return
	}
	if err := h.reqSvc.Delete(c.Request.Context(), id); err != nil {
		failFromService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// BeginProcessing godoc
// @ID          beginProcessingCertificateRequest
// @Summary     Begin processing a request
// @Description Moves a PENDING request to IN_PROGRESS and stamps the start time.
// @Tags        CertificateRequests
// @Produce     json
//
// @Param       id  path  string  true  "Request ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.CertificateRequest
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Invalid transition"
// @Router      /certificate-requests/{id}/process [post]
func (h *Handlers) BeginProcessing(c *gin.Context) {
	id, valid := requestID(c)
	if !valid {
		return
	}
	r, err := h.reqSvc.BeginProcessing(c.Request.Context(), id)
	if err != nil {
		failFromService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, r)
}

// MarkCompleted godoc
// @ID          completeCertificateRequest
// @Summary     Mark a request completed
// @Description Terminates a PENDING or IN_PROGRESS request at COMPLETED, recording the document path and reason.
// @Tags        CertificateRequests
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true   "Request ID (UUID)"  format(uuid)
// @Param       body  body  handlers.CompleteRequestBody  false  "Completion payload"
//
// @Success     200  {object}  domain.CertificateRequest
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Invalid transition"
// @Router      /certificate-requests/{id}/complete [post]
func (h *Handlers) MarkCompleted(c *gin.Context) {
	id, valid := requestID(c)
	if !valid {
		return
	}
	var body CompleteRequestBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	r, err := h.reqSvc.MarkCompleted(c.Request.Context(), id, body.DocumentPath, body.CompletionReason)
	if err != nil {
		failFromService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, r)
}

// MarkFailed godoc
// @ID          failCertificateRequest
// @Summary     Mark a request failed
// @Description Terminates a non-completed request at FAILED. Re-failing overwrites the error message.
// @Tags        CertificateRequests
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Request ID (UUID)"  format(uuid)
// @Param       body  body  handlers.FailRequestBody  true  "Failure payload"
//
// @Success     200  {object}  domain.CertificateRequest
// @Failure     400  {object}  handlers.ErrorResponse  "Missing error message"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Invalid transition"
// @Router      /certificate-requests/{id}/fail [post]
func (h *Handlers) MarkFailed(c *gin.Context) {
	id, valid := requestID(c)
	if !valid {
		return
	}
	var body FailRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "error_message is required")
		return
	}
	r, err := h.reqSvc.MarkFailed(c.Request.Context(), id, body.ErrorMessage)
	if err != nil {
		failFromService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, r)
}

// MarkDocumentSent godoc
// @ID          documentSentCertificateRequest
// @Summary     Confirm document delivery
// @Description Stamps the delivery time. Independent of status and idempotent; the first stamp wins.
// @Tags        CertificateRequests
// @Produce     json
//
// @Param       id  path  string  true  "Request ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.CertificateRequest
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /certificate-requests/{id}/document-sent [post]
func (h *Handlers) MarkDocumentSent(c *gin.Context) {
	id, valid := requestID(c)
	if !valid {
		return
	}
	r, err := h.reqSvc.MarkDocumentSent(c.Request.Context(), id)
	if err != nil {
		failFromService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, r)
}

// AssignUser godoc
// @ID          assignCertificateRequestUser
// @Summary     Assign a user to one request
// @Description Sets requester_user_id on a single request. User existence is the caller's concern.
// @Tags        Assignment
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Request ID (UUID)"  format(uuid)
// @Param       body  body  handlers.AssignUserBody  true  "Assignment payload"
//
// @Success     200  {object}  domain.CertificateRequest
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /certificate-requests/{id}/assign [post]
func (h *Handlers) AssignUser(c *gin.Context) {
	id, valid := requestID(c)
	if !valid {
		return
	}
	var body AssignUserBody
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.UserID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id is required")
		return
	}
	r, err := h.assignSvc.AssignRequesterUser(c.Request.Context(), id, body.UserID)
	if err != nil {
		failFromService(c, err, ErrCodeAssignFailed)
		return
	}
	ok(c, http.StatusOK, r)
}

// IdentifyAndAssign godoc
// @ID          identifyAndAssign
// @Summary     Identify a channel and bulk-assign its requests
// @Description Resolves the identification number to a user and assigns that user to every request from the channel identifier, in one atomic step.
// @Tags        Assignment
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.IdentifyBody  true  "Identification payload"
//
// @Success     200  {object}  services.AssignmentResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "No matching user"
// @Router      /certificate-requests/identify [post]
func (h *Handlers) IdentifyAndAssign(c *gin.Context) {
	var body IdentifyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "channel_identifier and identification_number are required")
		return
	}
	res, err := h.assignSvc.IdentifyAndAssign(c.Request.Context(), body.ChannelIdentifier, body.IdentificationNumber)
	if err != nil {
		failFromService(c, err, ErrCodeAssignFailed)
		return
	}
	ok(c, http.StatusOK, res)
}

// pageResponse assembles the standard paginated list envelope.
func pageResponse(items []domain.CertificateRequest, page, pageSize int, total int64) ListRequestsResponse {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return ListRequestsResponse{
		Requests: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
}
