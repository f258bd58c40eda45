// Webhook HTTP handlers.
//
// This file exposes the intake endpoints called by the messaging provider:
//   - POST /webhook/certificate-requests  (channel event → new request)
//   - POST /webhook/identify              (identification event → bulk assign)
//
// Webhook deliveries are retried by the provider, and request creation is the
// one operation in this system that must not run twice for the same event.
// When the provider supplies an Idempotency-Key (its delivery id), a replay
// returns the originally created request with `Idempotency-Replayed: true`
// instead of creating a duplicate.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/http/middleware"
	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/normalize"
	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/repo"
	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/services"
)

// IdempotencyTTL is how long a stored webhook delivery result can be replayed.
// Overridden from config at router setup.
var IdempotencyTTL = 24 * time.Hour

// WebhookCreateRequest godoc
// @ID          webhookCreateCertificateRequest
// @Summary     Create a request from a channel event
// @Description Intake for the messaging provider. Supports idempotent redelivery via the Idempotency-Key header (same key → same request).
// @Tags        Webhook
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key       header  string  false  "Provider delivery id, stable across retries"
// @Param       X-Channel-Identifier  header  string  false  "Originating channel identifier (scopes replay detection)"
// @Param       body                  body    handlers.CreateRequestBody  true  "Channel event payload"
//
// @Success     200  {object}  domain.CertificateRequest  "Replayed (already created)"
// @Success     201  {object}  domain.CertificateRequest
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /webhook/certificate-requests [post]
func (h *Handlers) WebhookCreateRequest(c *gin.Context) {
	ctx := c.Request.Context()

	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	channel := normalize.ChannelIdentifier(body.ChannelIdentifier)

	// Replay path: return the previously created request.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && h.idem != nil {
		if rec, err := h.idem.Get(ctx, channel, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if r, err := h.reqSvc.Get(ctx, rec.RequestID); err == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, r)
				return
			}
		}
	}

	r, err := h.reqSvc.Create(ctx, services.CreateRequestInput{
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

	if idemKey != "" && h.idem != nil {
		if _, err := h.idem.Create(ctx, channel, idemKey, r.ID, http.StatusCreated, IdempotencyTTL); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				// A simultaneous redelivery claimed the key between the check
				// above and our insert. The recorded request wins; drop the
				// one we just created and answer with the original.
				if rec, gerr := h.idem.Get(ctx, channel, idemKey, time.Now().UTC()); gerr == nil && rec != nil && rec.RequestID != r.ID {
					if orig, gerr := h.reqSvc.Get(ctx, rec.RequestID); gerr == nil {
						_ = h.reqSvc.Delete(ctx, r.ID)
						c.Header("Idempotency-Replayed", "true")
						ok(c, http.StatusOK, orig)
						return
					}
				}
			} else if lg := middleware.LoggerFrom(c); lg != nil {
				// Bookkeeping failures must not fail the delivery.
				lg.Warn().Err(err).Str("idempotency_key", idemKey).Msg("idempotency record not stored")
			}
		}
	}

	ok(c, http.StatusCreated, r)
}

// WebhookIdentify godoc
// @ID          webhookIdentify
// @Summary     Identification event from the channel
// @Description The requester stated who they are; resolves the user and retroactively assigns every request from this channel identifier. Naturally idempotent, safe to redeliver.
// @Tags        Webhook
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.IdentifyBody  true  "Identification payload"
//
// @Success     200  {object}  services.AssignmentResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "No matching user"
// @Router      /webhook/identify [post]
func (h *Handlers) WebhookIdentify(c *gin.Context) {
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
