package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/domain"
	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/http/middleware"
	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/repo"
	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/services"
)

// newWebhookRig mirrors the production wiring for the webhook group: the
// idempotency validator runs in front of the intake handlers, with its lookup
// backed by the same DB.
func newWebhookRig(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	h := New(services.NewRequestService(db), services.NewAssignmentService(db), repo.NewIdempotencyStore(db))

	lookup := func(ctx context.Context, channel, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, channel, key, now)
		return err == nil, nil
	}

	r := gin.New()
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, lookup))
	r.POST("/webhook/certificate-requests", h.WebhookCreateRequest)
	r.POST("/webhook/identify", h.WebhookIdentify)
	return r, db
}

func webhookDeliver(t *testing.T, r *gin.Engine, body CreateRequestBody, idemKey string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhook/certificate-requests", &buf)
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set(middleware.HeaderIdempotencyKey, idemKey)
		req.Header.Set(middleware.HeaderChannelIdentifier, body.ChannelIdentifier)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookCreateRequest_NoKeyCreatesEachTime(t *testing.T) {
	r, db := newWebhookRig(t)
	body := CreateRequestBody{ChannelIdentifier: "573001112233", CertificateType: "laboral"}

	if w := webhookDeliver(t, r, body, ""); w.Code != http.StatusCreated {
		t.Fatalf("first delivery status = %d", w.Code)
	}
	if w := webhookDeliver(t, r, body, ""); w.Code != http.StatusCreated {
		t.Fatalf("second delivery status = %d", w.Code)
	}

	var n int64
	if err := db.Model(&domain.CertificateRequest{}).Count(&n).Error; err != nil || n != 2 {
		t.Fatalf("expected 2 requests without keys, got %d (%v)", n, err)
	}
}

func TestWebhookCreateRequest_RedeliveryReplays(t *testing.T) {
	r, db := newWebhookRig(t)
	body := CreateRequestBody{ChannelIdentifier: "573001112233", CertificateType: "laboral"}

	w := webhookDeliver(t, r, body, "delivery-001")
	if w.Code != http.StatusCreated {
		t.Fatalf("first delivery status = %d body %s", w.Code, w.Body.String())
	}
	first := decodeRequest(t, w)

	w = webhookDeliver(t, r, body, "delivery-001")
	if w.Code != http.StatusOK {
		t.Fatalf("redelivery status = %d, want 200", w.Code)
	}
	if w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("missing Idempotency-Replayed header")
	}
	replayed := decodeRequest(t, w)
	if replayed.ID != first.ID {
		t.Fatalf("replay returned a different request: %s vs %s", replayed.ID, first.ID)
	}

	var n int64
	if err := db.Model(&domain.CertificateRequest{}).Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("redelivery created a duplicate: count=%d (%v)", n, err)
	}
}

func TestWebhookCreateRequest_DistinctKeysCreateDistinctRequests(t *testing.T) {
	r, db := newWebhookRig(t)
	body := CreateRequestBody{ChannelIdentifier: "573001112233", CertificateType: "laboral"}

	if w := webhookDeliver(t, r, body, "delivery-001"); w.Code != http.StatusCreated {
		t.Fatalf("first status = %d", w.Code)
	}
	if w := webhookDeliver(t, r, body, "delivery-002"); w.Code != http.StatusCreated {
		t.Fatalf("second status = %d", w.Code)
	}

	var n int64
	if err := db.Model(&domain.CertificateRequest{}).Count(&n).Error; err != nil || n != 2 {
		t.Fatalf("expected 2 requests, got %d (%v)", n, err)
	}
}

func TestWebhookCreateRequest_InvalidKeyRejected(t *testing.T) {
	r, _ := newWebhookRig(t)
	body := CreateRequestBody{ChannelIdentifier: "573001112233", CertificateType: "laboral"}

	w := webhookDeliver(t, r, body, "bad key with spaces")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestWebhookIdentify(t *testing.T) {
	r, db := newWebhookRig(t)

	if w := webhookDeliver(t, r, CreateRequestBody{ChannelIdentifier: "573001112233", CertificateType: "laboral"}, ""); w.Code != http.StatusCreated {
		t.Fatalf("seed request: %d", w.Code)
	}
	u := domain.User{
		ID:                   uuid.NewString(),
		DisplayName:          "Ana Gómez",
		Email:                "ana@example.com",
		IdentificationNumber: "123456789",
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(IdentifyBody{
		ChannelIdentifier:    "573001112233",
		IdentificationNumber: "123.456.789",
	})
	req := httptest.NewRequest(http.MethodPost, "/webhook/identify", &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	var res services.AssignmentResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.TotalAssigned != 1 || res.User == nil || res.User.ID != u.ID {
		t.Fatalf("unexpected result: %+v", res)
	}
}

// raceIdemStore simulates a redelivery that claims the idempotency key after
// the handler's pre-create check but before its own insert.
type raceIdemStore struct {
	winner *domain.Idempotency
	gets   int
}

func (s *raceIdemStore) Get(ctx context.Context, channel, key string, now time.Time) (*domain.Idempotency, error) {
	s.gets++
	if s.gets == 1 {
		return nil, repo.ErrNotFound
	}
	return s.winner, nil
}

func (s *raceIdemStore) Create(ctx context.Context, channel, key, requestID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return nil, repo.ErrDuplicate
}

func TestWebhookCreateRequest_SimultaneousRedeliverySingleRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	reqSvc := services.NewRequestService(db)

	// The request the concurrent delivery already recorded under the key.
	winner, err := reqSvc.Create(context.Background(), services.CreateRequestInput{
		ChannelIdentifier: "573001112233",
		CertificateType:   "laboral",
	})
	if err != nil {
		t.Fatalf("seed winner: %v", err)
	}
	now := time.Now().UTC()
	store := &raceIdemStore{winner: &domain.Idempotency{
		ID:                uuid.NewString(),
		ChannelIdentifier: "573001112233",
		Key:               "delivery-77",
		RequestID:         winner.ID,
		Status:            http.StatusCreated,
		CreatedAt:         now,
		ExpiresAt:         now.Add(time.Hour),
	}}

	h := New(reqSvc, services.NewAssignmentService(db), store)
	r := gin.New()
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/webhook/certificate-requests", h.WebhookCreateRequest)

	w := webhookDeliver(t, r, CreateRequestBody{ChannelIdentifier: "573001112233", CertificateType: "laboral"}, "delivery-77")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 replay, body %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatal("missing Idempotency-Replayed header")
	}
	got := decodeRequest(t, w)
	if got.ID != winner.ID {
		t.Fatalf("returned request %s, want the recorded one %s", got.ID, winner.ID)
	}

	// The losing delivery's surplus request must be gone.
	var count int64
	if err := db.Model(&domain.CertificateRequest{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("requests = %d, want 1", count)
	}
}
