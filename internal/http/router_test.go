package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/config"
	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/domain"
	"github.com/omp-abogados-25/chatbox-omp-sub001/internal/http/middleware"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:routerdb?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.CertificateRequest{}, &domain.User{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   10,
		CORS:        config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:    config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},

		IdempotencyTTL: time.Hour,
	}
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), testConfig())

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://cors-client.example")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_OperatorLifecycleEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), testConfig())

	// Create via the operator API (auth disabled: empty JWT secret).
	body, _ := json.Marshal(map[string]string{
		"channel_identifier": "573001112233",
		"certificate_type":   "laboral",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/certificate-requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d body %s", w.Code, w.Body.String())
	}
	var created domain.CertificateRequest
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Drive it through the lifecycle routes.
	for _, step := range []struct {
		path string
		want int
	}{
		{"/api/v1/certificate-requests/" + created.ID + "/process", http.StatusOK},
		{"/api/v1/certificate-requests/" + created.ID + "/complete", http.StatusOK},
		{"/api/v1/certificate-requests/" + created.ID + "/complete", http.StatusConflict},
		{"/api/v1/certificate-requests/" + created.ID + "/document-sent", http.StatusOK},
	} {
		w = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodPost, step.path, nil)
		r.ServeHTTP(w, req)
		if w.Code != step.want {
			t.Fatalf("POST %s = %d, want %d (%s)", step.path, w.Code, step.want, w.Body.String())
		}
	}
}

func TestRegisterRoutes_JWTGatesOperatorAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.Auth.JWTSecret = "router-secret"
	RegisterRoutes(r, newTestDB(t), cfg)

	// No token: 401.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/certificate-requests", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated = %d, want 401", w.Code)
	}

	// Valid token: 200. Health stays open.
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.AuthClaims{
		UserID: "op-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("router-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/certificate-requests", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("authenticated = %d body %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
}

func TestRegisterRoutes_WebhookSecretGatesIntake(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.Auth.WebhookSecret = "hook-secret"
	RegisterRoutes(r, newTestDB(t), cfg)

	body, _ := json.Marshal(map[string]string{
		"channel_identifier": "573001112233",
		"certificate_type":   "laboral",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/certificate-requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no secret = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webhook/certificate-requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", "hook-secret")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("with secret = %d body %s", w.Code, w.Body.String())
	}
}
