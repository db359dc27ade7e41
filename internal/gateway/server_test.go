package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/seanblong/uniqa/internal/ai"
	"github.com/seanblong/uniqa/internal/assistant"
	"github.com/seanblong/uniqa/internal/knowledge"
	"github.com/seanblong/uniqa/internal/prompt"
	"github.com/seanblong/uniqa/internal/retrieval"
)

// MockAssistant implements Assistant for testing
type MockAssistant struct {
	ProcessFunc func(ctx context.Context, query string) (string, error)
	Model       ai.Model
}

func (m *MockAssistant) ProcessUserQuery(ctx context.Context, query string) (string, error) {
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, query)
	}
	return "ok", nil
}

func (m *MockAssistant) BackendModel() ai.Model { return m.Model }

// fakeGenerator records the last request and replies with Reply
type fakeGenerator struct {
	last  ai.Request
	Reply string
}

func (f *fakeGenerator) GenerateText(ctx context.Context, req ai.Request) (string, error) {
	f.last = req
	return f.Reply, nil
}

func postChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return resp.Error
}

func TestChat_Validation(t *testing.T) {
	called := false
	h := NewRouter(&MockAssistant{ProcessFunc: func(ctx context.Context, q string) (string, error) {
		called = true
		return "x", nil
	}}, nil, Options{}, zerolog.Nop())

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"empty body", "", http.StatusBadRequest, "Message is required"},
		{"empty object", "{}", http.StatusBadRequest, "Message is required"},
		{"whitespace message", `{"message":"   \n"}`, http.StatusBadRequest, "Message is required"},
		{"json null", "null", http.StatusBadRequest, "Message is required"},
		{"malformed json", `{"message":`, http.StatusBadRequest, "Invalid request body"},
		{"wrong type", `{"message":42}`, http.StatusBadRequest, "Invalid request body"},
		{"too large", `{"message":"` + strings.Repeat("a", MaxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge, "Request body too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(t, h, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := decodeError(t, rec); got != tt.wantError {
				t.Errorf("Expected error %q, got %q", tt.wantError, got)
			}
		})
	}
	if called {
		t.Error("Expected invalid requests never to reach the assistant")
	}
}

func TestChat_ProviderErrorsMapped(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"missing credential", errors.New("GEMINI_API_KEY is missing for Gemini provider"), http.StatusServiceUnavailable, "LLM provider is not configured."},
		{"overloaded", errors.New("429 Too Many Requests"), http.StatusServiceUnavailable, "LLM provider is overloaded. Please retry later."},
		{"refused", codedError{code: "ECONNREFUSED"}, http.StatusBadGateway, "LLM provider is temporarily unavailable."},
		{"unknown", errors.New(strings.Repeat("secret internals ", 40)), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(&MockAssistant{ProcessFunc: func(context.Context, string) (string, error) {
				return "", tt.err
			}}, nil, Options{}, zerolog.Nop())

			rec := postChat(t, h, `{"message":"hello"}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			body := rec.Body.String()
			if strings.Contains(body, "secret") {
				t.Errorf("Expected internal details to stay server-side, got %q", body)
			}
			if got := decodeError(t, rec); got != tt.wantError {
				t.Errorf("Expected error %q, got %q", tt.wantError, got)
			}
		})
	}
}

func TestChat_RequestTimeout(t *testing.T) {
	h := NewRouter(&MockAssistant{ProcessFunc: func(ctx context.Context, q string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}, nil, Options{RequestTimeout: 20 * time.Millisecond}, zerolog.Nop())

	rec := postChat(t, h, `{"message":"hello"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("Expected 502 after timeout, got %d", rec.Code)
	}
}

func TestHealthzAndModel(t *testing.T) {
	h := NewRouter(&MockAssistant{Model: ai.ModelOpenAIMini}, NewLimiter(10, time.Minute), Options{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected healthz 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "" {
		t.Error("Expected healthz to bypass the rate limiter")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/model", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected model 200, got %d", rec.Code)
	}
	var resp ModelResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if resp.Model != ai.ModelOpenAIMini || len(resp.Available) != len(ai.Models()) {
		t.Errorf("Unexpected model response %+v", resp)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestChat_MethodNotAllowed(t *testing.T) {
	h := NewRouter(&MockAssistant{}, nil, Options{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected 405, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
	if got := decodeError(t, rec); got != msgMethodNotAllowed {
		t.Errorf("Expected %q, got %q", msgMethodNotAllowed, got)
	}
}

func TestRouter_RateLimitAndCORS(t *testing.T) {
	h := NewRouter(&MockAssistant{}, NewLimiter(3, time.Minute), Options{
		AllowedOrigins: []string{"https://nuzp.edu.ua"},
		TrustProxy:     true,
	}, zerolog.Nop())

	send := func(ip, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi"}`))
		req.Header.Set("X-Forwarded-For", ip)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 3; i++ {
		if rec := send("198.51.100.1", "https://nuzp.edu.ua"); rec.Code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	rec := send("198.51.100.1", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 4th request 429, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got != "Too many requests. Please try again later." {
		t.Errorf("Unexpected error %q", got)
	}

	// proxy header distinguishes clients
	if rec := send("198.51.100.2", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected other client 200, got %d", rec.Code)
	}

	if rec := send("198.51.100.3", "https://evil.example"); rec.Code != http.StatusForbidden {
		t.Errorf("Expected CORS rejection 403, got %d", rec.Code)
	}
}

func TestEndToEnd_MoodleQuery(t *testing.T) {
	kb, err := knowledge.Default()
	if err != nil {
		t.Fatalf("Failed to load default knowledge: %v", err)
	}
	composer := prompt.NewComposer(retrieval.New(kb))

	gen := &fakeGenerator{Reply: "Moodle: https://moodle.zp.edu.ua"}
	factory := ai.NewFactory(&ai.ClientConfig{GeminiKey: "test-key"}, composer, zerolog.Nop())
	factory.Dialers[ai.VendorGemini] = func(apiKey string) (ai.Generator, error) { return gen, nil }

	svc := assistant.NewService(assistant.NewModelHolder(ai.ModelGeminiFlash), factory, zerolog.Nop())
	h := NewRouter(svc, NewLimiter(60, time.Minute), Options{RequestTimeout: time.Second}, zerolog.Nop())

	rec := postChat(t, h, `{"message":"Як отримати доступ до Moodle?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if resp.Reply != gen.Reply {
		t.Errorf("Expected reply %q, got %q", gen.Reply, resp.Reply)
	}

	if !strings.Contains(gen.last.SystemInstruction, "=== RETRIEVED CONTEXT ===") {
		t.Error("Expected the augmented prompt as system instruction")
	}
	if !strings.Contains(gen.last.SystemInstruction, "moodle.zp.edu.ua") {
		t.Error("Expected the Moodle chunk in the retrieved context")
	}
	if gen.last.Content != "Як отримати доступ до Moodle?" {
		t.Errorf("Expected raw query as content, got %q", gen.last.Content)
	}
	if gen.last.Model != string(ai.ModelGeminiFlash) {
		t.Errorf("Expected model %s, got %s", ai.ModelGeminiFlash, gen.last.Model)
	}
}

func TestEndToEnd_MockEchoesAfterDelay(t *testing.T) {
	factory := ai.NewFactory(&ai.ClientConfig{MockDelay: 30 * time.Millisecond}, nil, zerolog.Nop())
	svc := assistant.NewService(assistant.NewModelHolder(ai.ModelMock), factory, zerolog.Nop())
	h := NewRouter(svc, nil, Options{}, zerolog.Nop())

	start := time.Now()
	rec := postChat(t, h, `{"message":"Де деканат?"}`)
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Expected reply no sooner than the mock delay, got %v", elapsed)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Де деканат?") {
		t.Errorf("Expected echoed query, got %s", rec.Body.String())
	}
}

func TestEndToEnd_MissingKey(t *testing.T) {
	factory := ai.NewFactory(&ai.ClientConfig{}, prompt.NewComposer(nil), zerolog.Nop())
	svc := assistant.NewService(assistant.NewModelHolder(ai.ModelOpenAINano), factory, zerolog.Nop())
	h := NewRouter(svc, nil, Options{}, zerolog.Nop())

	rec := postChat(t, h, `{"message":"hi"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got != "LLM provider is not configured." {
		t.Errorf("Unexpected error %q", got)
	}
}

func TestServer_Shutdown(t *testing.T) {
	s := NewServer("127.0.0.1:0", http.NewServeMux(), zerolog.Nop())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe() }()

	time.Sleep(20 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Expected nil after graceful shutdown, got %v", err)
	}
}
