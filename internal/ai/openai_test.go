package ai

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestOpenAIClient_GenerateText(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		responseBody string
		expectError  bool
		expectedText string
		expectedCode int
	}{
		{
			name:         "successful completion",
			statusCode:   http.StatusOK,
			responseBody: `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  Moodle доступний за адресою  "},"finish_reason":"stop"}]}`,
			expectedText: "Moodle доступний за адресою",
		},
		{
			name:         "no choices",
			statusCode:   http.StatusOK,
			responseBody: `{"id":"1","object":"chat.completion","choices":[]}`,
			expectedText: "",
		},
		{
			name:         "rate limited",
			statusCode:   http.StatusTooManyRequests,
			responseBody: `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`,
			expectError:  true,
			expectedCode: http.StatusTooManyRequests,
		},
		{
			name:         "server error",
			statusCode:   http.StatusInternalServerError,
			responseBody: `{"error":{"message":"boom","type":"server_error"}}`,
			expectError:  true,
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got chatRequest
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("Unexpected path %s", r.URL.Path)
				}
				if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
					t.Errorf("Unexpected Authorization header %q", auth)
				}
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					t.Errorf("Failed to decode request: %v", err)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			c := NewOpenAIClient("test-key", server.URL+"/v1/", server.Client())
			text, err := c.GenerateText(context.Background(), Request{
				Model:             "gpt-4.1-mini",
				SystemInstruction: "SYSTEM",
				Content:           "USER",
				Temperature:       Temperature,
			})

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				code, ok := StatusCode(err)
				if !ok || code != tt.expectedCode {
					t.Errorf("Expected status code %d, got %d (%v)", tt.expectedCode, code, ok)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if text != tt.expectedText {
				t.Errorf("Expected %q, got %q", tt.expectedText, text)
			}

			if got.Model != "gpt-4.1-mini" {
				t.Errorf("Expected model gpt-4.1-mini, got %s", got.Model)
			}
			if math.Abs(got.Temperature-0.2) > 1e-6 {
				t.Errorf("Expected temperature 0.2, got %v", got.Temperature)
			}
			if len(got.Messages) != 2 ||
				got.Messages[0].Role != "system" || got.Messages[0].Content != "SYSTEM" ||
				got.Messages[1].Role != "user" || got.Messages[1].Content != "USER" {
				t.Errorf("Unexpected messages %+v", got.Messages)
			}
		})
	}
}
