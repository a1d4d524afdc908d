package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const chatCompletionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-5-chat-latest",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "{\"text\":\"Кредит 5%\",\"type\":\"Consumer Loans\"}"}
  }],
  "usage": {"prompt_tokens": 120, "completion_tokens": 20, "total_tokens": 140}
}`

func TestOpenAIChatWithImage(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("unmarshal body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})

	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "You are an OCR engine."},
			{Role: "user", Content: "Read this.", Images: []Image{{Data: []byte("png-bytes"), MimeType: "image/png"}}},
		},
		Temperature: 0,
		MaxTokens:   600,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !strings.Contains(result.Content, "Consumer Loans") {
		t.Errorf("unexpected content: %q", result.Content)
	}
	if result.TotalTokens != 140 {
		t.Errorf("TotalTokens = %d, want 140", result.TotalTokens)
	}

	if got, _ := payload["model"].(string); got != "gpt-5-chat-latest" {
		t.Errorf("expected default model, got %q", got)
	}
	if got, ok := payload["temperature"].(float64); !ok || got != 0 {
		t.Errorf("expected temperature 0, got %v", payload["temperature"])
	}
	if got, _ := payload["max_completion_tokens"].(float64); got != 600 {
		t.Errorf("expected max_completion_tokens 600, got %v", payload["max_completion_tokens"])
	}

	messages, _ := payload["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	user, _ := messages[1].(map[string]any)
	parts, _ := user["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %v", user["content"])
	}
	imagePart, _ := parts[1].(map[string]any)
	imageURL, _ := imagePart["image_url"].(map[string]any)
	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	if got, _ := imageURL["url"].(string); got != want {
		t.Errorf("image url = %q, want %q", got, want)
	}
}

func TestOpenAIChatRateLimit(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit","type":"rate_limit_error","param":"","code":"rate_limit"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})

	_, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	rle, ok := IsRateLimitError(err)
	if !ok {
		t.Fatalf("expected RateLimitError, got %T: %v", err, err)
	}
	if rle.RetryAfter != 3*time.Second {
		t.Errorf("expected RetryAfter=3s, got %v", rle.RetryAfter)
	}
	if calls != 1 {
		t.Errorf("SDK retries should be disabled, got %d calls", calls)
	}
}

func TestOpenAIChatRejectsEmptyRequest(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{APIKey: "k"})
	if _, err := client.Chat(context.Background(), &ChatRequest{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("2"); got != 2*time.Second {
		t.Errorf("parseRetryAfter(2) = %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("parseRetryAfter(\"\") = %v", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Errorf("parseRetryAfter(soon) = %v", got)
	}
}

func TestMockClient(t *testing.T) {
	boom := errors.New("boom")
	c := &MockClient{Responses: []string{"first", "second"}, Errors: []error{boom}}

	if _, err := c.Chat(context.Background(), &ChatRequest{}); !errors.Is(err, boom) {
		t.Fatalf("expected scripted error, got %v", err)
	}
	for _, want := range []string{"second", "second"} {
		res, err := c.Chat(context.Background(), &ChatRequest{})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if res.Content != want {
			t.Errorf("Content = %q, want %q", res.Content, want)
		}
	}
	if c.RequestCount() != 3 {
		t.Errorf("RequestCount = %d, want 3", c.RequestCount())
	}
	if len(c.Requests()) != 3 {
		t.Errorf("expected 3 recorded requests")
	}
}
