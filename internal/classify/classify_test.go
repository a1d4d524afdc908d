package classify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jackzampolin/bankads/internal/assets"
	"github.com/jackzampolin/bankads/internal/providers"
)

// recordingTimer fires immediately and remembers every requested wait.
type recordingTimer struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *recordingTimer) After(d time.Duration) <-chan time.Time {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (r *recordingTimer) total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum time.Duration
	for _, d := range r.sleeps {
		sum += d
	}
	return sum
}

func writeImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func newTestClassifier(t *testing.T, client providers.VisionClient, timer *recordingTimer, cache Cache) *Classifier {
	t.Helper()
	c, err := New(Config{
		Client:     client,
		Model:      "test-model",
		Categories: testCategories,
		Timer:      timer,
		Cache:      cache,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestClassify_RetriesThenSucceeds(t *testing.T) {
	transient := errors.New("502 bad gateway")
	client := &providers.MockClient{
		Responses: []string{"", "", `{"text": "Карта", "type": "Cards"}`},
		Errors:    []error{transient, transient},
	}
	timer := &recordingTimer{}
	c := newTestClassifier(t, client, timer, nil)

	res, err := c.Classify(context.Background(), writeImage(t, "a.png", []byte("img")))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if res.Text != "Карта" || res.Type != "Cards" {
		t.Errorf("unexpected result %+v", res)
	}
	if client.RequestCount() != 3 {
		t.Errorf("RequestCount = %d, want 3", client.RequestCount())
	}
	if got := timer.total(); got != 3*time.Second {
		t.Errorf("total backoff = %v, want 3s (1s + 2s), sleeps %v", got, timer.sleeps)
	}
}

func TestClassify_RetriesExhausted(t *testing.T) {
	boom := errors.New("boom")
	client := &providers.MockClient{Errors: []error{boom, boom, boom, boom}}
	timer := &recordingTimer{}
	c := newTestClassifier(t, client, timer, nil)

	_, err := c.Classify(context.Background(), writeImage(t, "a.jpg", []byte("img")))
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected last error to be wrapped, got %v", err)
	}
	if client.RequestCount() != 3 {
		t.Errorf("RequestCount = %d, want 3", client.RequestCount())
	}
	if len(timer.sleeps) != 2 || timer.sleeps[0] != time.Second || timer.sleeps[1] != 2*time.Second {
		t.Errorf("expected waits [1s 2s] between 3 attempts, got %v", timer.sleeps)
	}
}

func TestClassify_RateLimitRetryAfter(t *testing.T) {
	limited := &providers.RateLimitError{Message: "slow down", RetryAfter: 5 * time.Second, StatusCode: 429}
	client := &providers.MockClient{
		Responses: []string{"", `{"text": "x", "type": "Mortgages"}`},
		Errors:    []error{limited},
	}
	timer := &recordingTimer{}
	c := newTestClassifier(t, client, timer, nil)

	if _, err := c.Classify(context.Background(), writeImage(t, "a.png", []byte("img"))); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(timer.sleeps) != 1 || timer.sleeps[0] != 5*time.Second {
		t.Errorf("expected a single 5s wait, got %v", timer.sleeps)
	}
}

func TestClassify_ShortRetryAfterKeepsLinearDelay(t *testing.T) {
	limited := &providers.RateLimitError{Message: "slow down", RetryAfter: 500 * time.Millisecond, StatusCode: 429}
	client := &providers.MockClient{
		Responses: []string{"", `{"text": "x", "type": "Mortgages"}`},
		Errors:    []error{limited},
	}
	timer := &recordingTimer{}
	c := newTestClassifier(t, client, timer, nil)

	if _, err := c.Classify(context.Background(), writeImage(t, "a.png", []byte("img"))); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(timer.sleeps) != 1 || timer.sleeps[0] != time.Second {
		t.Errorf("expected a single 1s wait, got %v", timer.sleeps)
	}
}

func TestLinearDelay(t *testing.T) {
	c := &Classifier{retryDelay: time.Second}
	tests := []struct {
		n    uint
		err  error
		want time.Duration
	}{
		{n: 1, err: errors.New("boom"), want: time.Second},
		{n: 2, err: errors.New("boom"), want: 2 * time.Second},
		{n: 1, err: &providers.RateLimitError{RetryAfter: 4 * time.Second}, want: 4 * time.Second},
		{n: 2, err: &providers.RateLimitError{RetryAfter: time.Second}, want: 2 * time.Second},
	}
	for _, tt := range tests {
		if got := c.linearDelay(tt.n, tt.err, nil); got != tt.want {
			t.Errorf("linearDelay(%d, %v) = %v, want %v", tt.n, tt.err, got, tt.want)
		}
	}
}

func TestClassify_MalformedAnswerFallsBack(t *testing.T) {
	client := providers.NewMockClient("sorry, no json")
	c := newTestClassifier(t, client, &recordingTimer{}, nil)

	res, err := c.Classify(context.Background(), writeImage(t, "a.png", []byte("img")))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if res != (Result{Text: "", Type: OtherCategory}) {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestClassify_Request(t *testing.T) {
	client := providers.NewMockClient(`{"text": "x", "type": "Cards"}`)
	c := newTestClassifier(t, client, &recordingTimer{}, nil)

	if _, err := c.Classify(context.Background(), writeImage(t, "creative.webp", []byte("webp-bytes"))); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	reqs := client.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	req := reqs[0]
	if req.Model != "test-model" || req.Temperature != 0 || req.MaxTokens != 600 {
		t.Errorf("unexpected request parameters: model=%s temperature=%v max_tokens=%d", req.Model, req.Temperature, req.MaxTokens)
	}
	if !strings.Contains(req.Messages[0].Content, "strict OCR extractor") {
		t.Errorf("unexpected system prompt %q", req.Messages[0].Content)
	}
	user := req.Messages[1]
	if user.Content != "Categories:\n- Consumer Loans\n- Mortgages\n- Cards\n- Other" {
		t.Errorf("unexpected user prompt %q", user.Content)
	}
	if len(user.Images) != 1 || user.Images[0].MimeType != "image/webp" || string(user.Images[0].Data) != "webp-bytes" {
		t.Errorf("unexpected image attachment %+v", user.Images)
	}
}

func TestClassify_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	cache := NewRedisCache(rdb, time.Hour)

	client := providers.NewMockClient(`{"text": "Кредит", "type": "Consumer Loans"}`)
	c := newTestClassifier(t, client, &recordingTimer{}, cache)
	data := []byte("same-image")

	first, err := c.Classify(context.Background(), writeImage(t, "a.png", data))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	second, err := c.Classify(context.Background(), writeImage(t, "b.png", data))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if client.RequestCount() != 1 {
		t.Errorf("expected cache hit to skip the model, RequestCount = %d", client.RequestCount())
	}
	if first.Cached || !second.Cached {
		t.Errorf("unexpected cached flags: first=%v second=%v", first.Cached, second.Cached)
	}
	if second.Text != "Кредит" || second.Type != "Consumer Loans" {
		t.Errorf("unexpected cached result %+v", second)
	}
	key := cacheKeyPrefix + assets.ContentHash(data)
	if !mr.Exists(key) {
		t.Fatalf("expected key %s in redis", key)
	}
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}
}

func TestClassify_CacheUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	client := providers.NewMockClient(`{"text": "x", "type": "Cards"}`)
	c := newTestClassifier(t, client, &recordingTimer{}, NewRedisCache(rdb, time.Hour))

	res, err := c.Classify(context.Background(), writeImage(t, "a.png", []byte("img")))
	if err != nil {
		t.Fatalf("cache failures must not fail classification: %v", err)
	}
	if res.Type != "Cards" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Categories: testCategories}); err == nil {
		t.Error("expected error without client")
	}
	if _, err := New(Config{Client: providers.NewMockClient("{}")}); err == nil {
		t.Error("expected error without categories")
	}
}
