package relay_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"

	"github.com/zephyrtronium/casino/relay"
)

type chatRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int64     `json:"max_tokens"`
	Messages    []chatMsg `json:"messages"`
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func TestOpenAI(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("wrong path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer key" {
			t.Errorf("wrong authorization %q", auth)
		}
		b, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("couldn't read body: %v", err)
		}
		if err := json.Unmarshal(b, &got); err != nil {
			t.Errorf("couldn't decode body %s: %v", b, err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "bocchi",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "hi bocchi"}
			}]
		}`)
	}))
	defer srv.Close()
	o := relay.NewOpenAI(relay.OpenAIConfig{
		Key:         "key",
		BaseURL:     srv.URL + "/",
		Model:       "bocchi",
		Temperature: 0.5,
		MaxTokens:   64,
	})
	prompt := []relay.Message{
		{Role: relay.System, Content: "be nice"},
		{Role: relay.User, Content: "hello"},
		{Role: relay.Assistant, Content: "hi"},
		{Role: relay.User, Content: "again"},
	}
	r, err := o.Complete(context.Background(), prompt)
	if err != nil {
		t.Fatalf("couldn't complete: %v", err)
	}
	if r != "hi bocchi" {
		t.Errorf("wrong completion %q", r)
	}
	want := chatRequest{
		Model:       "bocchi",
		Temperature: 0.5,
		MaxTokens:   64,
		Messages: []chatMsg{
			{Role: "system", Content: "be nice"},
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
			{Role: "user", Content: "again"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrong request (-want +got):\n%s", diff)
	}
}

func TestOpenAIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error": {"message": "slow down", "type": "rate_limit"}}`)
	}))
	defer srv.Close()
	o := relay.NewOpenAI(relay.OpenAIConfig{Key: "key", BaseURL: srv.URL + "/", Model: "bocchi"})
	_, err := o.Complete(context.Background(), []relay.Message{{Role: relay.User, Content: "hello"}})
	if err == nil {
		t.Error("completion succeeded")
	}
}
