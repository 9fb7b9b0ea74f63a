package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestComplete_ReturnsReplyText(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if errDecode := json.NewDecoder(r.Body).Decode(&gotBody); errDecode != nil {
			t.Errorf("decode request: %v", errDecode)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  hello back  "}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5*time.Second)
	reply, err := client.Complete(context.Background(), Request{
		Model:       "model-small",
		Messages:    []Message{{Role: "user", Content: "hello"}},
		Temperature: 0.7,
		MaxTokens:   300,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "hello back" {
		t.Fatalf("expected trimmed reply, got %q", reply)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("expected bearer credential, got %q", gotAuth)
	}
	if gotBody.Model != "model-small" || gotBody.MaxTokens != 300 {
		t.Fatalf("request not forwarded: %+v", gotBody)
	}
}

func TestComplete_EmptyCompletionMapsToPlaceholder(t *testing.T) {
	cases := []string{
		`{"choices":[]}`,
		`{"choices":[{"message":{"content":"   "}}]}`,
	}
	for _, body := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		client := NewClient(server.URL, "", 5*time.Second)
		reply, err := client.Complete(context.Background(), Request{Model: "m"})
		server.Close()
		if err != nil {
			t.Fatalf("body %s: unexpected error %v", body, err)
		}
		if reply != PlaceholderReply {
			t.Fatalf("body %s: expected placeholder, got %q", body, reply)
		}
	}
}

func TestComplete_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	_, err := client.Complete(context.Background(), Request{Model: "m"})

	var upstreamErr *Error
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if upstreamErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", upstreamErr.StatusCode)
	}
	if upstreamErr.Body == "" {
		t.Fatalf("expected diagnostic body to be preserved")
	}
}

func TestComplete_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	_, err := client.Complete(context.Background(), Request{Model: "m"})

	var upstreamErr *Error
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
}

func TestComplete_Timeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	client := NewClient(server.URL, "", 50*time.Millisecond)
	_, err := client.Complete(context.Background(), Request{Model: "m"})

	var upstreamErr *Error
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected *Error on timeout, got %v", err)
	}
}
