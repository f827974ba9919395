package llm

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTrip func(*http.Request) *http.Response

func (rt roundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt(req), nil
}

func TestChat(t *testing.T) {
	client := &Client{
		BaseURL: "https://api.test/v1/chat/completions",
		APIKey:  "key",
		Model:   "gpt-test",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				if got := req.Header.Get("Authorization"); got != "Bearer key" {
					t.Errorf("auth header = %q", got)
				}
				body, _ := io.ReadAll(req.Body)
				if !strings.Contains(string(body), "user prompt") {
					t.Error("user prompt missing from payload")
				}
				return &http.Response{
					StatusCode: 200,
					Body:       io.NopCloser(strings.NewReader(`{"choices":[{"message":{"role":"assistant","content":"hi"}}]}`)),
					Header:     make(http.Header),
				}
			}),
		},
	}
	out, err := client.Chat(context.Background(), "system", "user prompt")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != "hi" {
		t.Fatalf("unexpected chat output %s", out)
	}
}

func TestChatAPIError(t *testing.T) {
	client := &Client{
		BaseURL: "https://api.test/v1/chat/completions",
		Model:   "gpt-test",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				return &http.Response{
					StatusCode: 200,
					Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"bad"}}`)),
					Header:     make(http.Header),
				}
			}),
		},
	}
	if _, err := client.Chat(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error")
	}
}

func TestChatRequiresConfig(t *testing.T) {
	if _, err := (&Client{}).Chat(context.Background(), "s", "u"); err == nil {
		t.Fatal("unconfigured client accepted")
	}
}
