// Copyright 2025 achetronic
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package summarizer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeRawTokenStripsBearer(t *testing.T) {
	got := normalizeRawToken("  Bearer sk-abc123  ")
	if got != "sk-abc123" {
		t.Fatalf("normalizeRawToken() = %q, want sk-abc123", got)
	}
}

func TestNormalizeRawTokenUnwrapsEnvShapedKey(t *testing.T) {
	got := normalizeRawToken("ANTHROPIC_API_KEY=sk-real-value")
	if got != "sk-real-value" {
		t.Fatalf("normalizeRawToken() = %q, want sk-real-value", got)
	}
}

func TestNormalizeRawTokenLeavesUnrecognizedShapeAlone(t *testing.T) {
	got := normalizeRawToken("some=value")
	if got != "some=value" {
		t.Fatalf("normalizeRawToken() = %q, want unchanged", got)
	}
}

func TestNormalizeRawTokenPlainKeyUnchanged(t *testing.T) {
	got := normalizeRawToken("sk-plain-key")
	if got != "sk-plain-key" {
		t.Fatalf("normalizeRawToken() = %q, want unchanged", got)
	}
}

func TestJoinURL(t *testing.T) {
	got, err := joinURL("https://api.example.com/v1/", "messages")
	if err != nil {
		t.Fatalf("joinURL() error = %v", err)
	}
	if got != "https://api.example.com/v1/messages" {
		t.Fatalf("joinURL() = %q", got)
	}
}

func TestJoinURLEmptyBase(t *testing.T) {
	if _, err := joinURL("", "messages"); err == nil {
		t.Fatalf("joinURL() error = nil, want error for empty base")
	}
}

func TestRunOnceAnthropicExtractsTextAndResponseID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_test123",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-opus",
			"content": [{"type": "text", "text": "the conversation so far covers setup and config"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 8}
		}`))
	}))
	defer server.Close()

	result, err := RunOnce(context.Background(), Request{
		Provider: Provider{ID: "p1", Variant: Anthropic, BaseURL: server.URL, APIKey: "test-key"},
		Model:    "claude-3-opus",
		Prompt:   "Summarize.",
		History: []HistoryTurn{
			{RequestID: "r1", RequestMessage: "hello", ResponseText: "hi there"},
		},
		MaxTokens:      256,
		TimeoutSeconds: 5,
	})
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if result.ProviderResponseID != "msg_test123" {
		t.Fatalf("RunOnce() ProviderResponseID = %q, want msg_test123", result.ProviderResponseID)
	}
	if result.Text != "the conversation so far covers setup and config" {
		t.Fatalf("RunOnce() Text = %q, want the summary text", result.Text)
	}
}

func TestRunOnceOpenAICompatibleExtractsTextAndResponseID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-test123",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "a concise rolling summary"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 8, "total_tokens": 18}
		}`))
	}))
	defer server.Close()

	result, err := RunOnce(context.Background(), Request{
		Provider: Provider{ID: "p2", Variant: OpenAICompatible, BaseURL: server.URL, APIKey: "test-key"},
		Model:    "gpt-4o",
		Prompt:   "Summarize.",
		History: []HistoryTurn{
			{RequestID: "r1", RequestMessage: "hello", ResponseText: "hi there"},
		},
		MaxTokens:      256,
		TimeoutSeconds: 5,
	})
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if result.ProviderResponseID != "chatcmpl-test123" {
		t.Fatalf("RunOnce() ProviderResponseID = %q, want chatcmpl-test123", result.ProviderResponseID)
	}
	if result.Text != "a concise rolling summary" {
		t.Fatalf("RunOnce() Text = %q, want the summary text", result.Text)
	}
}
