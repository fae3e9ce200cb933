package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSuggestTweaks(t *testing.T) {
	var req generateRequest
	srv := ollamaStub(t, `{"prompt_influence":"raise to 0.9","timbre":"add metallic ring"}`, &req)
	defer srv.Close()

	metrics := map[string]any{"normalized_lufs": -18.1, "clipping_prevented": false}
	got, err := NewOllama(srv.URL).SuggestTweaks(context.Background(), "door: a sharp sound", metrics, gemmaConfig())
	if err != nil {
		t.Fatalf("SuggestTweaks: %v", err)
	}

	if !strings.Contains(req.Prompt, `"door: a sharp sound"`) {
		t.Errorf("prompt %q does not quote the original prompt", req.Prompt)
	}
	if !strings.Contains(req.Prompt, "normalized_lufs") {
		t.Errorf("prompt %q does not carry the metrics", req.Prompt)
	}
	if got["prompt_influence"] != "raise to 0.9" {
		t.Errorf("suggestions = %v", got)
	}
}

func TestSuggestTweaksServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL).SuggestTweaks(context.Background(), "p", nil, gemmaConfig())
	if err == nil || !strings.Contains(err.Error(), "feedback") {
		t.Errorf("err = %v, want feedback error", err)
	}
}

func TestSuggestTweaksInvalidJSON(t *testing.T) {
	srv := ollamaStub(t, "try making it louder", nil)
	defer srv.Close()

	_, err := NewOllama(srv.URL).SuggestTweaks(context.Background(), "p", nil, gemmaConfig())
	if err == nil || !strings.Contains(err.Error(), "invalid JSON") {
		t.Errorf("err = %v, want invalid JSON", err)
	}
}
