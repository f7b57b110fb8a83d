package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ShayCichocki/foldcrew/internal/config"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

func TestCreateOracle_AnthropicIgnoresOpenAIBaseURL(t *testing.T) {
	var openaiHits, anthropicHits atomic.Int32

	openaiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		openaiHits.Add(1)
		http.Error(w, "wrong endpoint", http.StatusNotFound)
	}))
	defer openaiSrv.Close()

	anthropicSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		anthropicHits.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "sk-ant-test" {
			t.Errorf("X-Api-Key = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5-20251001",
			"content": [{"type": "text", "text": "{\"selected_models\": [\"Boltz\"], \"explanation\": \"ok\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer anthropicSrv.Close()

	cfg := config.Default()
	cfg.Oracle.Provider = "anthropic"
	cfg.Anthropic.APIKey = "sk-ant-test"
	cfg.Anthropic.BaseURL = anthropicSrv.URL
	cfg.OpenAI.BaseURL = openaiSrv.URL

	o, err := createOracle(cfg, nil)
	if err != nil {
		t.Fatalf("createOracle failed: %v", err)
	}

	d, err := o.Decide(context.Background(), models.PreprocessResult{
		StructureName:  "ubiquitin",
		NumChains:      1,
		CleanSequences: []string{"MQIFVKTLTGKTITLEVEPSDTIENVKAKIQDKEGIPPDQQRLIFAGKQLEDGRTLSDYNIQKESTLHLVLRLRGG"},
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if len(d.SelectedModels) != 1 || d.SelectedModels[0] != "Boltz" {
		t.Errorf("SelectedModels = %v, want [Boltz]", d.SelectedModels)
	}
	if n := openaiHits.Load(); n != 0 {
		t.Errorf("openai endpoint received %d requests, want 0", n)
	}
	if n := anthropicHits.Load(); n != 1 {
		t.Errorf("anthropic endpoint received %d requests, want 1", n)
	}
}

func TestCreateOracle_OpenAIUsesOpenAIBaseURL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"selected_models\": [\"ESMFold\"], \"explanation\": \"fast\"}"}}],
			"usage": {"prompt_tokens": 30, "completion_tokens": 9, "total_tokens": 39}
		}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Oracle.Provider = "openai"
	cfg.OpenAI.APIKey = "sk-test"
	cfg.OpenAI.BaseURL = srv.URL

	o, err := createOracle(cfg, nil)
	if err != nil {
		t.Fatalf("createOracle failed: %v", err)
	}
	if _, err := o.Decide(context.Background(), models.PreprocessResult{
		StructureName:  "bsa",
		NumChains:      1,
		CleanSequences: []string{"MKWVTFISLLLLFSSAYSR"},
	}); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("openai endpoint received %d requests, want 1", n)
	}
}
