package executors

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// ChatMessage and ChatRequest/ChatResponse mirror the shape of the
// teacher's llm.Message/llm.ChatRequest/llm.ChatResponse closely enough
// that a real Provider implementation is a thin adapter, without this
// package importing the teacher's much larger llm package wholesale.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type ChatResponse struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Provider is the capability an LLMExecutor needs from an LLM backend.
type Provider interface {
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// LLMExecutor runs a single chat completion as a node's body. Config:
//
//	model       (string, required)
//	prompt      (string, required — becomes the user message)
//	system      (string, optional — becomes a system message)
//	temperature (number, optional)
//	maxTokens   (number, optional)
//
// Output: {"content": string, "finishReason": string, "promptTokens": int,
// "completionTokens": int}. Token counts come from tiktoken-go's cl100k_base
// encoding for every model rather than from provider-reported usage; when
// that encoding cannot be loaded, both counts are 0.
type LLMExecutor struct {
	provider Provider
	enc      *tiktoken.Tiktoken
}

func NewLLMExecutor(provider Provider) *LLMExecutor {
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &LLMExecutor{provider: provider, enc: enc}
}

func (e *LLMExecutor) Type() string { return "llm" }

func (e *LLMExecutor) ConfigSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"model", "prompt"},
		"properties": map[string]any{
			"model":       map[string]any{"type": "string"},
			"prompt":      map[string]any{"type": "string"},
			"system":      map[string]any{"type": "string"},
			"temperature": map[string]any{"type": "number"},
			"maxTokens":   map[string]any{"type": "integer"},
		},
	}
}

func (e *LLMExecutor) Run(ctx context.Context, parsedConfig, _ map[string]any) (any, error) {
	model, _ := parsedConfig["model"].(string)
	prompt, _ := parsedConfig["prompt"].(string)
	if model == "" || prompt == "" {
		return nil, fmt.Errorf("llm executor requires 'model' and 'prompt'")
	}

	var messages []ChatMessage
	if system, _ := parsedConfig["system"].(string); system != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: system})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: prompt})

	temperature, _ := parsedConfig["temperature"].(float64)
	maxTokens := 0
	if mt, ok := parsedConfig["maxTokens"].(float64); ok {
		maxTokens = int(mt)
	}

	req := &ChatRequest{Model: model, Messages: messages, Temperature: temperature, MaxTokens: maxTokens}

	if e.provider == nil {
		return map[string]any{
			"content":           "",
			"finishReason":      "no_provider",
			"promptTokens":      e.countTokens(prompt),
			"completionTokens":  0,
		}, nil
	}

	resp, err := e.provider.Completion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm executor: completion: %w", err)
	}

	return map[string]any{
		"content":          resp.Content,
		"finishReason":     resp.FinishReason,
		"promptTokens":     e.countTokens(prompt),
		"completionTokens": e.countTokens(resp.Content),
	}, nil
}

func (e *LLMExecutor) countTokens(text string) int {
	if e.enc == nil {
		return 0
	}
	return len(e.enc.Encode(text, nil, nil))
}
