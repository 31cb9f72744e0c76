package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/user/quickbuttons/internal/chat"
	"github.com/user/quickbuttons/internal/runtime"
	"github.com/user/quickbuttons/internal/types"
	"github.com/user/quickbuttons/pkg/llm"
	"github.com/user/quickbuttons/pkg/llm/openai"
)

// DefaultOpenAIEndpoint is used when an openai button names no endpoint.
const DefaultOpenAIEndpoint = "https://api.openai.com/v1"

// FallbackKeyEnv supplies the API key for buttons that configure neither
// apiKey nor apiKeyEnv.
const FallbackKeyEnv = "OPENAI_API_KEY"

// ProviderFactory builds a provider for one button's settings.
type ProviderFactory func(cfg *llm.Config) llm.Provider

func openaiFactory(cfg *llm.Config) llm.Provider { return openai.New(cfg) }

// LLM drives a chat with an OpenAI-compatible endpoint, streaming the reply
// through the request's progress callback.
type LLM struct {
	history *chat.History
	factory ProviderFactory
	getenv  func(string) string
	now     func() time.Time

	mu        sync.Mutex
	providers map[string]llm.Provider
}

// NewLLM creates the chat handler. A nil factory uses the OpenAI client.
func NewLLM(history *chat.History, factory ProviderFactory) *LLM {
	if factory == nil {
		factory = openaiFactory
	}
	return &LLM{
		history:   history,
		factory:   factory,
		getenv:    os.Getenv,
		now:       time.Now,
		providers: make(map[string]llm.Provider),
	}
}

func (h *LLM) Type() types.ButtonType { return types.TypeLLM }

func (h *LLM) Validate(p types.Params) error {
	provider := strings.ToLower(p.String("provider"))
	switch provider {
	case "", "openai", "azure":
	default:
		return runtime.Invalid(types.TypeLLM, "provider", "must be openai or azure, got %q", provider)
	}
	if !p.Has("model") {
		return runtime.Invalid(types.TypeLLM, "model", "is required")
	}
	if provider == "azure" && !p.Has("endpoint") {
		return runtime.Invalid(types.TypeLLM, "endpoint", "is required for azure")
	}
	if p.Has("endpoint") {
		if _, err := NormalizeURL(p.String("endpoint")); err != nil {
			return runtime.Invalid(types.TypeLLM, "endpoint", "%v", err)
		}
	}
	if !p.Has("apiKey") && !p.Has("apiKeyEnv") && h.getenv(FallbackKeyEnv) == "" {
		return runtime.Invalid(types.TypeLLM, "apiKey", "apiKey or apiKeyEnv is required when %s is unset", FallbackKeyEnv)
	}
	for _, k := range []string{"maxTokens", "maxContextTokens"} {
		if p.Has(k) {
			if n, ok := p.Int(k); !ok || n < 0 {
				return runtime.Invalid(types.TypeLLM, k, "must be a non-negative integer")
			}
		}
	}
	if p.Has("temperature") {
		if t, ok := p.Float("temperature"); !ok || t < 0 || t > 2 {
			return runtime.Invalid(types.TypeLLM, "temperature", "must be between 0 and 2")
		}
	}
	if p.Has("requestsPerSecond") {
		if r, ok := p.Float("requestsPerSecond"); !ok || r <= 0 || math.IsInf(r, 0) {
			return runtime.Invalid(types.TypeLLM, "requestsPerSecond", "must be a positive number")
		}
	}
	if p.Has("stream") {
		if _, ok := flag(p, "stream"); !ok {
			return runtime.Invalid(types.TypeLLM, "stream", "must be true or false")
		}
	}
	if _, err := timeoutParam(types.TypeLLM, p); err != nil {
		return err
	}
	return nil
}

func (h *LLM) config(p types.Params) (*llm.Config, error) {
	key := p.String("apiKey")
	if key == "" {
		env := p.String("apiKeyEnv")
		if env == "" {
			env = FallbackKeyEnv
		}
		key = h.getenv(env)
		if key == "" {
			return nil, fmt.Errorf("%w: environment variable %s is empty", runtime.ErrAuthFailed, env)
		}
	}
	cfg := &llm.Config{
		Provider:   strings.ToLower(p.String("provider")),
		BaseURL:    p.String("endpoint"),
		APIKey:     key,
		APIVersion: p.String("apiVersion"),
		Model:      p.String("model"),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIEndpoint
	} else {
		cfg.BaseURL, _ = NormalizeURL(cfg.BaseURL)
	}
	if n, ok := p.Int("maxTokens"); ok {
		cfg.MaxTokens = int(n)
	}
	if t, ok := p.Float("temperature"); ok {
		cfg.Temperature = float32(t)
	}
	if r, ok := p.Float("requestsPerSecond"); ok {
		cfg.RequestsPerSecond = r
	}
	return cfg, nil
}

// provider returns a cached client so its connection pool and rate limiter
// are shared across invocations with the same settings.
func (h *LLM) provider(cfg *llm.Config) llm.Provider {
	key := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%g|%g", cfg.Provider, cfg.BaseURL, cfg.APIKey, cfg.APIVersion, cfg.Model, cfg.MaxTokens, cfg.Temperature, cfg.RequestsPerSecond)
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.providers[key]; ok {
		return p
	}
	p := h.factory(cfg)
	h.providers[key] = p
	return p
}

func (h *LLM) Execute(ctx context.Context, req runtime.Request) (runtime.Result, error) {
	b := req.Button
	if err := h.Validate(b.Params); err != nil {
		return runtime.Result{}, err
	}
	prompt := strings.TrimSpace(req.Input)
	if res, ok, err := h.command(b.ID, prompt); ok {
		return res, err
	}
	if prompt == "" {
		prompt = strings.TrimSpace(Expand(b.Params.String("prompt"), h.now(), req.Vars))
	}
	if prompt == "" {
		return runtime.Result{}, runtime.Invalid(types.TypeLLM, "prompt", "no input given and no default prompt set")
	}
	cfg, err := h.config(b.Params)
	if err != nil {
		return runtime.Result{}, err
	}

	budget, _ := b.Params.Int("maxContextTokens")
	messages := h.history.Build(b.ID, b.Params.String("system"), prompt, int(budget))

	provider := h.provider(cfg)
	if streaming, _ := flag(b.Params, "stream"); b.Params.Has("stream") && !streaming {
		resp, err := provider.Complete(ctx, messages)
		if err != nil {
			return runtime.Result{}, providerError(ctx, err)
		}
		req.Emit(resp.Content)
		h.history.Append(b.ID, "user", prompt)
		h.history.Append(b.ID, "assistant", resp.Content)
		return runtime.Result{Output: resp.Content, Message: "reply complete"}, nil
	}

	deltas, err := provider.Stream(ctx, messages)
	if err != nil {
		return runtime.Result{}, providerError(ctx, err)
	}

	var reply strings.Builder
	for d := range deltas {
		if ctx.Err() != nil {
			break
		}
		if d.Err != nil {
			return runtime.Result{Output: reply.String()}, providerError(ctx, d.Err)
		}
		reply.WriteString(d.Content)
		req.Emit(d.Content)
	}
	if err := ctx.Err(); err != nil {
		return runtime.Result{Output: reply.String()}, providerError(ctx, err)
	}

	h.history.Append(b.ID, "user", prompt)
	h.history.Append(b.ID, "assistant", reply.String())
	return runtime.Result{Output: reply.String(), Message: "reply complete"}, nil
}

// command handles the conversation commands "/reset" and "/export <path>".
func (h *LLM) command(id types.ButtonID, input string) (runtime.Result, bool, error) {
	name, arg, _ := strings.Cut(input, " ")
	switch name {
	case "/reset":
		h.history.Reset(id)
		return runtime.Result{Message: "conversation cleared"}, true, nil
	case "/export":
		path := strings.TrimSpace(arg)
		if path == "" {
			return runtime.Result{}, true, runtime.Invalid(types.TypeLLM, "input", "/export needs a file path")
		}
		if err := h.history.Export(id, path); err != nil {
			return runtime.Result{}, true, err
		}
		return runtime.Result{Output: path, Message: "transcript exported"}, true, nil
	}
	return runtime.Result{}, false, nil
}

func providerError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, llm.ErrAuth):
		return fmt.Errorf("%w: %w", runtime.ErrAuthFailed, err)
	case errors.Is(err, llm.ErrRateLimited):
		return fmt.Errorf("%w: %w", runtime.ErrRateLimited, err)
	case errors.Is(err, llm.ErrStreamInterrupted):
		return fmt.Errorf("%w: %w", runtime.ErrStreamInterrupted, err)
	}
	return networkError(ctx, err)
}
