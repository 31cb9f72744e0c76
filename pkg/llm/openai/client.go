package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/quickbuttons/pkg/llm"
)

// DefaultAzureAPIVersion is used when an Azure config names no version.
const DefaultAzureAPIVersion = "2024-02-15-preview"

const maxErrorBody = 4096

// Client implements the llm.Provider interface for OpenAI-compatible APIs,
// including Azure OpenAI deployments.
type Client struct {
	config     *llm.Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a new OpenAI-compatible client with the given configuration.
// Overall request duration is left to the caller's context so long streams
// are not cut off; only the wait for response headers is bounded.
func New(config *llm.Config) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 60 * time.Second
	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Transport: transport},
		limiter:    limiter,
	}
}

// chatRequest is the OpenAI chat completions request body.
type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float32      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// chatResponse is the OpenAI chat completions response body.
type chatResponse struct {
	Choices []choice      `json:"choices"`
	Usage   responseUsage `json:"usage"`
}

type choice struct {
	Message llm.Message `json:"message"`
}

// responseUsage is the OpenAI token usage format.
type responseUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// streamChunk is one server-sent event payload of a streamed completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *Client) isAzure() bool {
	return strings.EqualFold(c.config.Provider, "azure")
}

func (c *Client) endpoint() string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	if c.isAzure() {
		version := c.config.APIVersion
		if version == "" {
			version = DefaultAzureAPIVersion
		}
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			base, url.PathEscape(c.config.Model), url.QueryEscape(version))
	}
	return base + "/chat/completions"
}

func (c *Client) newRequest(ctx context.Context, messages []llm.Message, stream bool) (*http.Request, error) {
	reqBody := chatRequest{
		Messages: messages,
		Stream:   stream,
	}
	// Azure takes the model from the deployment path.
	if !c.isAzure() {
		reqBody.Model = c.config.Model
	}
	if c.config.MaxTokens > 0 {
		reqBody.MaxTokens = c.config.MaxTokens
	}
	if c.config.Temperature != 0 {
		temp := c.config.Temperature
		reqBody.Temperature = &temp
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.isAzure() {
		req.Header.Set("api-key", c.config.APIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, nil
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &llm.APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// Complete sends a chat completion request and returns the full response.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	req, err := c.newRequest(ctx, messages, false)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &llm.Response{
		Content: chatResp.Choices[0].Message.Content,
		Usage: llm.Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:  chatResp.Usage.TotalTokens,
		},
	}, nil
}

// Stream sends a streaming chat completion request and returns a channel of
// content deltas decoded from the server-sent events. Errors before the first
// byte of the body are returned directly; a stream that breaks off later ends
// with a Delta carrying an error wrapping llm.ErrStreamInterrupted. When ctx
// is cancelled the channel is closed without further deltas.
func (c *Client) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.Delta, error) {
	req, err := c.newRequest(ctx, messages, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}

	ch := make(chan llm.Delta, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		if err := readEvents(ctx, resp.Body, ch); err != nil && ctx.Err() == nil {
			select {
			case ch <- llm.Delta{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

func readEvents(ctx context.Context, body io.Reader, ch chan<- llm.Delta) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	finished := false
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return nil
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("%w: bad event: %v", llm.ErrStreamInterrupted, err)
		}
		for _, choice := range chunk.Choices {
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				finished = true
			}
			if choice.Delta.Content == "" {
				continue
			}
			select {
			case ch <- llm.Delta{Content: choice.Delta.Content}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", llm.ErrStreamInterrupted, err)
	}
	if finished {
		return nil
	}
	return fmt.Errorf("%w: connection closed before completion", llm.ErrStreamInterrupted)
}
