package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// completionModel is the fixed model used for plan generation; the spec
// does not expose this as a caller-configurable knob.
const completionModel = "gpt-4o-mini"

const completionTemperature = 0.2

// Client is the thin interface the Planner drives: system prompt in, user
// prompt in, assistant content out. Everything above this line — JSON
// extraction, validation, the forbidden-operator retry — is the Planner's
// concern, not the client's.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// OpenAIClient implements Client against an OpenAI-compatible chat
// completions endpoint.
type OpenAIClient struct {
	Endpoint   string // defaults to https://api.openai.com/v1/chat/completions
	APIKey     string
	HTTPClient *http.Client
}

// NewOpenAIClientFromEnv builds a client from OPENAI_API_KEY. Returns
// ErrPlannerAuthMissing if the variable is unset.
func NewOpenAIClientFromEnv() (*OpenAIClient, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, ErrPlannerAuthMissing
	}
	return &OpenAIClient{
		Endpoint:   "https://api.openai.com/v1/chat/completions",
		APIKey:     key,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// LazyEnvClient defers reading OPENAI_API_KEY until the first Complete
// call, so a process can wire a Planner at startup without failing
// commands that never call GeneratePlan (run --plan, decide, cancel, runs
// list). endpointOverride, if non-empty, is applied to the resolved client
// before use.
type LazyEnvClient struct {
	endpointOverride string
}

// NewLazyEnvClient returns a Client that resolves OPENAI_API_KEY on first
// use rather than at construction time.
func NewLazyEnvClient(endpointOverride string) *LazyEnvClient {
	return &LazyEnvClient{endpointOverride: endpointOverride}
}

func (l *LazyEnvClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	client, err := NewOpenAIClientFromEnv()
	if err != nil {
		return "", err
	}
	if l.endpointOverride != "" {
		client.Endpoint = l.endpointOverride
	}
	return client.Complete(ctx, systemPrompt, userPrompt)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse tolerates the two shapes an OpenAI-compatible endpoint may
// return for message content: a plain string, or an array of typed content
// parts (only the "text" parts are meaningful here).
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends a single-turn chat completion request and returns the
// first choice's assistant content.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       completionModel,
		Temperature: completionTemperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := extractUpstreamMessage(raw)
		return "", &UpstreamError{StatusCode: resp.StatusCode, Message: msg}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal completion response: %w", err)
	}
	if parsed.Error != nil {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyOutput
	}

	content, err := decodeContent(parsed.Choices[0].Message.Content)
	if err != nil {
		return "", fmt.Errorf("decode message content: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyOutput
	}
	return content, nil
}

// decodeContent handles both message-content shapes an OpenAI-compatible
// endpoint may send: a bare JSON string, or an array of typed parts whose
// text fields are concatenated in order.
func decodeContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("unrecognized content shape: %w", err)
	}
	var b strings.Builder
	for _, p := range parts {
		if p.Type == "text" || p.Type == "" {
			b.WriteString(p.Text)
		}
	}
	return b.String(), nil
}

func extractUpstreamMessage(raw []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return parsed.Error.Message
}
