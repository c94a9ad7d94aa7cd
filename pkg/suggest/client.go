package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"

	envutil "github.com/projectdiscovery/utils/env"
)

var (
	DefaultAPIURL = envutil.GetEnvOrDefault("CLEANIP_API_URL", "https://api.openai.com/v1/chat/completions")
	DefaultModel  = envutil.GetEnvOrDefault("CLEANIP_MODEL", "gpt-4o-mini")
	APIKeyEnv     = envutil.GetEnvOrDefault("CLEANIP_API_KEY", "")
)

// cap on the response body read; model output past this point is noise
const maxResponseSize = "2MB"

// Options contains the configuration options for the suggestion client
type Options struct {
	APIURL  string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client asks an OpenAI-compatible chat completions endpoint for
// candidate addresses
type Client struct {
	options    Options
	httpClient *http.Client
}

// NewClient creates a suggestion client, filling unset options from the
// environment defaults
func NewClient(options Options) *Client {
	if options.APIURL == "" {
		options.APIURL = DefaultAPIURL
	}
	if options.APIKey == "" {
		options.APIKey = APIKeyEnv
	}
	if options.Model == "" {
		options.Model = DefaultModel
	}
	if options.Timeout == 0 {
		options.Timeout = 30 * time.Second
	}

	transport := http.DefaultTransport

	client := &http.Client{
		Timeout: options.Timeout,
	}

	// Create a custom RoundTripper to add headers to every request
	apiKey := options.APIKey
	client.Transport = roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}
		req.Header.Set("Content-Type", "application/json")
		return transport.RoundTrip(req)
	})

	return &Client{options: options, httpClient: client}
}

// chatRequest is the request payload for the chat completions endpoint
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Suggest asks the model for up to count candidate addresses, carrying
// the exclusion list in the prompt. The returned list is best-effort:
// well-formedness and deduplication are the caller's concern.
func (c *Client) Suggest(ctx context.Context, count int, exclude []string) ([]string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.options.Model,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(count, exclude)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.options.APIURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	maxSize, err := humanize.ParseBytes(maxResponseSize)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response size cap %s: %w", maxResponseSize, err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxSize)))
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	content := gjson.GetBytes(body, "choices.0.message.content").String()
	return ParseSuggestions(content), nil
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (rf roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return rf(req)
}
