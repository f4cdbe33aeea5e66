package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/backlane/agentstream/llm"
)

const defaultBaseURL = "https://api.anthropic.com"

// Client opens streaming Messages API calls over HTTP. The response body is
// handed back raw; the caller feeds it through the event parser.
type Client struct {
	baseURL    string
	builder    *RequestBuilder
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a Client. An empty baseURL selects the production API;
// a nil httpClient selects http.DefaultClient.
func NewClient(builder *RequestBuilder, baseURL string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		builder:    builder,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "anthropicClient").Logger(),
	}
}

// Builder returns the request builder this client sends with.
func (c *Client) Builder() *RequestBuilder {
	return c.builder
}

// OpenStream sends a streaming request and returns the raw response body.
// Any non-success status or transport failure is returned as an llm transport
// error; the caller owns closing the body on success.
func (c *Client) OpenStream(ctx context.Context, req *Request) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, llm.NewTransportError("marshaling request", 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, llm.NewTransportError("creating request", 0, err)
	}
	for k, v := range c.builder.Headers(true) {
		httpReq.Header.Set(k, v)
	}

	c.logger.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools)).
		Bool("thinking", req.Thinking != nil).
		Msg("Opening streaming request")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, llm.NewTransportError("sending request", 0, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer func() { _ = httpResp.Body.Close() }()
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, c.statusError(httpResp.StatusCode, respBody)
	}

	return httpResp.Body, nil
}

// statusError converts a non-success response into a typed error.
func (c *Client) statusError(statusCode int, body []byte) error {
	message := string(body)
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	c.logger.Warn().Int("status", statusCode).Str("message", message).Msg("API request failed")

	if statusCode == http.StatusTooManyRequests {
		return llm.NewRateLimitError(message, nil)
	}
	return llm.NewTransportError(fmt.Sprintf("API error (status %d): %s", statusCode, message), statusCode, nil)
}
