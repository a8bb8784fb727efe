package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Opener opens the provider's streaming response body for one request.
type Opener interface {
	Open(ctx context.Context, ep Endpoint, req ChatRequest) (io.ReadCloser, error)
}

// HTTPOpener posts chat-completion requests to an OpenAI-compatible API.
type HTTPOpener struct {
	client *http.Client
}

// NewHTTPOpener creates an HTTPOpener. A nil client uses a client without
// an overall timeout: streams are bounded by the relay idle timeout instead.
func NewHTTPOpener(client *http.Client) *HTTPOpener {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPOpener{client: client}
}

// Open sends the request and returns the event-stream body on a 2xx reply.
func (o *HTTPOpener) Open(ctx context.Context, ep Endpoint, cr ChatRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(cr)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := strings.TrimSuffix(ep.APIBase, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+ep.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	return resp.Body, nil
}
