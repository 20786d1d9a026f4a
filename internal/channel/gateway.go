package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/homelead/distributor/internal/models"
)

// sendPaths maps a payload kind to the gateway send endpoint.
var sendPaths = map[string]string{
	models.PayloadText:    "message/sendText",
	models.PayloadMedia:   "message/sendMedia",
	models.PayloadButtons: "message/sendButtons",
	models.PayloadList:    "message/sendList",
}

// Gateway is the HTTP Client implementation for the messaging gateway.
// Each channel instance carries its own endpoint and API key; the Gateway
// itself is stateless and safe for concurrent use.
type Gateway struct {
	http *http.Client
}

// NewGateway creates a Gateway. The client timeout is an outer bound;
// callers still pass per-call context deadlines.
func NewGateway(timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Gateway{http: &http.Client{Timeout: timeout}}
}

// Send posts the message to the instance's send endpoint for its payload
// kind. A non-2xx response is returned as an error alongside the status
// code so callers can record it.
func (g *Gateway) Send(ctx context.Context, inst models.ChannelInstance, req SendRequest) (SendResult, error) {
	path, ok := sendPaths[req.Kind]
	if !ok {
		return SendResult{}, fmt.Errorf("channel: unknown payload kind %q", req.Kind)
	}

	// The gateway wire format is the typed payload plus the recipient.
	var body map[string]interface{}
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return SendResult{}, fmt.Errorf("channel: decode payload: %w", err)
	}
	body["number"] = req.Address
	data, err := json.Marshal(body)
	if err != nil {
		return SendResult{}, fmt.Errorf("channel: encode request: %w", err)
	}

	url := joinURL(inst.Endpoint, path, inst.Name)
	resp, err := g.do(ctx, http.MethodPost, url, inst.APIKey, data)
	if err != nil {
		return SendResult{}, fmt.Errorf("channel: send via %s: %w", inst.Name, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	result := SendResult{StatusCode: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, fmt.Errorf("channel: send via %s: gateway status %d", inst.Name, resp.StatusCode)
	}
	return result, nil
}

// connectionStateResponse mirrors the gateway's state endpoint body.
type connectionStateResponse struct {
	Instance struct {
		State string `json:"state"`
	} `json:"instance"`
}

// ConnectionState probes the instance's connection state endpoint.
func (g *Gateway) ConnectionState(ctx context.Context, inst models.ChannelInstance) (StateResult, error) {
	url := joinURL(inst.Endpoint, "instance/connectionState", inst.Name)
	resp, err := g.do(ctx, http.MethodGet, url, inst.APIKey, nil)
	if err != nil {
		return StateResult{}, fmt.Errorf("channel: connection state of %s: %w", inst.Name, err)
	}
	defer resp.Body.Close()

	result := StateResult{StatusCode: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return result, nil
	}
	var parsed connectionStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return result, fmt.Errorf("channel: decode state of %s: %w", inst.Name, err)
	}
	result.State = parsed.Instance.State
	return result, nil
}

// Restart issues a restart command to the instance. Fire-and-forget from
// the caller's perspective; a non-2xx status is an error so the caller
// can log it, but nothing retries it within the same pass.
func (g *Gateway) Restart(ctx context.Context, inst models.ChannelInstance) error {
	url := joinURL(inst.Endpoint, "instance/restart", inst.Name)
	resp, err := g.do(ctx, http.MethodPost, url, inst.APIKey, nil)
	if err != nil {
		return fmt.Errorf("channel: restart %s: %w", inst.Name, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("channel: restart %s: gateway status %d", inst.Name, resp.StatusCode)
	}
	return nil
}

func (g *Gateway) do(ctx context.Context, method, url, apiKey string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("apikey", apiKey)
	}
	return g.http.Do(req)
}

func joinURL(endpoint string, parts ...string) string {
	url := strings.TrimRight(endpoint, "/")
	for _, p := range parts {
		url += "/" + p
	}
	return url
}
