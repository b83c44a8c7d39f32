// Package delivery performs one-shot JSON deliveries with an attached
// credential. It is used for both hops of the pipeline: the capture agent
// posting snapshots to the analysis gateway, and the gateway posting reviews
// to the review store. It never retries.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout  = 15 * time.Second
	maxResponseBody = 1 << 20
)

// Ack is the parsed 2xx response. Every field is optional.
type Ack struct {
	AcknowledgementID string `json:"acknowledgementId,omitempty"`
	ReceivedAt        string `json:"receivedAt,omitempty"`
	Message           string `json:"message,omitempty"`

	// StatusCode and Body are the raw response, kept for callers that need
	// more than the acknowledgement fields.
	StatusCode int    `json:"-"`
	Body       []byte `json:"-"`
}

// DeliveryError is a non-2xx response.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed: status=%d body=%s", e.StatusCode, e.Body)
}

// Message returns the store's {"error": ...} text when present, the raw body
// otherwise.
func (e *DeliveryError) Message() string {
	var env struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(e.Body), &env); err == nil && env.Error != "" {
		return env.Error
	}
	return strings.TrimSpace(e.Body)
}

// TransportError is a failure to get any response: DNS, refused connection,
// timeout.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client sends JSON payloads. The zero value is usable.
type Client struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	// Source, when set, is stamped into object payloads as "source" along
	// with "sentAt".
	Source string
	Now    func() time.Time
}

// New returns a client that stamps payloads with source.
func New(source string, timeout time.Duration) *Client {
	return &Client{Source: source, Timeout: timeout}
}

// Bearer formats a token as an Authorization header value. An empty token
// stays empty so no header is sent.
func Bearer(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		return token
	}
	return "Bearer " + token
}

// Send posts payload to endpoint with credential as the Authorization header
// value, verbatim. A 2xx with a body that does not parse still succeeds with
// an empty Ack.
func (c *Client) Send(ctx context.Context, endpoint string, payload any, credential string) (Ack, error) {
	return c.SendInto(ctx, endpoint, payload, credential, nil)
}

// SendInto is Send that also decodes a 2xx body into out. Decoding is best
// effort: out is left as is when the body does not fit.
func (c *Client) SendInto(ctx context.Context, endpoint string, payload any, credential string, out any) (Ack, error) {
	body, err := c.encode(payload)
	if err != nil {
		return Ack{}, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Ack{}, &TransportError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if credential != "" {
		req.Header.Set("Authorization", credential)
	}
	res, err := c.httpClient().Do(req)
	if err != nil {
		return Ack{}, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer res.Body.Close()
	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return Ack{}, &TransportError{Endpoint: endpoint, Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return Ack{}, &DeliveryError{StatusCode: res.StatusCode, Body: string(data)}
	}
	var ack Ack
	if err := json.Unmarshal(data, &ack); err != nil {
		ack = Ack{}
	}
	ack.StatusCode = res.StatusCode
	ack.Body = data
	if out != nil && len(data) > 0 {
		_ = json.Unmarshal(data, out)
	}
	return ack, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// encode marshals payload and, for JSON objects, adds source and sentAt.
// Non-object payloads are sent unchanged.
func (c *Client) encode(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if c.Source == "" {
		return data, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return data, nil
	}
	obj["source"] = c.Source
	obj["sentAt"] = c.now().UTC().Format(time.RFC3339Nano)
	return json.Marshal(obj)
}
