// Package sendrelay forwards outgoing messages to the messaging backend that
// owns delivery and persistence.
package sendrelay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPStatusError is returned when the backend rejects the send.
type HTTPStatusError struct {
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("sendrelay: unexpected status %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

func (e *HTTPStatusError) UpstreamMessage() string {
	return e.Message
}

type Request struct {
	PhoneNumberID string `json:"phone_number_id"`
	To            string `json:"to"`
	Text          string `json:"text"`
	AccessToken   string `json:"access_token"`
}

type result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

type Client struct {
	rest *resty.Client
}

type Option func(*resty.Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(r *resty.Client) {
		if httpClient != nil && httpClient.Transport != nil {
			r.SetTransport(httpClient.Transport)
		}
	}
}

func NewClient(endpoint, apiKey string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("sendrelay: endpoint must not be empty")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("sendrelay: api key must not be empty")
	}
	rest := resty.New().
		SetBaseURL(endpoint).
		SetHeader("x-api-key", apiKey).
		SetTimeout(15 * time.Second)
	for _, opt := range opts {
		opt(rest)
	}
	return &Client{rest: rest}, nil
}

// Send relays one text message and returns the id assigned by the backend.
func (c *Client) Send(ctx context.Context, req Request) (string, error) {
	var out result
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/send-message")
	if err != nil {
		return "", fmt.Errorf("sendrelay: send: %w", err)
	}
	if resp.IsError() || !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "send rejected by backend"
		}
		return "", &HTTPStatusError{StatusCode: resp.StatusCode(), Message: msg}
	}
	return out.MessageID, nil
}
