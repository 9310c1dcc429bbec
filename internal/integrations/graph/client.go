package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the pinned Graph API version used by every call.
const DefaultBaseURL = "https://graph.facebook.com/v22.0"

// HTTPStatusError captures non-2xx Graph responses. Message carries the
// error.message field Graph returns, when present.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Message    string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("graph: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.UpstreamMessage())
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// UpstreamMessage is the text forwarded to dashboard callers.
func (e *HTTPStatusError) UpstreamMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Body
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Credentials are the app-level secrets. Calls made on behalf of a business
// pass the business access token explicitly.
type Credentials struct {
	AppID       string
	AppSecret   string
	SystemToken string
}

// Client talks to the WhatsApp Business endpoints of the Graph API.
type Client struct {
	creds      Credentials
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	rest       *resty.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	c := &Client{
		creds:   creds,
		baseURL: DefaultBaseURL,
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		return nil, errors.New("graph: base URL must not be empty")
	}
	if c.httpClient != nil {
		c.rest = resty.NewWithClient(c.httpClient)
	} else {
		c.rest = resty.New()
	}
	c.rest.SetBaseURL(c.baseURL).
		SetTimeout(c.timeout).
		SetHeader("Accept", "application/json")
	return c, nil
}

// ExchangeToken trades an Embedded Signup code for a business access token.
func (c *Client) ExchangeToken(ctx context.Context, code string) (string, error) {
	if c.creds.AppID == "" || c.creds.AppSecret == "" {
		return "", errors.New("graph: app credentials not configured")
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client_id":     c.creds.AppID,
			"client_secret": c.creds.AppSecret,
			"code":          code,
		}).
		SetResult(&out).
		SetError(&apiError{}).
		Get("/oauth/access_token")
	if err := checkResponse(resp, err, "exchange token"); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("graph: exchange token: empty access_token")
	}
	return out.AccessToken, nil
}

// RequestVerification starts SMS verification of a phone number and returns
// the verification id.
func (c *Client) RequestVerification(ctx context.Context, phoneNumber string) (string, error) {
	if c.creds.SystemToken == "" {
		return "", errors.New("graph: system token not configured")
	}
	var out struct {
		ID string `json:"id"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(c.creds.SystemToken).
		SetBody(map[string]string{
			"phone_number":        phoneNumber,
			"verification_method": "SMS",
		}).
		SetResult(&out).
		SetError(&apiError{}).
		Post("/phone_numbers/verifications")
	if err := checkResponse(resp, err, "request verification"); err != nil {
		return "", err
	}
	return out.ID, nil
}

// VerifyCode confirms the SMS code and returns the new phone number id.
func (c *Client) VerifyCode(ctx context.Context, phoneNumber, code string) (string, error) {
	if c.creds.SystemToken == "" {
		return "", errors.New("graph: system token not configured")
	}
	var out struct {
		PhoneNumberID string `json:"phone_number_id"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(c.creds.SystemToken).
		SetBody(map[string]string{
			"phone_number": phoneNumber,
			"code":         code,
		}).
		SetResult(&out).
		SetError(&apiError{}).
		Post("/phone_numbers/verifications/verify")
	if err := checkResponse(resp, err, "verify code"); err != nil {
		return "", err
	}
	if out.PhoneNumberID == "" {
		return "", errors.New("graph: verify code: empty phone_number_id")
	}
	return out.PhoneNumberID, nil
}

// SubscribeWebhooks subscribes the app to a business account's webhooks.
func (c *Client) SubscribeWebhooks(ctx context.Context, wabaID, accessToken string) error {
	var out struct {
		Success bool `json:"success"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetPathParam("wabaID", wabaID).
		SetBody(map[string]any{}).
		SetResult(&out).
		SetError(&apiError{}).
		Post("/{wabaID}/subscribed_apps")
	if err := checkResponse(resp, err, "subscribe webhooks"); err != nil {
		return err
	}
	if !out.Success {
		return &HTTPStatusError{
			StatusCode: resp.StatusCode(),
			URL:        resp.Request.URL,
			Message:    "subscription not acknowledged",
			Body:       resp.String(),
		}
	}
	return nil
}

// SendText sends a plain text WhatsApp message and returns its wamid.
func (c *Client) SendText(ctx context.Context, phoneNumberID, accessToken, to, text string) (string, error) {
	var out struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetPathParam("phoneNumberID", phoneNumberID).
		SetBody(map[string]any{
			"messaging_product": "whatsapp",
			"to":                to,
			"type":              "text",
			"text":              map[string]string{"body": text},
		}).
		SetResult(&out).
		SetError(&apiError{}).
		Post("/{phoneNumberID}/messages")
	if err := checkResponse(resp, err, "send text"); err != nil {
		return "", err
	}
	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return "", errors.New("graph: send text: response has no message id")
	}
	return out.Messages[0].ID, nil
}

func checkResponse(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("graph: %s: %w", op, err)
	}
	if !resp.IsError() {
		return nil
	}
	statusErr := &HTTPStatusError{
		StatusCode: resp.StatusCode(),
		URL:        resp.Request.URL,
		Body:       resp.String(),
	}
	if apiErr, ok := resp.Error().(*apiError); ok && apiErr != nil {
		statusErr.Message = apiErr.Error.Message
	}
	log.Warn().Str("op", op).Int("status", statusErr.StatusCode).Str("message", statusErr.Message).Msg("graph api error")
	return statusErr
}
