package chatsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"waba-admin/internal/domain"
)

// APIClient implements Backend against the dashboard HTTP API.
type APIClient struct {
	rest *resty.Client
}

type APIOption func(*resty.Client)

// WithAccessToken sends a Supabase access token on every request.
func WithAccessToken(token string) APIOption {
	return func(r *resty.Client) {
		if token != "" {
			r.SetAuthToken(token)
		}
	}
}

// WithAPIHTTPClient reuses the transport of httpClient, e.g. one trusting a
// private CA.
func WithAPIHTTPClient(httpClient *http.Client) APIOption {
	return func(r *resty.Client) {
		if httpClient != nil && httpClient.Transport != nil {
			r.SetTransport(httpClient.Transport)
		}
	}
}

func NewAPIClient(baseURL string, opts ...APIOption) (*APIClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("chatsync: api base URL must not be empty")
	}
	rest := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(20 * time.Second)
	for _, opt := range opts {
		opt(rest)
	}
	return &APIClient{rest: rest}, nil
}

type apiResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

func (r apiResult) err(resp *resty.Response, fallback string) error {
	if r.Error != "" {
		if r.Details != "" {
			return fmt.Errorf("%s: %s", r.Error, r.Details)
		}
		return errors.New(r.Error)
	}
	if resp != nil && resp.IsError() {
		return fmt.Errorf("%s (status %d)", fallback, resp.StatusCode())
	}
	return errors.New(fallback)
}

func (c *APIClient) GetContacts(ctx context.Context, phoneNumberID string) (ContactsData, error) {
	var out struct {
		apiResult
		Contacts     []string                      `json:"contacts"`
		LastMessages map[string]domain.LastMessage `json:"lastMessages"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]string{"phoneNumberId": phoneNumberID}).
		SetResult(&out).
		SetError(&out).
		Post("/api/get-contacts")
	if err != nil {
		return ContactsData{}, err
	}
	if resp.IsError() || !out.Success {
		return ContactsData{}, out.err(resp, "Gagal memuat kontak")
	}
	return ContactsData{Contacts: out.Contacts, LastMessages: out.LastMessages}, nil
}

func (c *APIClient) GetMessages(ctx context.Context, q MessagesQuery) (MessagesPage, error) {
	var out struct {
		apiResult
		MessagesPage
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(q).
		SetResult(&out).
		SetError(&out).
		Post("/api/get-messages")
	if err != nil {
		return MessagesPage{}, err
	}
	if resp.IsError() || !out.Success {
		return MessagesPage{}, out.err(resp, "Gagal memuat pesan")
	}
	return out.MessagesPage, nil
}

func (c *APIClient) SendMessage(ctx context.Context, req SendRequest) (string, error) {
	var out struct {
		apiResult
		MessageID string `json:"message_id"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/api/send-message")
	if err != nil {
		return "", err
	}
	if resp.IsError() || !out.Success {
		return "", out.err(resp, "Gagal mengirim pesan")
	}
	return out.MessageID, nil
}

// SessionInfo is the signed-in user and their account details.
type SessionInfo struct {
	User            domain.User            `json:"user"`
	Credentials     domain.WABACredentials `json:"waba"`
	HasCompleteData bool                   `json:"hasCompleteData"`
}

// Session resolves the access token configured on the client.
func (c *APIClient) Session(ctx context.Context) (SessionInfo, error) {
	var out struct {
		apiResult
		SessionInfo
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&out).
		Get("/api/session")
	if err != nil {
		return SessionInfo{}, err
	}
	if resp.IsError() || !out.Success {
		return SessionInfo{}, out.err(resp, "session lookup failed")
	}
	return out.SessionInfo, nil
}
