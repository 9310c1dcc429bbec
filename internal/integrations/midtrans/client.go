package midtrans

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	SandboxBaseURL    = "https://app.sandbox.midtrans.com/snap/v1"
	ProductionBaseURL = "https://app.midtrans.com/snap/v1"
)

// HTTPStatusError captures non-2xx Snap responses.
type HTTPStatusError struct {
	StatusCode int
	Messages   []string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("midtrans: unexpected status %d: %s", e.StatusCode, e.UpstreamMessage())
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

func (e *HTTPStatusError) UpstreamMessage() string {
	if len(e.Messages) > 0 {
		return strings.Join(e.Messages, "; ")
	}
	return e.Body
}

// TransactionRequest is the subset of a Snap charge the dashboard sends.
type TransactionRequest struct {
	OrderID     string
	GrossAmount int64
	Email       string
}

type Transaction struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

type snapRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

type snapError struct {
	ErrorMessages []string `json:"error_messages"`
}

// Client creates Snap payment transactions.
type Client struct {
	rest *resty.Client
}

type Option func(*options)

type options struct {
	baseURL    string
	httpClient *http.Client
}

func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

// NewClient authenticates with the server key; production selects the live
// Snap host unless a base URL option overrides it.
func NewClient(serverKey string, production bool, opts ...Option) (*Client, error) {
	if strings.TrimSpace(serverKey) == "" {
		return nil, errors.New("midtrans: server key must not be empty")
	}
	o := options{baseURL: SandboxBaseURL}
	if production {
		o.baseURL = ProductionBaseURL
	}
	for _, opt := range opts {
		opt(&o)
	}

	rest := resty.New()
	if o.httpClient != nil {
		rest = resty.NewWithClient(o.httpClient)
	}
	rest.SetBaseURL(o.baseURL).
		SetBasicAuth(serverKey, "").
		SetHeader("Accept", "application/json").
		SetTimeout(15 * time.Second)
	return &Client{rest: rest}, nil
}

// CreateTransaction opens a Snap payment and returns its token.
func (c *Client) CreateTransaction(ctx context.Context, req TransactionRequest) (Transaction, error) {
	var body snapRequest
	body.TransactionDetails.OrderID = req.OrderID
	body.TransactionDetails.GrossAmount = req.GrossAmount
	body.CustomerDetails.Email = req.Email

	var out Transaction
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&snapError{}).
		Post("/transactions")
	if err != nil {
		return Transaction{}, fmt.Errorf("midtrans: create transaction: %w", err)
	}
	if resp.IsError() {
		statusErr := &HTTPStatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
		if e, ok := resp.Error().(*snapError); ok && e != nil {
			statusErr.Messages = e.ErrorMessages
		}
		return Transaction{}, statusErr
	}
	if out.Token == "" {
		return Transaction{}, errors.New("midtrans: create transaction: empty token")
	}
	return out, nil
}
