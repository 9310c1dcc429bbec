// Package supabase resolves dashboard sessions against Supabase Auth.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"

	"waba-admin/internal/domain"
)

// ErrUnauthorized is returned when Supabase rejects the access token.
var ErrUnauthorized = errors.New("supabase: invalid or expired access token")

const (
	userCacheTTL     = 5 * time.Minute
	userCacheCleanup = 10 * time.Minute
)

type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type authError struct {
	Message string `json:"msg"`
	Error   string `json:"error_description"`
}

// AuthClient looks up the user behind a Supabase access token. Successful
// lookups are cached per token for a few minutes.
type AuthClient struct {
	rest  *resty.Client
	users *cache.Cache
}

type Option func(*resty.Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(r *resty.Client) {
		if httpClient != nil && httpClient.Transport != nil {
			r.SetTransport(httpClient.Transport)
		}
	}
}

func NewAuthClient(projectURL, anonKey string, opts ...Option) (*AuthClient, error) {
	projectURL = strings.TrimRight(strings.TrimSpace(projectURL), "/")
	if projectURL == "" {
		return nil, errors.New("supabase: project URL must not be empty")
	}
	if strings.TrimSpace(anonKey) == "" {
		return nil, errors.New("supabase: anon key must not be empty")
	}
	rest := resty.New().
		SetBaseURL(projectURL).
		SetHeader("apikey", anonKey).
		SetTimeout(10 * time.Second)
	for _, opt := range opts {
		opt(rest)
	}
	return &AuthClient{
		rest:  rest,
		users: cache.New(userCacheTTL, userCacheCleanup),
	}, nil
}

// GetUser returns the user owning accessToken.
func (c *AuthClient) GetUser(ctx context.Context, accessToken string) (domain.User, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return domain.User{}, ErrUnauthorized
	}
	if v, found := c.users.Get(accessToken); found {
		return v.(domain.User), nil
	}

	var out authUser
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&out).
		SetError(&authError{}).
		Get("/auth/v1/user")
	if err != nil {
		return domain.User{}, fmt.Errorf("supabase: get user: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return domain.User{}, ErrUnauthorized
	case resp.IsError():
		return domain.User{}, fmt.Errorf("supabase: get user: status %d: %s", resp.StatusCode(), resp.String())
	case out.ID == "":
		return domain.User{}, ErrUnauthorized
	}

	user := domain.User{ID: out.ID, Email: out.Email}
	c.users.Set(accessToken, user, cache.DefaultExpiration)
	return user, nil
}
