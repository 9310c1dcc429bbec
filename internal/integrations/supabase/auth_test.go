package supabase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetUser_CachesPerToken(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.Equal(t, "/auth/v1/user", r.URL.Path)
		require.Equal(t, "anon", r.Header.Get("apikey"))
		require.Equal(t, "Bearer jwt-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"user-1","email":"owner@toko.id"}`))
	}))
	defer srv.Close()

	c, err := NewAuthClient(srv.URL, "anon", WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		u, err := c.GetUser(context.Background(), "jwt-1")
		require.NoError(t, err)
		require.Equal(t, "user-1", u.ID)
		require.Equal(t, "owner@toko.id", u.Email)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetUser_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
	}))
	defer srv.Close()

	c, err := NewAuthClient(srv.URL, "anon")
	require.NoError(t, err)

	_, err = c.GetUser(context.Background(), "bad")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetUser_EmptyToken(t *testing.T) {
	c, err := NewAuthClient("http://localhost", "anon")
	require.NoError(t, err)
	_, err = c.GetUser(context.Background(), " ")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetUser_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewAuthClient(srv.URL, "anon")
	require.NoError(t, err)
	_, err = c.GetUser(context.Background(), "jwt")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnauthorized)
}

func TestNewAuthClient_Validation(t *testing.T) {
	_, err := NewAuthClient("", "anon")
	require.Error(t, err)
	_, err = NewAuthClient("http://x", "")
	require.Error(t, err)
}
