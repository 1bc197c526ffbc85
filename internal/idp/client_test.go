package idp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lariatlabs/dirsync/internal/idp"
)

func tokenResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":300}`))
}

func TestFetchEnabledUsers_Paginates(t *testing.T) {
	all := []map[string]interface{}{
		{"id": "u1", "username": "alice", "email": "alice@x", "firstName": "Alice", "lastName": "A", "enabled": true},
		{"id": "u2", "username": "bob", "email": "bob@x", "firstName": "Bob", "lastName": "B", "enabled": true},
		{"id": "u3", "username": "carol", "email": "carol@x", "firstName": "Carol", "lastName": "C", "enabled": true},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/protocol/openid-connect/token"):
			tokenResponse(w)
		case strings.Contains(r.URL.Path, "/users") && !strings.HasSuffix(r.URL.Path, "/count"):
			q := r.URL.Query()

			first, _ := strconv.Atoi(q.Get("first"))
			maxN, _ := strconv.Atoi(q.Get("max"))

			end := first + maxN
			if end > len(all) {
				end = len(all)
			}

			var page []map[string]interface{}
			if first < len(all) {
				page = all[first:end]
			}

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(page)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := idp.New(idp.Config{
		AdminURL:     srv.URL,
		Realm:        "dirsync",
		ClientID:     "svc",
		ClientSecret: "secret",
		HTTPClient:   srv.Client(),
	})

	users, err := client.FetchEnabledUsers(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "u1", users[0].ID)
	assert.Equal(t, "alice@x", users[0].Email)
	assert.Equal(t, "carol@x", users[2].Email)
}

func TestTestConnection_TrueOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/protocol/openid-connect/token"):
			tokenResponse(w)
		case strings.HasSuffix(r.URL.Path, "/count"):
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("42"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := idp.New(idp.Config{AdminURL: srv.URL, Realm: "dirsync", HTTPClient: srv.Client()})

	assert.True(t, client.TestConnection(context.Background()))
}

func TestTestConnection_FalseOnTransportError(t *testing.T) {
	client := idp.New(idp.Config{AdminURL: "http://127.0.0.1:1", Realm: "dirsync"})

	assert.False(t, client.TestConnection(context.Background()))
}

func TestFetchEnabledUsers_ReauthenticatesOnceOn401(t *testing.T) {
	var (
		tokenCalls atomic.Int32
		usersCalls atomic.Int32
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/protocol/openid-connect/token"):
			tokenCalls.Add(1)
			tokenResponse(w)
		case strings.Contains(r.URL.Path, "/users"):
			n := usersCalls.Add(1)
			if n == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := idp.New(idp.Config{AdminURL: srv.URL, Realm: "dirsync", HTTPClient: srv.Client()})

	users, err := client.FetchEnabledUsers(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, int32(2), tokenCalls.Load())
	assert.Equal(t, int32(2), usersCalls.Load())
}

func TestFetchEnabledUsers_AuthErrorAfterRetryExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/protocol/openid-connect/token"):
			tokenResponse(w)
		case strings.Contains(r.URL.Path, "/users"):
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := idp.New(idp.Config{AdminURL: srv.URL, Realm: "dirsync", HTTPClient: srv.Client()})

	_, err := client.FetchEnabledUsers(context.Background(), 10)
	require.Error(t, err)

	var authErr *idp.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusForbidden, authErr.StatusCode)
}

func TestFetchEnabledUsers_RequestErrorOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/protocol/openid-connect/token"):
			tokenResponse(w)
		case strings.Contains(r.URL.Path, "/users"):
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := idp.New(idp.Config{AdminURL: srv.URL, Realm: "dirsync", HTTPClient: srv.Client()})

	_, err := client.FetchEnabledUsers(context.Background(), 10)
	require.Error(t, err)

	var reqErr *idp.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
}

func TestNew_BuildsTokenURLFromRealm(t *testing.T) {
	var tokenCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/realms/acme/protocol/openid-connect/token":
			tokenCalls.Add(1)
			tokenResponse(w)
		case "/admin/realms/acme/users/count":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("0"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := idp.New(idp.Config{AdminURL: srv.URL, Realm: "acme", HTTPClient: srv.Client()})
	require.NotNil(t, client)
	assert.True(t, client.TestConnection(context.Background()))
	assert.Equal(t, int32(1), tokenCalls.Load())
}
