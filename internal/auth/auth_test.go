package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eteran/bucketd/internal/auth"

	"github.com/stretchr/testify/require"
)

const (
	AdminUser     = "bucketadmin"
	AdminPassword = "bucketadmin"
)

func TestBasicAuth_Succeeds(t *testing.T) {
	t.Parallel()

	e := auth.NewBasicAuthEngine(AdminUser, AdminPassword)

	req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "http://example.com/_admin/uploads", nil)
	req.SetBasicAuth(AdminUser, AdminPassword)

	user, err := e.AuthenticateRequest(t.Context(), req)
	require.NoError(t, err, "expected basic authentication to succeed")
	require.NotNil(t, user, "expected non-nil user from successful basic authentication")
	require.Equal(t, AdminUser, user.Name, "user name")
}

func TestBasicAuth_WrongPassword(t *testing.T) {
	t.Parallel()

	e := auth.NewBasicAuthEngine(AdminUser, AdminPassword)

	req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "http://example.com/_admin/uploads", nil)
	req.SetBasicAuth(AdminUser, "nope")

	user, err := e.AuthenticateRequest(t.Context(), req)
	require.NoError(t, err, "wrong credentials are not an error")
	require.Nil(t, user, "expected nil user for wrong password")
}

func TestBasicAuth_MissingHeader(t *testing.T) {
	t.Parallel()

	e := auth.NewBasicAuthEngine(AdminUser, AdminPassword)

	req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "http://example.com/_admin/uploads", nil)

	user, err := e.AuthenticateRequest(t.Context(), req)
	require.NoError(t, err, "missing header is not an error")
	require.Nil(t, user, "expected nil user without credentials")
}

func TestCompoundAuth_FirstMatchWins(t *testing.T) {
	t.Parallel()

	e := auth.NewCompoundAuthEngine(
		auth.NewBasicAuthEngine("ops", "secret"),
		auth.NewBasicAuthEngine(AdminUser, AdminPassword),
	)

	req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "http://example.com/_admin/uploads", nil)
	req.SetBasicAuth(AdminUser, AdminPassword)

	user, err := e.AuthenticateRequest(t.Context(), req)
	require.NoError(t, err, "expected compound authentication to succeed")
	require.NotNil(t, user, "expected the second engine to accept")
	require.Equal(t, AdminUser, user.Name, "user name")

	req.SetBasicAuth("someone", "else")
	user, err = e.AuthenticateRequest(t.Context(), req)
	require.NoError(t, err, "rejection is not an error")
	require.Nil(t, user, "no engine should accept")
}

func TestTokenAuth(t *testing.T) {
	t.Parallel()

	e := auth.NewTokenAuthEngine("scrape-token")

	tests := []struct {
		name   string
		header string
		ok     bool
	}{
		{"bearer", "Bearer scrape-token", true},
		{"lower case scheme", "bearer scrape-token", true},
		{"wrong token", "Bearer other", false},
		{"basic scheme", "Basic scrape-token", false},
		{"missing", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "http://example.com/_admin/metrics", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			user, err := e.AuthenticateRequest(t.Context(), req)
			require.NoError(t, err, "token check is never an error")
			if tt.ok {
				require.NotNil(t, user, "expected the token to be accepted")
				require.Equal(t, auth.TokenUser, user.Name, "user name")
			} else {
				require.Nil(t, user, "expected the request to be rejected")
			}
		})
	}
}

func TestCompoundAuth_BasicOrToken(t *testing.T) {
	t.Parallel()

	e := auth.NewCompoundAuthEngine(
		auth.NewBasicAuthEngine(AdminUser, AdminPassword),
		auth.NewTokenAuthEngine("scrape-token"),
	)

	req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "http://example.com/_admin/metrics", nil)
	req.Header.Set("Authorization", "Bearer scrape-token")
	user, err := e.AuthenticateRequest(t.Context(), req)
	require.NoError(t, err, "token authentication error")
	require.NotNil(t, user, "token should be accepted")
	require.Equal(t, auth.TokenUser, user.Name, "token user")

	req.SetBasicAuth(AdminUser, AdminPassword)
	user, err = e.AuthenticateRequest(t.Context(), req)
	require.NoError(t, err, "basic authentication error")
	require.NotNil(t, user, "basic credentials should be accepted")
	require.Equal(t, AdminUser, user.Name, "basic user")
}
