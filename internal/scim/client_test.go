package scim_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailWatch/internal/config"
	"trailWatch/internal/domain"
	"trailWatch/internal/scim"
	"trailWatch/pkg/e"
)

type captured struct {
	method string
	path   string
	query  map[string]string
	header http.Header
	body   map[string]any
}

// newUpstream fakes the SCIM provider: it records the last request and
// answers with the given status and body.
func newUpstream(t *testing.T, status int, respBody string) (*httptest.Server, *captured) {
	t.Helper()

	rec := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.header = r.Header.Clone()
		rec.query = map[string]string{}
		for k := range r.URL.Query() {
			rec.query[k] = r.URL.Query().Get(k)
		}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			rec.body = map[string]any{}
			_ = json.Unmarshal(raw, &rec.body)
		} else {
			rec.body = nil
		}

		w.Header().Set("Content-Type", "application/scim+json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func newClient(baseURL, token string) *scim.Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	return scim.NewClient(config.ScimConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}, token, logger)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestClient_List_QueryAndHeaders(t *testing.T) {
	t.Parallel()

	srv, rec := newUpstream(t, http.StatusOK, `{"totalResults":0,"Resources":[]}`)
	c := newClient(srv.URL, "tok-123")

	raw, err := c.List(context.Background(), domain.ListUsersRequest{
		StartIndex: "1",
		Count:      "25",
		Filter:     `userName eq "ranger"`,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalResults":0,"Resources":[]}`, string(raw))

	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/scim2/Users", rec.path)
	assert.Equal(t, "1", rec.query["startIndex"])
	assert.Equal(t, "25", rec.query["count"])
	assert.Equal(t, `userName eq "ranger"`, rec.query["filter"])
	assert.Equal(t, "Bearer tok-123", rec.header.Get("Authorization"))
	assert.Equal(t, "application/scim+json", rec.header.Get("Content-Type"))
	assert.Equal(t, "application/scim+json", rec.header.Get("Accept"))
}

func TestClient_List_OmitsEmptyParams(t *testing.T) {
	t.Parallel()

	srv, rec := newUpstream(t, http.StatusOK, `{}`)
	c := newClient(srv.URL, "tok")

	_, err := c.List(context.Background(), domain.ListUsersRequest{})
	require.NoError(t, err)
	assert.Empty(t, rec.query)
}

func TestClient_TokenPrefixNormalized(t *testing.T) {
	t.Parallel()

	srv, rec := newUpstream(t, http.StatusOK, `{}`)
	// header value arrives verbatim, prefix included
	c := newClient(srv.URL, "Bearer tok-456")

	_, err := c.Get(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-456", rec.header.Get("Authorization"))
	assert.Equal(t, "/scim2/Users/u-1", rec.path)
}

func TestClient_Create_PayloadShape(t *testing.T) {
	t.Parallel()

	srv, rec := newUpstream(t, http.StatusCreated, `{"id":"u-9"}`)
	c := newClient(srv.URL, "tok")

	raw, err := c.Create(context.Background(), domain.CreateUserRequest{
		UserName:   "ranger",
		Email:      "ranger@example.test",
		GivenName:  "Sam",
		FamilyName: "Reyes",
		Password:   "hunter2hunter2",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u-9"}`, string(raw))

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, []any{"urn:ietf:params:scim:schemas:core:2.0:User"}, rec.body["schemas"])
	assert.Equal(t, "ranger", rec.body["userName"])
	assert.Equal(t, "hunter2hunter2", rec.body["password"])
	assert.Equal(t, true, rec.body["active"], "active defaults to true")

	emails, ok := rec.body["emails"].([]any)
	require.True(t, ok, "emails must be an array: %v", rec.body["emails"])
	require.Len(t, emails, 1)
	email := emails[0].(map[string]any)
	assert.Equal(t, "ranger@example.test", email["value"])
	assert.Equal(t, true, email["primary"])

	name, ok := rec.body["name"].(map[string]any)
	require.True(t, ok, "name must be nested: %v", rec.body["name"])
	assert.Equal(t, "Sam", name["givenName"])
	assert.Equal(t, "Reyes", name["familyName"])
}

func TestClient_Create_ExplicitInactive(t *testing.T) {
	t.Parallel()

	srv, rec := newUpstream(t, http.StatusCreated, `{}`)
	c := newClient(srv.URL, "tok")

	_, err := c.Create(context.Background(), domain.CreateUserRequest{
		UserName: "x", Email: "x@example.test", GivenName: "a", FamilyName: "b",
		Password: "hunter2hunter2", Active: boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, false, rec.body["active"])
}

func TestClient_Update_SparsePayload(t *testing.T) {
	t.Parallel()

	srv, rec := newUpstream(t, http.StatusOK, `{"id":"u-1","active":false}`)
	c := newClient(srv.URL, "tok")

	_, err := c.Update(context.Background(), "u-1", domain.UpdateUserRequest{
		Active: boolPtr(false),
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/scim2/Users/u-1", rec.path)

	keys := make([]string, 0, len(rec.body))
	for k := range rec.body {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"schemas", "active"}, keys,
		"omitted attributes must not appear in the payload")
	assert.Equal(t, false, rec.body["active"])
}

func TestClient_Update_PartialName(t *testing.T) {
	t.Parallel()

	srv, rec := newUpstream(t, http.StatusOK, `{}`)
	c := newClient(srv.URL, "tok")

	_, err := c.Update(context.Background(), "u-1", domain.UpdateUserRequest{
		GivenName: strPtr("Sam"),
	})
	require.NoError(t, err)

	name, ok := rec.body["name"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Sam", name["givenName"])
	_, hasFamily := name["familyName"]
	assert.False(t, hasFamily, "unsupplied name part must be absent")
	_, hasEmails := rec.body["emails"]
	assert.False(t, hasEmails)
}

func TestClient_Delete(t *testing.T) {
	t.Parallel()

	srv, rec := newUpstream(t, http.StatusNoContent, "")
	c := newClient(srv.URL, "tok")

	err := c.Delete(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/scim2/Users/u-1", rec.path)
}

func TestClient_UpstreamFailureMapped(t *testing.T) {
	t.Parallel()

	srv, _ := newUpstream(t, http.StatusBadGateway, `{"detail":"backend exploded"}`)
	c := newClient(srv.URL, "tok")

	_, err := c.Get(context.Background(), "u-1")
	require.ErrorIs(t, err, e.ErrUpstream)

	err = c.Delete(context.Background(), "u-1")
	require.ErrorIs(t, err, e.ErrUpstream)
}

func TestClient_TransportErrorMapped(t *testing.T) {
	t.Parallel()

	// closed server: connection refused
	srv, _ := newUpstream(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	c := newClient(url, "tok")
	_, err := c.List(context.Background(), domain.ListUsersRequest{})
	require.ErrorIs(t, err, e.ErrUpstream)
}
