package users_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"

	"trailWatch/internal/api/handlers/http/users"
	mock_users "trailWatch/internal/api/handlers/http/users/mocks"
	"trailWatch/internal/domain"
	"trailWatch/pkg/e"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestHandler wires the handler to a factory that records the token it
// was called with and hands back the mock directory.
func newTestHandler(t *testing.T) (*users.Handler, *mock_users.MockUserDirectory, *string, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mock := mock_users.NewMockUserDirectory(ctrl)

	var seenToken string
	factory := func(token string) users.UserDirectory {
		seenToken = token
		return mock
	}
	return users.NewHandler(newTestLogger(), factory), mock, &seenToken, ctrl
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// --- token extraction ---

func TestUserList_NoToken(t *testing.T) {
	t.Parallel()

	h, _, seenToken, ctrl := newTestHandler(t)
	defer ctrl.Finish()

	r := httptest.NewRequest(http.MethodGet, "/users", nil)
	w := httptest.NewRecorder()

	h.UserList(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["error"] != "authentication required" || resp["message"] != "no access token provided" {
		t.Fatalf("unexpected body: %v", resp)
	}
	if *seenToken != "" {
		t.Fatal("factory must not be invoked without a token")
	}
}

func TestUserList_BearerToken(t *testing.T) {
	t.Parallel()

	h, mock, seenToken, ctrl := newTestHandler(t)
	defer ctrl.Finish()

	mock.EXPECT().
		List(gomock.Any(), domain.ListUsersRequest{StartIndex: "1", Count: "10", Filter: `userName eq "ranger"`}).
		Return(json.RawMessage(`{"totalResults":0,"Resources":[]}`), nil).
		Times(1)

	r := httptest.NewRequest(http.MethodGet,
		`/users?startIndex=1&count=10&filter=userName+eq+%22ranger%22`, nil)
	r.Header.Set("Authorization", "Bearer tok-123")
	w := httptest.NewRecorder()

	h.UserList(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if *seenToken != "tok-123" {
		t.Fatalf("bearer token not stripped: %q", *seenToken)
	}
	if !strings.Contains(w.Body.String(), "totalResults") {
		t.Fatalf("upstream body not passed through: %s", w.Body.String())
	}
}

func TestUserList_XAuthTokenFallback(t *testing.T) {
	t.Parallel()

	h, mock, seenToken, ctrl := newTestHandler(t)
	defer ctrl.Finish()

	mock.EXPECT().List(gomock.Any(), gomock.Any()).Return(json.RawMessage(`{}`), nil).Times(1)

	r := httptest.NewRequest(http.MethodGet, "/users", nil)
	r.Header.Set("X-Auth-Token", "fallback-tok")
	w := httptest.NewRecorder()

	h.UserList(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if *seenToken != "fallback-tok" {
		t.Fatalf("fallback header not used: %q", *seenToken)
	}
}

// --- CRUD ---

func TestUserGet_Passthrough(t *testing.T) {
	t.Parallel()

	h, mock, _, ctrl := newTestHandler(t)
	defer ctrl.Finish()

	raw := json.RawMessage(`{"id":"u-1","userName":"ranger"}`)
	mock.EXPECT().Get(gomock.Any(), "u-1").Return(raw, nil).Times(1)

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/users/u-1", nil), "id", "u-1")
	r.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()

	h.UserGet(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != string(raw) {
		t.Fatalf("body altered in passthrough: %s", w.Body.String())
	}
}

func TestUserCreate(t *testing.T) {
	t.Parallel()

	h, mock, _, ctrl := newTestHandler(t)
	defer ctrl.Finish()

	mock.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req domain.CreateUserRequest) (json.RawMessage, error) {
			if req.UserName != "ranger" || req.Email != "ranger@example.test" {
				t.Fatalf("request not bound: %+v", req)
			}
			return json.RawMessage(`{"id":"u-1"}`), nil
		}).
		Times(1)

	body := `{"userName":"ranger","email":"ranger@example.test","givenName":"Sam","familyName":"Reyes","password":"hunter2hunter2"}`
	r := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()

	h.UserCreate(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUserCreate_ShortPassword(t *testing.T) {
	t.Parallel()

	h, _, _, ctrl := newTestHandler(t)
	defer ctrl.Finish()

	body := `{"userName":"ranger","email":"ranger@example.test","givenName":"Sam","familyName":"Reyes","password":"short"}`
	r := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()

	h.UserCreate(w, r)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	fields, ok := resp["fields"].(map[string]any)
	if !ok || fields["password"] == nil {
		t.Fatalf("expected password field detail, got %v", resp)
	}
}

func TestUserCreate_InvalidJSON(t *testing.T) {
	t.Parallel()

	h, _, _, ctrl := newTestHandler(t)
	defer ctrl.Finish()

	r := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader("{broken"))
	r.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()

	h.UserCreate(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUserUpdate_SparseBody(t *testing.T) {
	t.Parallel()

	h, mock, _, ctrl := newTestHandler(t)
	defer ctrl.Finish()

	mock.EXPECT().
		Update(gomock.Any(), "u-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, req domain.UpdateUserRequest) (json.RawMessage, error) {
			if req.Active == nil || *req.Active != false {
				t.Fatalf("active not bound: %+v", req)
			}
			if req.Email != nil || req.GivenName != nil || req.FamilyName != nil {
				t.Fatalf("omitted fields must stay nil: %+v", req)
			}
			return json.RawMessage(`{"id":"u-1","active":false}`), nil
		}).
		Times(1)

	r := withURLParam(httptest.NewRequest(http.MethodPut, "/users/u-1",
		strings.NewReader(`{"active":false}`)), "id", "u-1")
	r.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()

	h.UserUpdate(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUserDelete(t *testing.T) {
	t.Parallel()

	h, mock, _, ctrl := newTestHandler(t)
	defer ctrl.Finish()

	mock.EXPECT().Delete(gomock.Any(), "u-1").Return(nil).Times(1)

	r := withURLParam(httptest.NewRequest(http.MethodDelete, "/users/u-1", nil), "id", "u-1")
	r.Header.Set("X-Auth-Token", "tok")
	w := httptest.NewRecorder()

	h.UserDelete(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

// --- upstream failures ---

func TestUserGet_UpstreamError(t *testing.T) {
	t.Parallel()

	h, mock, _, ctrl := newTestHandler(t)
	defer ctrl.Finish()

	mock.EXPECT().Get(gomock.Any(), "u-1").Return(nil, e.Wrap("scim get", e.ErrUpstream)).Times(1)

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/users/u-1", nil), "id", "u-1")
	r.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()

	h.UserGet(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["error"] != "operation failed" {
		t.Fatalf("upstream detail must not leak: %v", resp)
	}
}
