package scim

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"

	"trailWatch/internal/config"
	"trailWatch/internal/domain"
	"trailWatch/pkg/e"
)

const (
	usersPath      = "/scim2/Users"
	coreUserSchema = "urn:ietf:params:scim:schemas:core:2.0:User"
)

// Client talks to the upstream SCIM 2.0 provider on behalf of one caller.
// It is built per request with the caller's own token and holds no state
// beyond that request: responses are passed through as raw JSON.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

func NewClient(cfg config.ScimConfig, token string, logger *slog.Logger) *Client {
	// callers sometimes send the header value verbatim
	token = strings.TrimPrefix(token, "Bearer ")

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/scim+json").
		SetHeader("Accept", "application/scim+json")

	if cfg.InsecureSkipVerify {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &Client{http: client, logger: logger}
}

func (c *Client) List(ctx context.Context, req domain.ListUsersRequest) (json.RawMessage, error) {
	const op = "scim.Client.List"

	r := c.http.R().SetContext(ctx)
	if req.StartIndex != "" {
		r.SetQueryParam("startIndex", req.StartIndex)
	}
	if req.Count != "" {
		r.SetQueryParam("count", req.Count)
	}
	if req.Filter != "" {
		r.SetQueryParam("filter", req.Filter)
	}

	resp, err := r.Get(usersPath)
	return c.result(op, resp, err)
}

func (c *Client) Get(ctx context.Context, id string) (json.RawMessage, error) {
	const op = "scim.Client.Get"

	resp, err := c.http.R().SetContext(ctx).Get(usersPath + "/" + id)
	return c.result(op, resp, err)
}

func (c *Client) Create(ctx context.Context, req domain.CreateUserRequest) (json.RawMessage, error) {
	const op = "scim.Client.Create"

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	payload := map[string]any{
		"schemas":  []string{coreUserSchema},
		"userName": req.UserName,
		"emails": []map[string]any{
			{"value": req.Email, "primary": true},
		},
		"name": map[string]any{
			"givenName":  req.GivenName,
			"familyName": req.FamilyName,
		},
		"password": req.Password,
		"active":   active,
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(payload).Post(usersPath)
	return c.result(op, resp, err)
}

// Update sends a sparse payload: only fields the caller supplied are
// present, so omitted attributes are never touched upstream.
func (c *Client) Update(ctx context.Context, id string, req domain.UpdateUserRequest) (json.RawMessage, error) {
	const op = "scim.Client.Update"

	payload := map[string]any{
		"schemas": []string{coreUserSchema},
	}

	if req.Email != nil {
		payload["emails"] = []map[string]any{
			{"value": *req.Email, "primary": true},
		}
	}
	if req.GivenName != nil || req.FamilyName != nil {
		name := map[string]any{}
		if req.GivenName != nil {
			name["givenName"] = *req.GivenName
		}
		if req.FamilyName != nil {
			name["familyName"] = *req.FamilyName
		}
		payload["name"] = name
	}
	if req.Active != nil {
		payload["active"] = *req.Active
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(payload).Put(usersPath + "/" + id)
	return c.result(op, resp, err)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	const op = "scim.Client.Delete"

	resp, err := c.http.R().SetContext(ctx).Delete(usersPath + "/" + id)
	_, err = c.result(op, resp, err)
	return err
}

// result applies the strict failure policy: any transport error or
// non-2xx status is logged with full detail and surfaced as ErrUpstream.
func (c *Client) result(op string, resp *resty.Response, err error) (json.RawMessage, error) {
	if err != nil {
		c.logger.Error("scim request failed",
			slog.String("op", op),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("%s: %w", op, e.ErrUpstream)
	}
	if resp.IsError() {
		c.logger.Error("scim non-success response",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode()),
			slog.String("body", resp.String()),
		)
		return nil, fmt.Errorf("%s: status %d: %w", op, resp.StatusCode(), e.ErrUpstream)
	}
	return json.RawMessage(resp.Body()), nil
}
