// Package api is the HTTP client for the learning-platform resource API.
// It maps the remote DTOs and the shared {error:{code,message}} envelope
// into the types the sync controllers consume.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mikol1980/aitutor/pkg/errmodel"
)

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithAuthToken sets the Authorization header on all requests.
func WithAuthToken(token string) ClientOption {
	return func(c *Client) { c.authToken = token }
}

// WithValidation enables JSON-schema validation of response bodies.
// A response that does not match its endpoint schema is reported as a
// transport failure.
func WithValidation() ClientOption {
	return func(c *Client) { c.validate = true }
}

// Client talks to the remote resource API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
	validate   bool
}

// NewClient creates a Client targeting baseURL. The default transport is
// instrumented with otelhttp so every request carries trace context.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sections fetches the catalog of top-level groupings.
func (c *Client) Sections(ctx context.Context) (SectionListResponse, error) {
	var out SectionListResponse
	err := c.do(ctx, http.MethodGet, "/sections", nil, nil, &out, schemaSectionList)
	return out, err
}

// UserProgress fetches the per-user progress overview, optionally filtered.
func (c *Client) UserProgress(ctx context.Context, f ProgressFilters) (ProgressOverviewResponse, error) {
	q := url.Values{}
	if f.SectionID != "" {
		q.Set("section_id", f.SectionID)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	var out ProgressOverviewResponse
	err := c.do(ctx, http.MethodGet, "/user-progress", q, nil, &out, schemaProgressOverview)
	return out, err
}

// Session fetches one session's details.
func (c *Client) Session(ctx context.Context, sessionID string) (SessionDetails, error) {
	var out SessionDetails
	err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID), nil, nil, &out, schemaSession)
	return out, err
}

// Sessions fetches the session list page described by q.
func (c *Client) Sessions(ctx context.Context, q PageQuery) (SessionListResponse, error) {
	var out SessionListResponse
	err := c.do(ctx, http.MethodGet, "/sessions", pageValues(q), nil, &out, "")
	return out, err
}

// SessionMessages fetches one page of a session's message history.
func (c *Client) SessionMessages(ctx context.Context, sessionID string, q PageQuery) (MessageListResponse, error) {
	var out MessageListResponse
	err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID)+"/messages", pageValues(q), nil, &out, schemaMessageList)
	return out, err
}

// CreateSessionMessage appends one message to a session.
func (c *Client) CreateSessionMessage(ctx context.Context, sessionID string, cmd CreateMessageCommand) (SessionMessage, error) {
	var out SessionMessage
	err := c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(sessionID)+"/messages", nil, cmd, &out, schemaMessage)
	return out, err
}

// EndSession closes a session with the assistant's summary.
func (c *Client) EndSession(ctx context.Context, sessionID, aiSummary string) (SessionDetails, error) {
	var out SessionDetails
	body := map[string]string{"ai_summary": aiSummary}
	err := c.do(ctx, http.MethodPut, "/sessions/"+url.PathEscape(sessionID)+"/end", nil, body, &out, schemaSession)
	return out, err
}

// Profile fetches the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodGet, "/profile", nil, nil, &out, schemaProfile)
	return out, err
}

// UpdateProfile updates tutorial-completion state and returns the profile.
func (c *Client) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodPut, "/profile", nil, cmd, &out, schemaProfile)
	return out, err
}

func pageValues(q PageQuery) url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	return v
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any, schema string) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errmodel.Transport("encode request", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return errmodel.Transport("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errmodel.Transport(method+" "+path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errmodel.Transport("read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errmodel.FromResponse(resp.StatusCode, raw)
	}
	if c.validate && schema != "" {
		if err := validateResponse(schema, raw); err != nil {
			return errmodel.Transport("response shape for "+path, err)
		}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return errmodel.Transport("decode response", err)
		}
	}
	return nil
}
