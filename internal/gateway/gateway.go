// Package gateway is the Query/Fetch boundary to the planning backend. The
// sync core only consumes the interface; the HTTP implementation threads
// etags through If-Match headers so stale saves surface as conflicts.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"planningsync/pkg/domain"
)

// Criteria is an opaque query filter forwarded to the backend search
// endpoint.
type Criteria map[string]string

// Gateway issues fetch and save requests against the authoritative backend.
type Gateway interface {
	GetEvent(ctx context.Context, id string) (domain.Event, error)
	GetPlanning(ctx context.Context, id string) (domain.Planning, error)
	GetCoverage(ctx context.Context, id string) (domain.Coverage, error)
	GetAssignment(ctx context.Context, id string) (domain.Assignment, error)

	QueryEvents(ctx context.Context, criteria Criteria) ([]domain.Event, error)
	QueryPlannings(ctx context.Context, criteria Criteria) ([]domain.Planning, error)
	QueryAssignments(ctx context.Context, criteria Criteria) ([]domain.Assignment, error)

	SaveEvent(ctx context.Context, original domain.Event, changes domain.Event) (domain.Event, error)
	SavePlanning(ctx context.Context, original domain.Planning, changes domain.Planning) (domain.Planning, error)
}

// ErrConflict reports a stale-etag save rejected by the backend. Conflicting
// edits require user-directed resolution; no automatic retry happens here.
var ErrConflict = errors.New("stale etag: item was modified on the server")

// APIError carries the backend error payload. The backend embeds an optional
// human-readable message under _message.
type APIError struct {
	StatusCode int
	Message    string `json:"_message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend error (%d)", e.StatusCode)
}

// HTTPGateway talks to the backend REST API.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway constructs a gateway against the given base URL. A nil
// client gets a default with a request timeout.
func NewHTTPGateway(baseURL string, client *http.Client) *HTTPGateway {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPGateway{baseURL: baseURL, client: client}
}

var _ Gateway = (*HTTPGateway)(nil)

// GetEvent fetches one event by id.
func (g *HTTPGateway) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	var event domain.Event
	err := g.getJSON(ctx, "/events/"+url.PathEscape(id), &event)
	return event, err
}

// GetPlanning fetches one planning item by id.
func (g *HTTPGateway) GetPlanning(ctx context.Context, id string) (domain.Planning, error) {
	var plan domain.Planning
	err := g.getJSON(ctx, "/planning/"+url.PathEscape(id), &plan)
	return plan, err
}

// GetCoverage fetches one coverage by id.
func (g *HTTPGateway) GetCoverage(ctx context.Context, id string) (domain.Coverage, error) {
	var cov domain.Coverage
	err := g.getJSON(ctx, "/coverage/"+url.PathEscape(id), &cov)
	return cov, err
}

// GetAssignment fetches one assignment by id.
func (g *HTTPGateway) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	var assignment domain.Assignment
	err := g.getJSON(ctx, "/assignments/"+url.PathEscape(id), &assignment)
	return assignment, err
}

type itemsEnvelope[T any] struct {
	Items []T `json:"_items"`
}

// QueryEvents searches events matching the criteria.
func (g *HTTPGateway) QueryEvents(ctx context.Context, criteria Criteria) ([]domain.Event, error) {
	return queryItems[domain.Event](ctx, g, "/events", criteria)
}

// QueryPlannings searches planning items matching the criteria.
func (g *HTTPGateway) QueryPlannings(ctx context.Context, criteria Criteria) ([]domain.Planning, error) {
	return queryItems[domain.Planning](ctx, g, "/planning", criteria)
}

// QueryAssignments searches assignments matching the criteria.
func (g *HTTPGateway) QueryAssignments(ctx context.Context, criteria Criteria) ([]domain.Assignment, error) {
	return queryItems[domain.Assignment](ctx, g, "/assignments", criteria)
}

func queryItems[T any](ctx context.Context, g *HTTPGateway, path string, criteria Criteria) ([]T, error) {
	values := url.Values{}
	for k, v := range criteria {
		values.Set(k, v)
	}
	target := path
	if len(values) > 0 {
		target += "?" + values.Encode()
	}
	var envelope itemsEnvelope[T]
	if err := g.getJSON(ctx, target, &envelope); err != nil {
		return nil, err
	}
	return envelope.Items, nil
}

// SaveEvent persists changes to an event, threading the original's etag
// through If-Match.
func (g *HTTPGateway) SaveEvent(ctx context.Context, original domain.Event, changes domain.Event) (domain.Event, error) {
	var saved domain.Event
	err := g.patchJSON(ctx, "/events/"+url.PathEscape(original.ID), original.ETag, changes, &saved)
	return saved, err
}

// SavePlanning persists changes to a planning item.
func (g *HTTPGateway) SavePlanning(ctx context.Context, original domain.Planning, changes domain.Planning) (domain.Planning, error) {
	var saved domain.Planning
	err := g.patchJSON(ctx, "/planning/"+url.PathEscape(original.ID), original.ETag, changes, &saved)
	return saved, err
}

func (g *HTTPGateway) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return g.do(req, out)
}

func (g *HTTPGateway) patchJSON(ctx context.Context, path, etag string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, g.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if etag != "" {
		req.Header.Set("If-Match", etag)
	}
	return g.do(req, out)
}

func (g *HTTPGateway) do(req *http.Request, out any) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPreconditionFailed || resp.StatusCode == http.StatusConflict {
		io.Copy(io.Discard, resp.Body)
		return ErrConflict
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if payload, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)); readErr == nil {
			_ = json.Unmarshal(payload, apiErr)
		}
		return apiErr
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
