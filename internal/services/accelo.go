package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"accelo-slack-notifier/internal/log"
	"accelo-slack-notifier/internal/models"
)

// AcceloPageSize is the fixed page size of every list call. A page shorter
// than this ends pagination.
const AcceloPageSize = 50

// AcceloQuery carries the optional _fields, _filters and _search parameters.
type AcceloQuery struct {
	Fields  string
	Filters models.Filters
	Search  string
}

// AcceloClient is the Accelo REST client. It issues one authenticated request
// per call; there are no retries and no caching.
type AcceloClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	Requests     *AcceloResource[models.Request]
	Issues       *AcceloResource[models.Issue]
	Tasks        *AcceloResource[models.Task]
	Activities   *AcceloResource[models.Activity]
	Affiliations *AcceloResource[models.Affiliation]
	Companies    *AcceloResource[models.Company]
	Contacts     *AcceloResource[models.Contact]
	Staff        *AcceloResource[models.Staff]
}

// AcceloOption configures an AcceloClient.
type AcceloOption func(*AcceloClient)

// WithRateLimit caps outbound requests per second.
func WithRateLimit(perSecond float64, burst int) AcceloOption {
	return func(c *AcceloClient) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewAcceloClient creates a client for the API rooted at baseURL, e.g.
// https://acme.api.accelo.com/api/v0/. httpClient must attach the bearer
// token; see NewAcceloHTTPClient.
func NewAcceloClient(baseURL string, httpClient *http.Client, opts ...AcceloOption) *AcceloClient {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	c := &AcceloClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Requests = NewAcceloResource[models.Request](c, "requests")
	c.Issues = NewAcceloResource[models.Issue](c, "issues")
	c.Tasks = NewAcceloResource[models.Task](c, "tasks")
	c.Activities = NewAcceloResource[models.Activity](c, "activities")
	c.Affiliations = NewAcceloResource[models.Affiliation](c, "affiliations")
	c.Companies = NewAcceloResource[models.Company](c, "companies")
	c.Contacts = NewAcceloResource[models.Contact](c, "contacts")
	c.Staff = NewAcceloResource[models.Staff](c, "staff")

	return c
}

// AcceloCredentials selects how the bearer token is obtained.
type AcceloCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	// AccessToken, when set, is used as-is and never refreshed.
	AccessToken string
}

// NewAcceloHTTPClient returns an http.Client that attaches the Accelo bearer
// token to every request. With client credentials the token is exchanged
// lazily and refreshed before it expires.
func NewAcceloHTTPClient(ctx context.Context, creds AcceloCredentials) *http.Client {
	if creds.AccessToken != "" {
		return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: creds.AccessToken,
			TokenType:   "Bearer",
		}))
	}

	cc := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return cc.Client(ctx)
}

// Do performs one request against path (relative to the API base) and
// decodes the "response" member of the envelope into out. out may be nil.
func (c *AcceloClient) Do(
	ctx context.Context, method, path string, query url.Values, payload, out any,
) error {
	endpoint := c.baseURL + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s payload: %w", method, path, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait for %s %s: %w", method, path, err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error(ctx, "Accelo request failed",
			"error", err,
			"method", method,
			"path", path,
			"operation", "accelo_request",
		)
		return fmt.Errorf("%w: %s %s: %w", models.ErrRemoteCallFailed, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading %s %s: %w", models.ErrRemoteCallFailed, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error(ctx, "Accelo returned non-success status",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"operation", "accelo_request",
		)
		return fmt.Errorf("%w: %s %s returned status %d", models.ErrRemoteCallFailed, method, path, resp.StatusCode)
	}

	var envelope models.Envelope
	if err := json.Unmarshal(text, &envelope); err != nil {
		return fmt.Errorf("%w: %s %s: %w", models.ErrMalformedResponse, method, path, err)
	}
	if out == nil {
		return nil
	}
	if len(envelope.Response) == 0 {
		return fmt.Errorf("%w: %s %s has no response member", models.ErrMalformedResponse, method, path)
	}
	if err := json.Unmarshal(envelope.Response, out); err != nil {
		return fmt.Errorf("%w: %s %s: %w", models.ErrMalformedResponse, method, path, err)
	}

	return nil
}

// listPayload builds the POST-as-GET body. Empty filters and search are left
// out so Accelo applies no filtering.
func listPayload(q AcceloQuery, withFields bool) map[string]any {
	payload := map[string]any{}
	if withFields && q.Fields != "" {
		payload["_fields"] = q.Fields
	}
	if len(q.Filters) > 0 {
		payload["_filters"] = q.Filters
	}
	if q.Search != "" {
		payload["_search"] = q.Search
	}
	return payload
}

// FetchAll drains a collection endpoint page by page. It stops once a page
// holds fewer than AcceloPageSize items, so a collection whose size is a
// multiple of the page size costs one extra, empty round trip. Items are
// returned in server order.
func FetchAll[T any](ctx context.Context, c *AcceloClient, path string, q AcceloQuery) ([]T, error) {
	payload := listPayload(q, true)

	var all []T
	for page := 0; ; page++ {
		query := url.Values{
			"_method": {"get"},
			"_limit":  {strconv.Itoa(AcceloPageSize)},
			"_page":   {strconv.Itoa(page)},
		}

		var items []T
		if err := c.Do(ctx, http.MethodPost, path, query, payload, &items); err != nil {
			return nil, fmt.Errorf("failed to list %s page %d: %w", path, page, err)
		}
		all = append(all, items...)

		if len(items) < AcceloPageSize {
			break
		}
	}

	log.Debug(ctx, "Fetched Accelo collection", "path", path, "items", len(all))
	if all == nil {
		all = []T{}
	}
	return all, nil
}

// IsRemoteFailure reports whether err came from the remote API rather than
// from the caller.
func IsRemoteFailure(err error) bool {
	return errors.Is(err, models.ErrRemoteCallFailed) || errors.Is(err, models.ErrMalformedResponse)
}
