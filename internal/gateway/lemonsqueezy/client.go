package lemonsqueezy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"course-billing/internal/config"
	"course-billing/internal/gateway"

	"github.com/sirupsen/logrus"
)

// client wraps the provider's JSON:API over HTTP. All calls carry a bounded
// timeout so a slow provider fails the attempt cleanly instead of pinning
// the webhook-handling path.
type client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logrus.Entry
}

func newClient(cfg *config.LemonSqueezy, log *logrus.Logger) *client {
	return &client{
		httpClient: &http.Client{
			Timeout: 25 * time.Second,
		},
		baseURL: cfg.BaseApiURL,
		apiKey:  cfg.APIKey,
		log:     log.WithField("component", "lemonsqueezy_client"),
	}
}

func (c *client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *client) patch(ctx context.Context, path string, body interface{}, out interface{}) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, out)
}

func (c *client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return gateway.WrapError(gateway.ErrValidation, "encode request body", err)
		}
		reader = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return gateway.WrapError(gateway.ErrTransport, "build request", err)
	}
	req.Header.Set("Accept", "application/vnd.api+json")
	req.Header.Set("Content-Type", "application/vnd.api+json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	// Authorization is never logged.
	c.log.WithFields(logrus.Fields{"method": method, "path": path}).Debug("provider request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gateway.WrapError(gateway.ErrTransport, fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return gateway.WrapError(gateway.ErrTransport, "read response body", err)
	}

	if resp.StatusCode >= 400 {
		return c.statusError(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return gateway.WrapError(gateway.ErrInvalidResponse, "decode provider response", err)
	}
	return nil
}

func (c *client) statusError(status int, body []byte) error {
	detail := ""
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && len(apiErr.Errors) > 0 {
		detail = apiErr.Errors[0].Detail
		if detail == "" {
			detail = apiErr.Errors[0].Title
		}
	}
	msg := fmt.Sprintf("provider returned %d", status)
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}

	var kind gateway.ErrorKind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = gateway.ErrAuth
	case status == http.StatusNotFound:
		kind = gateway.ErrNotFound
	case status == http.StatusTooManyRequests:
		kind = gateway.ErrRateLimited
	default:
		kind = gateway.ErrInvalidResponse
	}

	c.log.WithFields(logrus.Fields{"status": status, "kind": kind}).Warn(msg)
	return gateway.NewError(kind, msg)
}
