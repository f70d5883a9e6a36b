package enrollment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"course-billing/internal/config"

	"github.com/sirupsen/logrus"
)

// httpEnroller talks to the LMS enrollment API. The LMS treats repeated
// grants and revokes as no-ops, so the implementation stays a plain
// fire-per-call client with no local state.
type httpEnroller struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logrus.Entry
}

func NewHTTPEnroller(cfg *config.Enrollment, log *logrus.Logger) Enroller {
	return &httpEnroller{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		log:     log.WithField("component", "enrollment"),
	}
}

type enrollmentRequest struct {
	UserID    int64  `json:"user_id"`
	ProductID string `json:"product_id"`
	Action    string `json:"action"`
}

func (e *httpEnroller) Grant(ctx context.Context, localUserID int64, productID string) error {
	return e.post(ctx, enrollmentRequest{UserID: localUserID, ProductID: productID, Action: "grant"})
}

func (e *httpEnroller) Revoke(ctx context.Context, localUserID int64, productID string) error {
	return e.post(ctx, enrollmentRequest{UserID: localUserID, ProductID: productID, Action: "revoke"})
}

func (e *httpEnroller) post(ctx context.Context, payload enrollmentRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal enrollment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/enrollments", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("build enrollment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("enrollment request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("enrollment %s rejected: status=%d body=%s",
			payload.Action, resp.StatusCode, string(b))
	}

	e.log.WithFields(logrus.Fields{
		"action":     payload.Action,
		"user_id":    payload.UserID,
		"product_id": payload.ProductID,
	}).Info("enrollment call succeeded")
	return nil
}
