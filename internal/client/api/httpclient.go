package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sst2020/ai-teaching-assistant-sub000/internal/client/telemetry"
	"github.com/sst2020/ai-teaching-assistant-sub000/internal/common"
)

// HTTPClient implements Client over net/http.
//
// Every dispatch passes through the same pipeline: attach a generated
// correlation id, attach the bearer credential when one is set, time the
// call, record telemetry, and return the payload or the mapped failure
// unchanged.
type HTTPClient struct {
	baseURL  string
	http     *http.Client
	recorder *telemetry.Recorder

	mu          sync.RWMutex
	accessToken string

	// newRequestID is a test seam for correlation id generation.
	newRequestID func() string
}

// NewHTTPClient constructs a client against baseURL. A nil recorder gets a
// fresh one with default buffer capacities.
func NewHTTPClient(baseURL string, timeout time.Duration, recorder *telemetry.Recorder) *HTTPClient {
	if recorder == nil {
		recorder = telemetry.NewRecorder()
	}
	return &HTTPClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: timeout},
		recorder:     recorder,
		newRequestID: func() string { return uuid.NewString() },
	}
}

// Recorder exposes the telemetry buffers for the diagnostics view.
func (c *HTTPClient) Recorder() *telemetry.Recorder {
	return c.recorder
}

// SetAccessToken installs token into the auth-header slot; subsequent
// requests carry it as a bearer credential.
func (c *HTTPClient) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// ClearAccessToken empties the auth-header slot.
func (c *HTTPClient) ClearAccessToken() {
	c.SetAccessToken("")
}

func (c *HTTPClient) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// do runs one call through the pipeline. body and out may be nil. The
// returned error is the mapped failure; telemetry has already been recorded
// by the time do returns.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	requestID := c.newRequestID()
	req.Header.Set(common.RequestIDHeaderName, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		failure := fmt.Errorf("%s %s: %w: %v", method, path, ErrUnavailable, err)
		c.record(method, path, 0, elapsed, requestID, Normalize(failure))
		return failure
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &Error{Status: resp.StatusCode, RequestID: requestID}
		var eb errorBody
		if readErr == nil && json.Unmarshal(raw, &eb) == nil {
			apiErr.Detail = eb.Detail
		}
		c.record(method, path, resp.StatusCode, elapsed, requestID, Normalize(apiErr))
		return apiErr
	}

	c.recorder.Performance.Append(telemetry.Record{
		URL:       path,
		Method:    method,
		Status:    resp.StatusCode,
		Elapsed:   elapsed,
		Timestamp: start,
		RequestID: requestID,
	})

	if out == nil {
		return nil
	}
	if readErr != nil {
		return fmt.Errorf("read response: %w", readErr)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// record appends one performance record and one error record for a failed
// dispatch.
func (c *HTTPClient) record(method, path string, status int, elapsed time.Duration, requestID, message string) {
	now := time.Now()
	c.recorder.Performance.Append(telemetry.Record{
		URL:       path,
		Method:    method,
		Status:    status,
		Elapsed:   elapsed,
		Timestamp: now,
		RequestID: requestID,
	})
	c.recorder.Errors.Append(telemetry.Record{
		URL:       path,
		Method:    method,
		Status:    status,
		Elapsed:   elapsed,
		Timestamp: now,
		RequestID: requestID,
		Message:   message,
	})
}

func (c *HTTPClient) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Logout(ctx context.Context, refreshToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", logoutRequest{RefreshToken: refreshToken}, nil)
}

func (c *HTTPClient) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := changePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
	return c.do(ctx, http.MethodPost, "/auth/change-password", body, nil)
}

func (c *HTTPClient) RevokeAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/revoke-all", nil, nil)
}

func (c *HTTPClient) Me(ctx context.Context) (*Identity, error) {
	var id Identity
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*Identity, error) {
	var id Identity
	if err := c.do(ctx, http.MethodPatch, "/auth/me", upd, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

func (c *HTTPClient) ListAssignments(ctx context.Context) ([]Assignment, error) {
	var list []Assignment
	if err := c.do(ctx, http.MethodGet, "/assignments", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *HTTPClient) GetAssignment(ctx context.Context, id string) (*Assignment, error) {
	var a Assignment
	if err := c.do(ctx, http.MethodGet, "/assignments/"+url.PathEscape(id), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) SubmitAssignment(ctx context.Context, id string, sub Submission) error {
	return c.do(ctx, http.MethodPost, "/assignments/"+url.PathEscape(id)+"/submissions", sub, nil)
}
