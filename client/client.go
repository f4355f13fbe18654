// Package client is the dashboard-side adapter for the monitoring service.
// It performs the polling reads and the guarded incident writes, applying
// the same validation the server enforces before any request leaves the
// process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"coldwatch/core/incident"
	"coldwatch/core/rbac"
	"coldwatch/core/utils"
)

const csrfHeader = "X-CSRFToken"

type Client struct {
	baseURL string
	http    *http.Client
	logger  *utils.Logger

	// mu guards the capability cache; the poller refreshes it concurrently
	// with user-triggered writes.
	mu        sync.Mutex
	csrfToken string
	perms     rbac.PermissionSet
	loggedIn  bool
}

func New(baseURL string, logger *utils.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second, Jar: jar},
		logger:  logger,
	}
}

// Login authenticates and caches the permission set the server reports for
// this user. The permission cache backs the local write guards.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login/", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", incident.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: login status %d", incident.ErrServerRejected, resp.StatusCode)
	}
	var out struct {
		Permissions rbac.PermissionSet `json:"permissions"`
		CSRFToken   string             `json:"csrf_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("%w: decode login response: %v", incident.ErrServerRejected, err)
	}
	c.mu.Lock()
	c.csrfToken = out.CSRFToken
	c.perms = out.Permissions
	c.loggedIn = true
	c.mu.Unlock()
	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	err := c.post(ctx, "/auth/logout/", nil, nil)
	c.mu.Lock()
	c.loggedIn = false
	c.csrfToken = ""
	c.perms = rbac.PermissionSet{}
	c.mu.Unlock()
	return err
}

// Permissions returns the capability set from the most recent login or
// incident status response.
func (c *Client) Permissions() rbac.PermissionSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perms
}

func (c *Client) setPerms(perms rbac.PermissionSet) {
	c.mu.Lock()
	c.perms = perms
	c.mu.Unlock()
}

func (c *Client) FetchLatestReading(ctx context.Context) (*Reading, error) {
	var out Reading
	if err := c.get(ctx, "/latest/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchIncidentStatus(ctx context.Context) (*IncidentStatus, error) {
	var out IncidentStatus
	if err := c.get(ctx, "/incident-status/", &out); err != nil {
		return nil, err
	}
	// Every status response carries the authoritative capability set; the
	// write guards must gate on it, not on the login-time copy.
	c.setPerms(out.Permissions)
	return &out, nil
}

// FetchChartData retrieves a plotting window: "" for everything, or one of
// "jour", "semaine", "mois".
func (c *Client) FetchChartData(ctx context.Context, window string) (*ChartData, error) {
	path := "/chart-data/"
	if window != "" {
		path = "/chart-data-" + window + "/"
	}
	var out ChartData
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchStats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.get(ctx, "/api/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitManualReading validates locally and only then performs the write.
// A validation failure returns ErrValidation with zero network traffic.
func (c *Client) SubmitManualReading(ctx context.Context, temperature, humidity float64) error {
	if err := incident.ValidateManualReading(temperature, humidity); err != nil {
		return err
	}
	payload := map[string]float64{"temp": temperature, "hum": humidity}
	return c.post(ctx, "/api/manual-entry/", payload, nil)
}

// SubmitOperationUpdate checks the operation number, the cached permission
// set and the comment before writing. On success it performs exactly one
// POST followed by one status refetch and returns the fresh snapshot, so the
// caller never renders stale operation state.
func (c *Client) SubmitOperationUpdate(ctx context.Context, op int, checked bool, comment string) (*IncidentStatus, error) {
	if err := incident.ValidateOperationUpdate(op, comment, c.Permissions()); err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		fmt.Sprintf("op%d_checked", op): checked,
		fmt.Sprintf("op%d_comment", op): comment,
	}
	if err := c.post(ctx, "/update-incident/", payload, nil); err != nil {
		return nil, err
	}
	return c.FetchIncidentStatus(ctx)
}

// AcknowledgeIncident flips the reception flag on the active incident.
func (c *Client) AcknowledgeIncident(ctx context.Context, value bool) (*IncidentStatus, error) {
	perms := c.Permissions()
	if !perms.CanAcknowledgeReceipt {
		return nil, fmt.Errorf("%w: role %s cannot acknowledge", incident.ErrPermissionDenied, perms.UserRole)
	}
	if err := c.post(ctx, "/update-incident/", map[string]bool{"accuse_reception": value}, nil); err != nil {
		return nil, err
	}
	return c.FetchIncidentStatus(ctx)
}

func (c *Client) AddIncidentComment(ctx context.Context, incidentID int64, content string) error {
	perms := c.Permissions()
	if !perms.CanComment {
		return fmt.Errorf("%w: role %s cannot comment", incident.ErrPermissionDenied, perms.UserRole)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: comment must not be empty", incident.ErrValidation)
	}
	path := fmt.Sprintf("/incident/%d/comment/", incidentID)
	return c.post(ctx, path, map[string]string{"content": content}, nil)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", incident.ErrNetwork, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(path, resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	token := c.csrfToken
	c.mu.Unlock()
	if token != "" {
		req.Header.Set(csrfHeader, token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %v", incident.ErrNetwork, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(path, resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusError(path string, resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Error != "" {
		return fmt.Errorf("%w: %s: %s", incident.ErrServerRejected, path, body.Error)
	}
	return fmt.Errorf("%w: %s: status %d", incident.ErrServerRejected, path, resp.StatusCode)
}
