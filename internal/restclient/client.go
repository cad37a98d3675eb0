// Package restclient talks to the notification REST API on behalf of one
// signed-in identity.
package restclient

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
	"time"

	"task-notifications/internal/models"
)

// RequestError reports a failed REST call. It is surfaced to the caller of
// the user action that issued it.
type RequestError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsStatus reports whether err is a RequestError with the given status.
func IsStatus(err error, status int) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Status == status
}

// NotificationQuery selects one page of a recipient's notifications.
type NotificationQuery struct {
	RecipientID string
	Page        int
	Limit       int
	IsArchived  bool
	// IsRead filters on read state when non-nil.
	IsRead *bool
}

// NotificationPage is one page of the paginated fetch.
type NotificationPage struct {
	Items      []models.Notification `json:"items"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	Total      int64                 `json:"total"`
	TotalPages int                   `json:"totalPages"`
}

// MarkAllResult is the acknowledgement of a mark-all.
type MarkAllResult struct {
	Updated int64     `json:"updated"`
	ReadAt  time.Time `json:"readAt"`
}

// LoginResult is returned by Login.
type LoginResult struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Client is a JSON client for the notification API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// New creates a client for baseURL (e.g. "http://localhost:8008").
func New(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// WithToken returns a copy of c authenticating with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Token returns the bearer token in use.
func (c *Client) Token() string { return c.token }

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var out LoginResult
	body := map[string]string{"username": username, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", body, &out); err != nil {
		return LoginResult{}, err
	}
	return out, nil
}

// FetchNotifications returns one page of notifications.
func (c *Client) FetchNotifications(ctx context.Context, q NotificationQuery) (NotificationPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("isArchived", strconv.FormatBool(q.IsArchived))
	if q.IsRead != nil {
		params.Set("isRead", strconv.FormatBool(*q.IsRead))
	}
	path := "/api/notifications/" + url.PathEscape(q.RecipientID) + "?" + params.Encode()

	var out NotificationPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return NotificationPage{}, err
	}
	return out, nil
}

// FetchStats returns the authoritative counters of a recipient.
func (c *Client) FetchStats(ctx context.Context, recipientID string) (models.NotificationStats, error) {
	var out models.NotificationStats
	path := "/api/notifications/" + url.PathEscape(recipientID) + "/stats"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return models.NotificationStats{}, err
	}
	return out, nil
}

// MarkRead marks one notification read. Marking an already-read notification
// succeeds and returns the unchanged record.
func (c *Client) MarkRead(ctx context.Context, notificationID, recipientID string) (models.Notification, error) {
	var out models.Notification
	path := "/api/notifications/" + url.PathEscape(notificationID) + "/read"
	body := map[string]string{"recipientId": recipientID}
	if err := c.doJSON(ctx, http.MethodPatch, path, body, &out); err != nil {
		return models.Notification{}, err
	}
	return out, nil
}

// MarkAllRead marks every notification of the signed-in identity read.
func (c *Client) MarkAllRead(ctx context.Context) (MarkAllResult, error) {
	var out MarkAllResult
	if err := c.doJSON(ctx, http.MethodPatch, "/api/notifications/read-all", nil, &out); err != nil {
		return MarkAllResult{}, err
	}
	return out, nil
}

// PostComment adds a comment to a task thread.
func (c *Client) PostComment(ctx context.Context, taskID, content string, mentions []string) (models.Comment, error) {
	var out models.Comment
	body := map[string]any{"content": content, "mentions": mentions}
	if err := c.doJSON(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(taskID)+"/comments", body, &out); err != nil {
		return models.Comment{}, err
	}
	return out, nil
}

// FetchComments returns a task's comment thread, oldest first.
func (c *Client) FetchComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	var out struct {
		Comments []models.Comment `json:"comments"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(taskID)+"/comments", nil, &out); err != nil {
		return nil, err
	}
	return out.Comments, nil
}

// User is a directory entry of the users endpoint.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// FetchUsers lists users ordered by username, narrowed to the given
// usernames when any are passed.
func (c *Client) FetchUsers(ctx context.Context, usernames ...string) ([]User, error) {
	path := "/api/users"
	if len(usernames) > 0 {
		path += "?" + url.Values{"username": {strings.Join(usernames, ",")}}.Encode()
	}
	var out struct {
		Users []User `json:"users"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return &RequestError{Method: method, Path: path, Err: fmt.Errorf("marshal body: %w", err)}
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return &RequestError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RequestError{Method: method, Path: path, Status: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return &RequestError{Method: method, Path: path, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

// errorMessage pulls the "error" field out of a gin error body.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
