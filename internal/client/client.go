package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studentportal/internal/auth"
	"github.com/wolfeidau/studentportal/internal/models"
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Timeout   time.Duration

	// CacheDir persists catalog responses; empty keeps them in memory.
	CacheDir string

	// MaxTries bounds attempts for GET requests. POSTs are sent once.
	MaxTries      uint
	RetryInterval time.Duration
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL:     "http://localhost:3000",
		Timeout:       30 * time.Second,
		MaxTries:      4,
		RetryInterval: 250 * time.Millisecond,
	}
}

// APIError is an error response from the portal.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// User is the account summary returned by register and login.
type User struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// Profile is the signed-in user as returned by /api/me.
type Profile struct {
	ID                string   `json:"id"`
	FullName          string   `json:"fullName"`
	Email             string   `json:"email"`
	Phone             string   `json:"phone"`
	EnrolledCourseIDs []string `json:"enrolledCourseIds"`
}

// Registration is the input to Register.
type Registration struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

// Client talks to the portal JSON API and carries the session cookie
// between calls.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	cfg     Config

	mu      sync.Mutex
	session string
}

// New creates a client for the server in cfg.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.ServerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", cfg.ServerURL)
	}

	if cfg.MaxTries == 0 {
		cfg.MaxTries = 1
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultConfig().RetryInterval
	}

	return &Client{
		baseURL: base,
		http: &http.Client{
			Transport: newCachingTransport(cfg.CacheDir),
			Timeout:   cfg.Timeout,
		},
		cfg: cfg,
	}, nil
}

// SetSession sets the session cookie value sent with every request.
func (c *Client) SetSession(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = value
}

// Session returns the current session cookie value, empty when signed out.
func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) Register(ctx context.Context, reg Registration) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.post(ctx, "/api/register", reg, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) Login(ctx context.Context, email, password string, remember bool) (*User, error) {
	req := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Remember bool   `json:"remember"`
	}{email, password, remember}

	var resp struct {
		User User `json:"user"`
	}
	if err := c.post(ctx, "/api/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.post(ctx, "/api/logout", nil, nil); err != nil {
		return err
	}
	c.SetSession("")
	return nil
}

// Me returns the signed-in user, or nil when the session is missing or expired.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var resp struct {
		User *Profile `json:"user"`
	}
	if err := c.get(ctx, "/api/me", &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) Courses(ctx context.Context, query string) ([]models.Course, error) {
	path := "/api/courses"
	if query != "" {
		path += "?" + url.Values{"q": {query}}.Encode()
	}

	var resp struct {
		Courses []models.Course `json:"courses"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Courses, nil
}

func (c *Client) Course(ctx context.Context, code string) (*models.Course, error) {
	var resp struct {
		Course *models.Course `json:"course"`
	}
	if err := c.get(ctx, "/api/courses/"+url.PathEscape(code), &resp); err != nil {
		return nil, err
	}
	return resp.Course, nil
}

// Enroll registers the signed-in user for the course and returns the
// user's enrolled course codes.
func (c *Client) Enroll(ctx context.Context, code string) ([]string, error) {
	req := struct {
		CourseCode string `json:"courseCode"`
	}{code}

	var resp struct {
		RegisteredCourses []string `json:"registeredCourses"`
	}
	if err := c.post(ctx, "/api/courses/register", req, &resp); err != nil {
		return nil, err
	}
	return resp.RegisteredCourses, nil
}

// get retries network failures and 5xx responses with exponential backoff.
func (c *Client) get(ctx context.Context, path string, out any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.do(ctx, http.MethodGet, path, nil, out)

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return struct{}{}, backoff.Permanent(err)
		}
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("Request failed, retrying")
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.cfg.MaxTries))

	return err
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session := c.Session(); session != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: session})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Bool("from_cache", fromCache(resp)).
		Msg("API response")

	c.captureSession(resp)

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) captureSession(resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		if cookie.Name != auth.CookieName {
			continue
		}
		if cookie.MaxAge < 0 || cookie.Value == "" {
			c.SetSession("")
		} else {
			c.SetSession(cookie.Value)
		}
	}
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	}

	return apiErr
}
