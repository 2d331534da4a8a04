package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Transport fault classes. The placement client sorts these into policy
// decisions; everything else passes through untouched.
var (
	// ErrEndpointNotFound means the service catalog has no endpoint for the
	// configured service type and region. Not recoverable without a config
	// change.
	ErrEndpointNotFound = errors.New("service endpoint not found in catalog")

	// ErrMissingAuth means no credentials were configured for the session.
	ErrMissingAuth = errors.New("no authentication credentials configured")

	// ErrConnectFailure means the service could not be reached at all.
	// Possibly transient.
	ErrConnectFailure = errors.New("cannot establish connection")
)

// Config holds identity-service settings for an authenticated session.
type Config struct {
	AuthURL     string        `yaml:"auth_url"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	ProjectName string        `yaml:"project_name"`
	Region      string        `yaml:"region"`
	ServiceType string        `yaml:"service_type"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Response is a completed HTTP exchange. Non-2xx statuses are not errors;
// callers inspect StatusCode and decide for themselves.
type Response struct {
	StatusCode int
	Body       []byte
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Text returns the raw response body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Session is an authenticated HTTP client scoped to one catalog service.
// It authenticates lazily on first use, resolves the service endpoint from
// the catalog, and re-authenticates once when a token expires.
type Session struct {
	cfg        Config
	httpClient *http.Client

	mu       sync.Mutex // guards token and endpoint
	token    string
	endpoint string
}

// New creates a session. No network traffic happens until the first request.
func New(cfg Config) *Session {
	if cfg.ServiceType == "" {
		cfg.ServiceType = "placement"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Session{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Get issues a GET against the resolved service endpoint.
func (s *Session) Get(ctx context.Context, path string) (*Response, error) {
	return s.do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST with a JSON body against the resolved service endpoint.
func (s *Session) Post(ctx context.Context, path string, body any) (*Response, error) {
	return s.do(ctx, http.MethodPost, path, body)
}

func (s *Session) do(ctx context.Context, method, path string, body any) (*Response, error) {
	token, endpoint, err := s.ensureAuth(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.request(ctx, method, endpoint+path, token, body)
	if err != nil {
		return nil, err
	}

	// Token expired mid-flight: re-authenticate once and replay.
	if resp.StatusCode == http.StatusUnauthorized {
		token, endpoint, err = s.reauth(ctx)
		if err != nil {
			return nil, err
		}
		return s.request(ctx, method, endpoint+path, token, body)
	}

	return resp, nil
}

func (s *Session) request(ctx context.Context, method, url, token string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Auth-Token", token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// ensureAuth returns a valid token and endpoint, authenticating on first use.
func (s *Session) ensureAuth(ctx context.Context) (token, endpoint string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		if err := s.authenticate(ctx); err != nil {
			return "", "", err
		}
	}
	return s.token, s.endpoint, nil
}

// reauth discards the cached token and authenticates again.
func (s *Session) reauth(ctx context.Context) (token, endpoint string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	if err := s.authenticate(ctx); err != nil {
		return "", "", err
	}
	return s.token, s.endpoint, nil
}

// authenticate performs password authentication against the identity service
// and resolves the service endpoint from the returned catalog.
// Caller must hold mu.
func (s *Session) authenticate(ctx context.Context) error {
	if s.cfg.Username == "" || s.cfg.Password == "" {
		return fmt.Errorf("%w: username/password unset", ErrMissingAuth)
	}
	if s.cfg.AuthURL == "" {
		return fmt.Errorf("%w: auth_url unset", ErrMissingAuth)
	}

	payload := map[string]any{
		"auth": map[string]any{
			"identity": map[string]any{
				"methods": []string{"password"},
				"password": map[string]any{
					"user": map[string]any{
						"name":     s.cfg.Username,
						"password": s.cfg.Password,
					},
				},
			},
			"scope": map[string]any{
				"project": map[string]any{"name": s.cfg.ProjectName},
			},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal auth request: %w", err)
	}

	url := strings.TrimSuffix(s.cfg.AuthURL, "/") + "/auth/tokens"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return classifyTransportErr(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("authentication failed: http %d: %s", resp.StatusCode, string(data))
	}

	token := resp.Header.Get("X-Subject-Token")
	if token == "" {
		return fmt.Errorf("authentication response missing subject token")
	}

	var body struct {
		Token struct {
			Catalog []catalogEntry `json:"catalog"`
		} `json:"token"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("parse auth response: %w", err)
	}

	endpoint, ok := resolveEndpoint(body.Token.Catalog, s.cfg.ServiceType, s.cfg.Region)
	if !ok {
		return fmt.Errorf("%w: service_type=%s region=%s",
			ErrEndpointNotFound, s.cfg.ServiceType, s.cfg.Region)
	}

	s.token = token
	s.endpoint = endpoint
	return nil
}

type catalogEntry struct {
	Type      string `json:"type"`
	Endpoints []struct {
		Region    string `json:"region"`
		Interface string `json:"interface"`
		URL       string `json:"url"`
	} `json:"endpoints"`
}

// resolveEndpoint picks the public endpoint matching service type and region.
// An empty configured region matches any catalog region.
func resolveEndpoint(catalog []catalogEntry, serviceType, region string) (string, bool) {
	for _, entry := range catalog {
		if entry.Type != serviceType {
			continue
		}
		for _, ep := range entry.Endpoints {
			if ep.Interface != "" && ep.Interface != "public" {
				continue
			}
			if region != "" && ep.Region != region {
				continue
			}
			return strings.TrimSuffix(ep.URL, "/"), true
		}
	}
	return "", false
}

// classifyTransportErr maps client-level failures onto the session's fault
// classes. Context cancellation is the caller's own signal and stays as-is.
func classifyTransportErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrConnectFailure, err)
}
