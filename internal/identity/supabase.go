package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config is the environment-driven identity provider configuration.
type Config struct {
	ProviderURL string `env:"SUPABASE_URL"`
	ServiceKey  string `env:"SUPABASE_SERVICE_KEY"`
	JWTSecret   string `env:"JWT_SECRET,required"`
}

var (
	ErrProviderNotConfigured = errors.New("identity: provider is not configured")
	ErrInvalidCredentials    = errors.New("identity: invalid email or password")
	ErrSignUpFailed          = errors.New("identity: sign up failed")
	ErrTokenRejected         = errors.New("identity: token rejected by provider")
)

// SupabaseClient talks to the Supabase auth (GoTrue) REST surface.
type SupabaseClient struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewSupabaseClient returns a provider client. An empty URL or key
// yields a client whose calls fail with ErrProviderNotConfigured, so
// locally signed tokens still work without a provider.
func NewSupabaseClient(cfg Config) *SupabaseClient {
	return &SupabaseClient{
		baseURL:    strings.TrimRight(cfg.ProviderURL, "/"),
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type supabaseSession struct {
	AccessToken string       `json:"access_token"`
	User        supabaseUser `json:"user"`
}

func (c *SupabaseClient) VerifyToken(ctx context.Context, token string) (Claims, error) {
	if c.baseURL == "" || c.serviceKey == "" {
		return Claims{}, ErrProviderNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return Claims{}, fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Claims{}, fmt.Errorf("identity: verify token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Claims{}, ErrTokenRejected
	}

	var user supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return Claims{}, fmt.Errorf("identity: decode user: %w", err)
	}
	if user.ID == "" {
		return Claims{}, ErrTokenRejected
	}

	return Claims{SubjectID: user.ID, Email: user.Email}, nil
}

func (c *SupabaseClient) SignIn(ctx context.Context, email, password string) (Session, error) {
	sess, err := c.authCall(ctx, "/auth/v1/token?grant_type=password", email, password)
	if err != nil {
		return Session{}, err
	}
	if sess.AccessToken == "" || sess.User.ID == "" {
		return Session{}, ErrInvalidCredentials
	}
	return Session{
		AccessToken: sess.AccessToken,
		Claims:      Claims{SubjectID: sess.User.ID, Email: sess.User.Email},
	}, nil
}

func (c *SupabaseClient) SignUp(ctx context.Context, email, password string) (Session, error) {
	sess, err := c.authCall(ctx, "/auth/v1/signup", email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return Session{}, ErrSignUpFailed
		}
		return Session{}, err
	}
	if sess.User.ID == "" {
		return Session{}, ErrSignUpFailed
	}
	// AccessToken may be empty when email confirmation is pending.
	return Session{
		AccessToken: sess.AccessToken,
		Claims:      Claims{SubjectID: sess.User.ID, Email: sess.User.Email},
	}, nil
}

func (c *SupabaseClient) authCall(ctx context.Context, path, email, password string) (supabaseSession, error) {
	if c.baseURL == "" || c.serviceKey == "" {
		return supabaseSession{}, ErrProviderNotConfigured
	}

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return supabaseSession{}, fmt.Errorf("identity: marshal credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return supabaseSession{}, fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return supabaseSession{}, fmt.Errorf("identity: auth call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused; the body content is a
		// provider error we map to a single sentinel.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return supabaseSession{}, ErrInvalidCredentials
	}

	var sess supabaseSession
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return supabaseSession{}, fmt.Errorf("identity: decode session: %w", err)
	}
	return sess, nil
}
