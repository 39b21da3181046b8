// Package upstream is the typed client for the food-ordering REST API the
// gateway fronts. Success is any 2xx status; failures surface as
// StatusError with the message from the upstream's "detail" field.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/feastline/feast-gateway/internal/config"
	"github.com/feastline/feast-gateway/internal/models"
)

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

type ClientOption func(*Client) error

func WithConfig(c config.UpstreamConfig) ClientOption {
	return func(cl *Client) error {
		if c.BaseURL == nil {
			return fmt.Errorf("the upstream base URL is not set")
		}
		cl.baseURL = c.BaseURL
		cl.httpClient = &http.Client{Timeout: c.Timeout()}
		return nil
	}
}

// WithHTTPClient replaces the transport, used in tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(cl *Client) error {
		cl.httpClient = hc
		return nil
	}
}

func NewClient(options ...ClientOption) (*Client, error) {
	cl := Client{}
	for _, opt := range options {
		err := opt(&cl)
		if err != nil {
			return &Client{}, err
		}
	}
	if cl.baseURL == nil {
		return &Client{}, fmt.Errorf("upstream client base URL is not initialized")
	}
	if cl.httpClient == nil {
		cl.httpClient = http.DefaultClient
	}
	return &cl, nil
}

func (cl *Client) Login(ctx context.Context, username, password string) (TokenResponse, error) {
	var tokens TokenResponse
	err := cl.doJSON(ctx, http.MethodPost, "/auth/login", "", LoginPayload{Username: username, Password: password}, &tokens)
	return tokens, err
}

func (cl *Client) LoginWithEmailCode(ctx context.Context, email, code string) (TokenResponse, error) {
	var tokens TokenResponse
	err := cl.doJSON(ctx, http.MethodPost, "/auth/login/email", "", EmailLoginPayload{Email: email, VerificationCode: code}, &tokens)
	return tokens, err
}

func (cl *Client) RefreshToken(ctx context.Context, refreshToken string) (TokenResponse, error) {
	var tokens TokenResponse
	err := cl.doJSON(ctx, http.MethodPost, "/auth/refresh", "", RefreshPayload{RefreshToken: refreshToken}, &tokens)
	return tokens, err
}

func (cl *Client) Register(ctx context.Context, payload RegisterPayload) (models.UserProfile, error) {
	var profile models.UserProfile
	err := cl.doJSON(ctx, http.MethodPost, "/auth/register", "", payload, &profile)
	return profile, err
}

func (cl *Client) SendEmailCode(ctx context.Context, email, scene string) error {
	return cl.doJSON(ctx, http.MethodPost, "/auth/send-email-code", "", EmailCodePayload{Email: email, Scene: scene}, nil)
}

func (cl *Client) ResetPassword(ctx context.Context, payload ResetPasswordPayload) error {
	return cl.doJSON(ctx, http.MethodPost, "/auth/reset-password", "", payload, nil)
}

func (cl *Client) Profile(ctx context.Context, accessToken string) (models.UserProfile, error) {
	var profile models.UserProfile
	err := cl.doJSON(ctx, http.MethodGet, "/user/me", accessToken, nil, &profile)
	return profile, err
}

func (cl *Client) UpdateProfile(ctx context.Context, accessToken string, payload UpdateProfilePayload) (models.UserProfile, error) {
	var profile models.UserProfile
	err := cl.doJSON(ctx, http.MethodPut, "/user/me", accessToken, payload, &profile)
	return profile, err
}

func (cl *Client) UpdatePassword(ctx context.Context, accessToken string, payload UpdatePasswordPayload) error {
	return cl.doJSON(ctx, http.MethodPut, "/user/me/password", accessToken, payload, nil)
}

func (cl *Client) VendorStoreStatus(ctx context.Context, accessToken string) (models.VendorStoreStatus, error) {
	var status models.VendorStoreStatus
	err := cl.doJSON(ctx, http.MethodGet, "/store/my/status", accessToken, nil, &status)
	return status, err
}

// Forward issues an arbitrary request against the upstream with the bearer
// header attached, used by the proxy for endpoints the gateway does not
// model. The caller owns the returned body.
func (cl *Client) Forward(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	header http.Header,
	body []byte,
	accessToken string,
) (*http.Response, error) {
	req, err := cl.newRequest(ctx, method, path, accessToken, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	return cl.httpClient.Do(req)
}

func (cl *Client) newRequest(ctx context.Context, method, path, accessToken string, body io.Reader) (*http.Request, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("cannot parse upstream path %q: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, cl.baseURL.ResolveReference(rel).String(), body)
	if err != nil {
		return nil, err
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (cl *Client) doJSON(ctx context.Context, method, path, accessToken string, payload any, result any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("cannot encode request body for %s: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := cl.newRequest(ctx, method, path, accessToken, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := cl.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return cl.statusError(resp)
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("cannot decode upstream response from %s: %w", path, err)
	}
	return nil
}

func (cl *Client) statusError(resp *http.Response) error {
	var parsed errorBody
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil {
		// a non-JSON error body just leaves the detail empty
		_ = json.Unmarshal(raw, &parsed)
	}
	return &StatusError{StatusCode: resp.StatusCode, Detail: parsed.message()}
}
