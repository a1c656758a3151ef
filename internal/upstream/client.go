package upstream

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

	"supervisor-console/config"
	"supervisor-console/internal/logger"
	"supervisor-console/internal/model"
)

const (
	opLogin        = "login"
	opVerifyOTP    = "verify-otp"
	opResendOTP    = "resend-otp"
	opDetails      = "supervisor-details"
	opMeterReaders = "meter-readers"

	// maxBodyBytes bounds how much of any upstream body is read.
	maxBodyBytes = 1 << 20
)

// Client talks to the external supervisor API.
type Client struct {
	baseURL string
	headers map[string]string
	client  *http.Client
}

// NewClient creates a client for the configured upstream. Every call is bounded
// by cfg.Timeout.
func NewClient(cfg config.UpstreamConfig) *Client {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			logger.Log.Warnf("Invalid proxy URL %q: %v. Upstream client will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		headers: cfg.Headers,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}
}

// Login submits credentials and returns the short-lived challenge token.
func (c *Client) Login(ctx context.Context, supervisorID, mobile string) (string, error) {
	var resp loginResponse
	body := credentialsRequest{SupervisorID: supervisorID, Mobile: mobile}
	if err := c.do(ctx, opLogin, http.MethodPost, "/api/supervisor/login", "", body, &resp); err != nil {
		return "", err
	}
	if resp.TempToken == "" {
		return "", &Error{Op: opLogin, Kind: KindMalformed, Err: fmt.Errorf("response has no tempToken")}
	}
	return resp.TempToken, nil
}

// VerifyOTP exchanges the code for an access token, authorised by the challenge token.
func (c *Client) VerifyOTP(ctx context.Context, challengeToken, supervisorID, mobile, otp string) (string, error) {
	var resp verifyResponse
	body := verifyRequest{SupervisorID: supervisorID, Mobile: mobile, OTP: otp}
	if err := c.do(ctx, opVerifyOTP, http.MethodPost, "/api/supervisor/verify-otp", challengeToken, body, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", &Error{Op: opVerifyOTP, Kind: KindMalformed, Err: fmt.Errorf("response has no accessToken")}
	}
	return resp.AccessToken, nil
}

// ResendOTP asks for a new code. The body is optional; when it carries a
// tempToken the returned string is the replacement challenge token, otherwise it is empty.
func (c *Client) ResendOTP(ctx context.Context, supervisorID, mobile string) (string, error) {
	var resp loginResponse
	body := credentialsRequest{SupervisorID: supervisorID, Mobile: mobile}
	err := c.do(ctx, opResendOTP, http.MethodPost, "/api/supervisor/resend-otp", "", body, &resp)
	if errors.Is(err, ErrMalformed) {
		// Any 2xx counts as a resend; the body is not part of the contract.
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return resp.TempToken, nil
}

// SupervisorDetails fetches the supervisor profile.
func (c *Client) SupervisorDetails(ctx context.Context, accessToken, supervisorID string) (model.SupervisorProfile, error) {
	var raw json.RawMessage
	path := "/api/supervisor/" + url.PathEscape(supervisorID) + "/details"
	if err := c.do(ctx, opDetails, http.MethodGet, path, accessToken, nil, &raw); err != nil {
		return model.SupervisorProfile{}, err
	}

	var profile model.SupervisorProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return model.SupervisorProfile{}, &Error{Op: opDetails, Kind: KindMalformed, Err: err}
	}
	profile.Raw = raw
	return profile, nil
}

// MeterReaders lists the readers under the supervisor. A missing list is an empty one.
func (c *Client) MeterReaders(ctx context.Context, accessToken, supervisorID string) ([]model.MeterReader, error) {
	var resp meterReadersResponse
	path := "/api/supervisor/" + url.PathEscape(supervisorID) + "/meter-readers"
	if err := c.do(ctx, opMeterReaders, http.MethodGet, path, accessToken, nil, &resp); err != nil {
		return nil, err
	}
	if resp.MeterReaders == nil {
		return []model.MeterReader{}, nil
	}
	return resp.MeterReaders, nil
}

// do performs one request and decodes a 2xx body into out. An empty 2xx body
// leaves out untouched.
func (c *Client) do(ctx context.Context, op, method, path, bearer string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return &Error{Op: op, Kind: KindMalformed, Err: fmt.Errorf("failed to marshal request payload: %w", err)}
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &Error{Op: op, Kind: KindTransport, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &Error{Op: op, Kind: KindTransport, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Op: op, Kind: KindRejected, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Op: op, Kind: KindMalformed, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}
	return nil
}

func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if eb.Message != "" {
		return eb.Message
	}
	return eb.Error
}
