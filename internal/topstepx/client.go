package topstepx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantex/qx-algo/internal/httpclient"
	"github.com/quantex/qx-algo/internal/metrics"
	"github.com/quantex/qx-algo/internal/rate"
	"github.com/quantex/qx-algo/internal/secrets"
)

// Client wraps low-level HTTP communication with the TopstepX API.
// A session token is acquired lazily on the first authenticated call and
// re-acquired when validation fails.
type Client struct {
	logger   *zap.Logger
	exec     *httpclient.Executor
	baseURL  string
	resolver *secrets.Resolver

	tokenMu sync.Mutex
	token   string
}

// NewClient constructs a new TopstepX HTTP client instance.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, baseURL string, resolver *secrets.Resolver) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	exec := httpclient.New(logger, rateMgr, httpClient, 2, "topstepx", func(status int, body []byte) error {
		var errResp ErrorResponse
		_ = json.Unmarshal(body, &errResp)

		logger.Warn("topstepx.client_error",
			zap.Int("status", status),
			zap.Int("error_code", errResp.ErrorCode),
			zap.String("message", errResp.ErrorMessage),
			zap.String("body", string(body)))

		errMsg := errResp.ErrorMessage
		if errMsg == "" {
			errMsg = string(body)
		}
		return fmt.Errorf("topstepx returned %d: %s", status, errMsg)
	})
	return &Client{
		logger:   logger,
		exec:     exec,
		baseURL:  strings.TrimRight(baseURL, "/"),
		resolver: resolver,
	}
}

// Authenticate acquires a session token via /api/Auth/loginKey and caches it.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) (string, error) {
	creds, err := c.resolver.Resolve(ctx)
	if err != nil {
		return "", err
	}

	req := LoginKeyRequest{UserName: creds.Username, APIKey: creds.APIKey}
	var resp AuthResponse
	if err := c.postJSON(ctx, "/api/Auth/loginKey", "", req, &resp); err != nil {
		return "", fmt.Errorf("loginKey request failed: %w", err)
	}
	if !resp.Success || resp.ErrorCode != 0 || resp.Token == "" {
		return "", fmt.Errorf("topstepx auth failed: %s", resp.ErrorMessage)
	}

	c.token = resp.Token
	c.logger.Info("topstepx.authenticated", zap.String("user", creds.Username))
	return c.token, nil
}

// LoginApp authenticates with application credentials (authorized firms) and
// caches the resulting token. An alternative to the loginKey flow for
// deployments that use app-level access.
func (c *Client) LoginApp(ctx context.Context, req LoginAppRequest) (string, error) {
	var resp AuthResponse
	if err := c.postJSON(ctx, "/api/Auth/loginApp", "", req, &resp); err != nil {
		return "", fmt.Errorf("loginApp request failed: %w", err)
	}
	if !resp.Success || resp.ErrorCode != 0 || resp.Token == "" {
		return "", fmt.Errorf("topstepx auth failed: %s", resp.ErrorMessage)
	}

	c.tokenMu.Lock()
	c.token = resp.Token
	c.tokenMu.Unlock()
	c.logger.Info("topstepx.authenticated", zap.String("user", req.UserName))
	return resp.Token, nil
}

// ValidateToken checks the cached session token; on failure the token is
// dropped so the next call re-authenticates.
func (c *Client) ValidateToken(ctx context.Context) bool {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return false
	}
	var resp AuthResponse
	if err := c.postJSON(ctx, "/api/Auth/validate", token, struct{}{}, &resp); err != nil || !resp.Success {
		c.tokenMu.Lock()
		c.token = ""
		c.tokenMu.Unlock()
		return false
	}
	return true
}

// SearchAccounts retrieves the accounts linked to the user.
func (c *Client) SearchAccounts(ctx context.Context, onlyActive bool) ([]Account, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	var resp AccountSearchResponse
	if err := c.postJSON(ctx, "/api/Account/search", token, AccountSearchRequest{OnlyActiveAccounts: onlyActive}, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// SearchContracts retrieves the available contracts.
func (c *Client) SearchContracts(ctx context.Context, live bool) ([]Contract, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	var resp ContractSearchResponse
	if err := c.postJSON(ctx, "/api/Contract/available", token, ContractSearchRequest{Live: live}, &resp); err != nil {
		return nil, err
	}
	return resp.Contracts, nil
}

// RetrieveBars fetches historical bars for a contract. Times are sent as UTC
// RFC3339 with a Z suffix, which is what the venue expects.
func (c *Client) RetrieveBars(ctx context.Context, req RetrieveBarsRequest) ([]RawBar, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	var resp RetrieveBarsResponse
	if err := c.postJSON(ctx, "/api/History/retrieveBars", token, req, &resp); err != nil {
		return nil, err
	}
	return resp.Bars, nil
}

// PlaceOrder places an order and returns the venue order id.
func (c *Client) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (string, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return "", err
	}
	var resp PlaceOrderResponse
	if err := c.postJSON(ctx, "/api/Order/place", token, req, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.ErrorCode != 0 {
		return "", fmt.Errorf("order rejected: %s", resp.ErrorMessage)
	}
	return strconv.FormatInt(resp.OrderID, 10), nil
}

// FormatBarTime renders a time the way retrieveBars expects: UTC, second
// precision, trailing Z.
func FormatBarTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05") + "Z"
}

// postJSON performs a POST request with a JSON body. token may be empty for
// unauthenticated endpoints (login).
func (c *Client) postJSON(ctx context.Context, path, token string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	err = c.exec.DoJSON(ctx, req, path, out)
	metrics.ObserveDuration(metrics.VenueRequestDuration, start, path)
	if err != nil {
		metrics.IncVenueRequest(path, "error")
		return err
	}
	metrics.IncVenueRequest(path, "ok")
	return nil
}
