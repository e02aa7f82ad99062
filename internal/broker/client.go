// Package broker is a minimal client for the broker's session API. The
// engine only needs login: order routing is paper-traded and market data
// arrives over a separate WebSocket authenticated by the feed token.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"adx-systemv1/internal/auth"
)

const defaultTimeout = 7 * time.Second

type Config struct {
	BaseURL string // e.g. "https://apiconnect.broker.example"
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type loginRequest struct {
	ClientCode string `json:"clientcode"`
	Password   string `json:"password"`
	TOTP       string `json:"totp"`
}

type loginResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		JWTToken  string `json:"jwtToken"`
		FeedToken string `json:"feedToken"`
	} `json:"data"`
}

// Login exchanges credentials plus a TOTP code for session tokens.
// Its signature matches auth.LoginFunc.
func (c *Client) Login(ctx context.Context, creds auth.Credentials, totpCode string) (auth.Tokens, error) {
	body, err := json.Marshal(loginRequest{
		ClientCode: creds.ClientCode,
		Password:   creds.PIN,
		TOTP:       totpCode,
	})
	if err != nil {
		return auth.Tokens{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/rest/auth/login", bytes.NewReader(body))
	if err != nil {
		return auth.Tokens{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-PrivateKey", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return auth.Tokens{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return auth.Tokens{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return auth.Tokens{}, fmt.Errorf("login HTTP %d: %s", resp.StatusCode, raw)
	}

	var lr loginResponse
	if err := json.Unmarshal(raw, &lr); err != nil {
		return auth.Tokens{}, fmt.Errorf("login response: %w", err)
	}
	if !lr.Status {
		return auth.Tokens{}, fmt.Errorf("login rejected: %s", lr.Message)
	}
	return auth.Tokens{
		AuthToken: lr.Data.JWTToken,
		FeedToken: lr.Data.FeedToken,
	}, nil
}
