// Package wallet talks to the external wallet pass provider. It implements
// the PassBuilder contract the bulk processor drains wallet jobs through.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cardrail/cardrail/card"
	"github.com/cardrail/cardrail/config"
	"github.com/cardrail/cardrail/errors"
	"github.com/cardrail/cardrail/internal/httpclient"
	"github.com/cardrail/cardrail/logger"
)

// passRequest is the provider's pass creation payload
type passRequest struct {
	SerialNumber string `json:"serial_number"`
	HolderName   string `json:"holder_name"`
	HolderEmail  string `json:"holder_email"`
	JobTitle     string `json:"job_title,omitempty"`
	Phone        string `json:"phone,omitempty"`
	ShareCode    string `json:"share_code"`
}

// passError is the provider's error envelope
type passError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Client builds wallet passes against the provider's HTTP API. Requests are
// rate limited client-side so a large bulk job cannot trip the provider's
// quota and fail half a company's cards.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// NewClient creates a provider client from configuration
func NewClient(cfg config.WalletConfig, log *zap.SugaredLogger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("wallet base URL is not configured")
	}

	hc := httpclient.New(time.Duration(cfg.TimeoutSeconds)*time.Second, cfg.AllowPrivateHosts)
	if _, err := hc.ValidateURL(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "wallet base URL rejected")
	}

	rpm := cfg.MaxRequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		log:     log,
	}, nil
}

// BuildPass creates a wallet pass for the card. The error message returned
// here ends up verbatim as the item's failure reason, so provider messages
// are passed through rather than rewrapped into something vaguer.
func (c *Client) BuildPass(ctx context.Context, crd *card.Card) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limit wait interrupted")
	}

	body, err := json.Marshal(passRequest{
		SerialNumber: crd.ID,
		HolderName:   crd.FullName,
		HolderEmail:  crd.Email,
		JobTitle:     crd.JobTitle,
		Phone:        crd.Phone,
		ShareCode:    crd.Code,
	})
	if err != nil {
		return errors.Wrap(err, "failed to encode pass request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/passes", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build pass request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "pass provider unreachable")
	}
	defer resp.Body.Close()

	c.log.Debugw("pass provider responded",
		logger.FieldCardID, crd.ID,
		logger.FieldStatus, resp.StatusCode,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	return errors.New(providerMessage(resp))
}

// providerMessage extracts a human-readable failure from the provider
// response, falling back to the HTTP status
func providerMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(raw) > 0 {
		var pe passError
		if json.Unmarshal(raw, &pe) == nil && pe.Message != "" {
			return pe.Message
		}
	}
	return "pass provider returned " + resp.Status
}
