// Package fmcsa calls the third-party carrier-data API and normalizes
// its heterogeneous response shapes into the canonical carrier record.
package fmcsa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dotfilings/dotfilings/internal/carrier/domain"
	"github.com/dotfilings/dotfilings/internal/config"
	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) domain.Fetcher {
	timeout := time.Duration(cfg.Carrier.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Client{
		baseURL: cfg.Carrier.BaseURL,
		apiKey:  cfg.Carrier.APIKey,
		client:  &http.Client{Timeout: timeout},
		log:     log.Named("carrier.fmcsa"),
	}
}

type lookupRequest struct {
	DOTNumber     string `json:"dotNumber"`
	RequestSource string `json:"requestSource"`
}

func (c *Client) Fetch(ctx context.Context, dotNumber, requestSource string) (domain.Record, error) {
	payload, err := json.Marshal(lookupRequest{DOTNumber: dotNumber, RequestSource: requestSource})
	if err != nil {
		return domain.Record{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/carriers/lookup", bytes.NewReader(payload))
	if err != nil {
		return domain.Record{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("carrier fetch failed", zap.String("dot_number", dotNumber), zap.Error(err))
		return domain.Record{}, domain.ErrUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.Record{}, domain.ErrNotFound
	case resp.StatusCode >= 500:
		c.log.Warn("carrier upstream error",
			zap.String("dot_number", dotNumber),
			zap.Int("status", resp.StatusCode),
		)
		return domain.Record{}, domain.ErrUnavailable
	case resp.StatusCode != http.StatusOK:
		return domain.Record{}, fmt.Errorf("carrier lookup status %d: %w", resp.StatusCode, domain.ErrBadUpstream)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return domain.Record{}, domain.ErrBadUpstream
	}

	record, err := Normalize(dotNumber, raw)
	if err != nil {
		c.log.Warn("carrier response failed shape check", zap.String("dot_number", dotNumber), zap.Error(err))
		return domain.Record{}, err
	}
	return record, nil
}
