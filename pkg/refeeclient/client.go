/**
 * @description
 * This package provides a client for the external resource provisioner, which
 * rents TRON energy and bandwidth to an address for a bounded duration. It
 * also exposes the provisioner's cost-estimation endpoint, used to size the
 * energy target for a token transfer.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package refeeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Resource kinds the provisioner rents.
const (
	ResourceEnergy    = "energy"
	ResourceBandwidth = "bandwidth"
)

// DefaultRentDuration is the rental window requested for every order; the
// polling stages are expected to finish well inside it.
const DefaultRentDuration = "1h"

// Client is a client for the resource provisioner API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new resource provisioner client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RentOrder is the provisioner's view of one rental order.
type RentOrder struct {
	ID           string  `json:"id"`
	Address      string  `json:"address"`
	Amount       int64   `json:"amount"`
	Resource     string  `json:"resource"`
	Duration     string  `json:"duration"`
	TxnHash      string  `json:"txn_hash"`
	Status       string  `json:"status"`
	Error        *string `json:"error"`
	ExpirationAt string  `json:"expiration_at"`
	CreateAt     string  `json:"create_at"`
	Cost         float64 `json:"cost"`
}

type costResponse struct {
	Cost json.Number `json:"cost"`
}

// EstimateEnergy returns the energy cost of a token transfer touching the
// given address.
func (c *Client) EstimateEnergy(ctx context.Context, address string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/functions/cost/"+address, nil)
	if err != nil {
		return 0, fmt.Errorf("build cost request: %w", err)
	}

	var resp costResponse
	if err := c.do(req, &resp); err != nil {
		return 0, fmt.Errorf("estimate energy for %s: %w", address, err)
	}
	cost, err := strconv.ParseFloat(resp.Cost.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("parse energy cost %q: %w", resp.Cost.String(), err)
	}
	return int64(cost), nil
}

// RentResource orders the given amount of a resource for the address.
func (c *Client) RentResource(ctx context.Context, address string, amount int64, resource, duration string) (*RentOrder, error) {
	payload := map[string]any{
		"address":        address,
		"amount":         amount,
		"resource":       resource,
		"duration_label": duration,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal rent order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/rent_resource/orders", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("build rent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var order RentOrder
	if err := c.do(req, &order); err != nil {
		return nil, fmt.Errorf("rent %d %s for %s: %w", amount, resource, address, err)
	}
	return &order, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-KEY", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provisioner returned status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
