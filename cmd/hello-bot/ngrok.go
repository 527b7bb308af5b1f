package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrNoTunnel is returned when the local ngrok agent has no https tunnel.
var ErrNoTunnel = errors.New("no https ngrok tunnel found")

type ngrokTunnels struct {
	Tunnels []struct {
		Name      string `json:"name"`
		PublicURL string `json:"public_url"`
		Proto     string `json:"proto"`
	} `json:"tunnels"`
}

// discoverNgrokURL asks the local ngrok agent API for the public https URL.
// The agent may still be starting, so connection errors are retried briefly.
func discoverNgrokURL(ctx context.Context, apiURL string) (string, error) {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = 5 * time.Second

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("create ngrok request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("query ngrok agent at %s: %w", apiURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("query ngrok agent: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ngrok response: %w", err)
	}

	var tunnels ngrokTunnels
	if err := json.Unmarshal(body, &tunnels); err != nil {
		return "", fmt.Errorf("decode ngrok response: %w", err)
	}

	for _, t := range tunnels.Tunnels {
		if t.Proto == "https" || strings.HasPrefix(t.PublicURL, "https://") {
			return strings.TrimRight(t.PublicURL, "/"), nil
		}
	}
	return "", ErrNoTunnel
}
