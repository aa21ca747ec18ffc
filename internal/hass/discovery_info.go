package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/stacklok/hass-onboard/internal/discovery"
	"github.com/stacklok/hass-onboard/internal/versions"
)

// FetchDiscoveryInfo asks the server to describe itself, for addresses entered by hand
// instead of discovered on the network.
func (c *Client) FetchDiscoveryInfo(ctx context.Context) (discovery.Info, error) {
	endpoint := c.endpoint(discoveryInfoPath)

	body, err := c.api.Get(ctx, endpoint)
	if err != nil {
		return discovery.Info{}, fmt.Errorf("failed to fetch discovery info: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return discovery.Info{}, fmt.Errorf("%w: %w", discovery.ErrPayloadUnparseable, err)
	}
	// Older servers leave base_url empty when it is not configured
	if s, _ := doc["base_url"].(string); s == "" {
		doc["base_url"] = c.baseURL.String()
	}

	info, err := discovery.DecodeInfo(doc)
	if err != nil {
		return discovery.Info{}, err
	}

	info.Host = c.baseURL.Hostname()
	if port := c.baseURL.Port(); port != "" {
		info.Port, _ = strconv.Atoi(port)
	}
	return info, nil
}

// ErrUnsupportedServer is returned for servers older than versions.MinimumServerVersion
var ErrUnsupportedServer = errors.New("home assistant server version is not supported")

// CheckVersion reports ErrUnsupportedServer when info announces a version too old to
// onboard against. An empty or unparseable version is accepted.
func CheckVersion(info discovery.Info) error {
	if info.Version == "" {
		return nil
	}
	ok, err := versions.IsSupportedServer(info.Version)
	if err != nil {
		slog.Debug("Ignoring unparseable server version", "version", info.Version, "error", err)
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: %s is older than %s", ErrUnsupportedServer, info.Version, versions.MinimumServerVersion)
	}
	return nil
}
