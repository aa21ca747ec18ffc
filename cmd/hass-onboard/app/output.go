package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/stacklok/hass-onboard/internal/discovery"
	"github.com/stacklok/hass-onboard/internal/events"
	"github.com/stacklok/hass-onboard/internal/hass"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderInstances(w io.Writer, instances []discovery.Info) error {
	if len(instances) == 0 {
		_, err := fmt.Fprintln(w, "No Home Assistant servers found")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Name", "URL", "Version", "Host", "Port")
	for _, info := range instances {
		port := ""
		if info.Port != 0 {
			port = strconv.Itoa(info.Port)
		}
		if err := table.Append([]string{info.LocationName, info.BaseURL, info.Version, info.Host, port}); err != nil {
			return fmt.Errorf("failed to render instance: %w", err)
		}
	}
	return table.Render()
}

func renderEvents(w io.Writer, list []events.ClientEvent) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No events recorded")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Date", "Type", "Text")
	for _, ev := range list {
		if err := table.Append([]string{ev.Date.Local().Format(time.DateTime), string(ev.Type), ev.Text}); err != nil {
			return fmt.Errorf("failed to render event: %w", err)
		}
	}
	return table.Render()
}

// loginResult is what login and onboard print. The tokens themselves are never printed.
type loginResult struct {
	Server string            `json:"server"`
	Name   string            `json:"name,omitempty"`
	Token  hass.TokenSummary `json:"token"`
	Saved  bool              `json:"saved"`
}

func renderLogin(w io.Writer, res loginResult) error {
	table := tablewriter.NewWriter(w)
	table.Header("Server", "Name", "Token issuer", "Expires", "Saved")
	expires := ""
	if !res.Token.ExpiresAt.IsZero() {
		expires = res.Token.ExpiresAt.Local().Format(time.DateTime)
	}
	if err := table.Append([]string{res.Server, res.Name, res.Token.Issuer, expires, strconv.FormatBool(res.Saved)}); err != nil {
		return fmt.Errorf("failed to render login: %w", err)
	}
	return table.Render()
}
