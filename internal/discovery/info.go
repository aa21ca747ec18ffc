package discovery

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
)

// ErrPayloadUnparseable is returned when an announcement does not describe a usable instance
var ErrPayloadUnparseable = errors.New("discovery payload unparseable")

// Info describes one Home Assistant instance
type Info struct {
	LocationName        string `mapstructure:"location_name" json:"location_name"`
	BaseURL             string `mapstructure:"base_url" json:"base_url"`
	Version             string `mapstructure:"version" json:"version,omitempty"`
	RequiresAPIPassword bool   `mapstructure:"requires_api_password" json:"requires_api_password"`
	UUID                string `mapstructure:"uuid" json:"uuid,omitempty"`
	InternalURL         string `mapstructure:"internal_url" json:"internal_url,omitempty"`
	ExternalURL         string `mapstructure:"external_url" json:"external_url,omitempty"`

	// Addressing taken from the announcement itself
	Instance  string   `mapstructure:"-" json:"instance,omitempty"`
	Host      string   `mapstructure:"-" json:"host,omitempty"`
	Port      int      `mapstructure:"-" json:"port,omitempty"`
	Addresses []string `mapstructure:"-" json:"addresses,omitempty"`
}

// DecodeInfo decodes announcement attributes or a discovery_info document into an Info.
// input is usually a map[string]string (TXT records) or a map[string]any (JSON).
// Unknown keys are ignored. Errors wrap ErrPayloadUnparseable.
func DecodeInfo(input any) (Info, error) {
	var info Info

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &info,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Info{}, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrPayloadUnparseable, err)
	}
	if err := info.validate(); err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrPayloadUnparseable, err)
	}
	return info, nil
}

func (i *Info) validate() error {
	if i.LocationName == "" {
		return errors.New("location_name is required")
	}
	if i.BaseURL == "" {
		return errors.New("base_url is required")
	}
	u, err := url.Parse(i.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http or https URL, got %q", i.BaseURL)
	}
	return nil
}

// infoFromEvent decodes a found event and fills in the announcement addressing
func infoFromEvent(ev Event) (Info, error) {
	info, err := DecodeInfo(ev.Attributes)
	if err != nil {
		return Info{}, err
	}
	info.Instance = ev.Instance
	info.Host = ev.Host
	info.Port = ev.Port
	info.Addresses = append([]string(nil), ev.Addresses...)
	return info, nil
}

// payload converts an event into the diagnostic payload reported for unparseable announcements
func payload(ev Event) map[string]any {
	out := make(map[string]any, len(ev.Attributes)+3)
	for k, v := range ev.Attributes {
		out[k] = v
	}
	out["name"] = ev.Instance
	if ev.Host != "" {
		out["host"] = ev.Host
	}
	if ev.Port != 0 {
		out["port"] = strconv.Itoa(ev.Port)
	}
	return out
}
