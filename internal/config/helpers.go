package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.HTTPPort))
}

// IngestSources lists the enabled background reading sources
func (c *Config) IngestSources() []string {
	var sources []string
	if c.Queue.Enabled {
		sources = append(sources, "queue:"+c.Queue.Type)
	}
	if c.MQTT.Enabled {
		sources = append(sources, "mqtt")
	}
	return sources
}

// LoadTimezone resolves the configured zone. Accepts an IANA name
// ("Europe/Lisbon") or a fixed offset ("+09:00", "-03:30"). Empty means UTC.
func (c *AnalyticsConfig) LoadTimezone() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc, nil
	}

	t, err := time.Parse("-07:00", c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", c.Timezone)
	}
	_, offset := t.Zone()
	return time.FixedZone(c.Timezone, offset), nil
}

// GetTimezone is LoadTimezone with a UTC fallback
func (c *AnalyticsConfig) GetTimezone() *time.Location {
	loc, err := c.LoadTimezone()
	if err != nil {
		return time.UTC
	}
	return loc
}
