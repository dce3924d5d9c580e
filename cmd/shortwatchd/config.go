package main

import (
	"time"

	configsqlite "shortwatch-backend/lib/configutil/sqlite"
	deliverysmtp "shortwatch-backend/lib/delivery/smtp"
)

type DatasetConfig struct {
	Enabled             bool     `json:"enabled"`
	PollIntervalSeconds int      `json:"poll_interval_seconds"`
	BackoffBaseSeconds  int      `json:"backoff_base_seconds"`
	BackoffMaxSeconds   int      `json:"backoff_max_seconds"`
	FetchTimeoutSeconds int      `json:"fetch_timeout_seconds"`
	Tracked             []string `json:"tracked"`
	MatchSubstring      bool     `json:"match_substring"`

	// optional schema overrides
	Tolerance   *float64 `json:"tolerance"`
	RecordDrops *bool    `json:"record_drops"`
}

func (c DatasetConfig) pollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c DatasetConfig) backoffBase() time.Duration {
	return time.Duration(c.BackoffBaseSeconds) * time.Second
}

func (c DatasetConfig) backoffMax() time.Duration {
	return time.Duration(c.BackoffMaxSeconds) * time.Second
}

func (c DatasetConfig) fetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

type DeliveryConfig struct {
	WebhookUrl string               `json:"webhook_url"`
	Smtp       *deliverysmtp.Config `json:"smtp"`
}

type Config struct {
	Database   configsqlite.Struct `json:"database"`
	MarkersDir string              `json:"markers_dir"`
	Delivery   DeliveryConfig      `json:"delivery"`

	ShortInterest DatasetConfig `json:"shortinterest"`
	Storefront    DatasetConfig `json:"storefront"`
}
