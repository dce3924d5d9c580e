package main

import (
	"context"
	"log/slog"

	"shortwatch-backend/lib/configutil"
	deliverysmtp "shortwatch-backend/lib/delivery/smtp"
	"shortwatch-backend/lib/delivery/webhook"
	"shortwatch-backend/lib/dispatch"
	"shortwatch-backend/lib/markerstore"
	"shortwatch-backend/lib/scheduler"
	"shortwatch-backend/lib/serviceutil"
	"shortwatch-backend/lib/snapshot"
	"shortwatch-backend/lib/snapshotstore"
	"shortwatch-backend/lib/telemetry"
	"shortwatch-backend/services/shortinterest"
	"shortwatch-backend/services/storefront"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.InitSlog(false)

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	db, err := config.Database.OpenDB(snapshotstore.Schema)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}
	store := snapshotstore.NewStore(db)

	markers, err := markerstore.Open(config.MarkersDir)
	if err != nil {
		serviceutil.Fatal("failed to open marker store", err)
	}
	defer markers.Close()

	t, err := telemetry.SetupFromEnv(ctx, "shortwatchd")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	delivery := newDelivery(config.Delivery)

	datasets := []struct {
		schema  snapshot.Schema
		fetcher scheduler.Fetcher
		config  DatasetConfig
	}{
		{shortinterest.Schema(), shortinterest.NewFetcher(), config.ShortInterest},
		{storefront.Schema(), storefront.NewFetcher(), config.Storefront},
	}

	running := 0
	for _, d := range datasets {
		if !d.config.Enabled {
			continue
		}

		schema := d.schema
		if d.config.Tolerance != nil {
			schema.Tolerance = *d.config.Tolerance
		}
		if d.config.RecordDrops != nil {
			schema.RecordDrops = *d.config.RecordDrops
		}

		loop := scheduler.New(scheduler.Options{
			Schema:   schema,
			Fetcher:  d.fetcher,
			Store:    store,
			Markers:  markers,
			Delivery: delivery,
			Notify: dispatch.Config{
				Tracked:        d.config.Tracked,
				MatchSubstring: d.config.MatchSubstring,
			},
			PollInterval: d.config.pollInterval(),
			BackoffBase:  d.config.backoffBase(),
			BackoffMax:   d.config.backoffMax(),
			FetchTimeout: d.config.fetchTimeout(),
		})

		slog.Info("starting dataset loop", "dataset", schema.Dataset)
		go loop.Run(ctx)
		running++
	}

	if running == 0 {
		slog.Warn("no datasets enabled, nothing to do")
		return
	}

	<-ctx.Done()
	slog.Info("shutting down")
}

func newDelivery(config DeliveryConfig) dispatch.Delivery {
	if config.WebhookUrl != "" {
		return webhook.New(config.WebhookUrl)
	}
	if config.Smtp != nil {
		return deliverysmtp.New(*config.Smtp)
	}
	return dispatch.LogDelivery{}
}
