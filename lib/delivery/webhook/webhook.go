package webhook

import (
	"context"
	"fmt"
	"time"

	"shortwatch-backend/lib/dispatch"
	"shortwatch-backend/lib/restyutil"

	"github.com/go-resty/resty/v2"
)

// Delivery posts change events to a Discord-compatible webhook as embeds.
type Delivery struct {
	client *resty.Client
	url    string
}

func New(url string) Delivery {
	return Delivery{
		client: restyutil.New(time.Second * 15),
		url:    url,
	}
}

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

type payload struct {
	Embeds []embed `json:"embeds"`
}

func (d Delivery) Deliver(ctx context.Context, event dispatch.Event) error {
	description := fmt.Sprintf("%s: %s = %g", event.Kind, event.Field, event.NewValue)
	if event.Delta != nil {
		description += fmt.Sprintf(" (%+g)", *event.Delta)
	}

	res, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload{
			Embeds: []embed{{
				Title:       event.Subject,
				Description: description,
				Timestamp:   event.ObservedAt.Format(time.RFC3339),
			}},
		}).
		Post(d.url)
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("webhook returned %s", res.Status())
	}
	return nil
}
