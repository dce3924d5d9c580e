package smtp

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"shortwatch-backend/lib/dispatch"

	"github.com/jordan-wright/email"
)

type Config struct {
	Server      string   `json:"server"`
	Port        int      `json:"port"`
	FromAddress string   `json:"from_address"`
	Password    string   `json:"password"`
	To          []string `json:"to"`
}

// Delivery mails one plain-text message per change event.
type Delivery struct {
	config Config
}

func New(config Config) Delivery {
	return Delivery{config: config}
}

func (d Delivery) compose(event dispatch.Event) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("shortwatch <%s>", d.config.FromAddress)
	mail.To = d.config.To
	mail.Subject = fmt.Sprintf("[%s] %s %s", event.Dataset, event.Subject, event.Kind)

	body := fmt.Sprintf("%s\n\n%s = %g", event.Subject, event.Field, event.NewValue)
	if event.Delta != nil {
		body += fmt.Sprintf(" (%+g since last observation)", *event.Delta)
	}
	body += fmt.Sprintf("\nobserved at %s", event.ObservedAt.Format("2006-01-02 15:04"))
	mail.Text = []byte(body)
	return mail
}

func (d Delivery) Deliver(ctx context.Context, event dispatch.Event) error {
	mail := d.compose(event)

	addr := fmt.Sprintf("%s:%d", d.config.Server, d.config.Port)
	err := mail.Send(addr, smtp.PlainAuth("", d.config.FromAddress, d.config.Password, d.config.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		return mail.Send(addr, nil)
	}
	return err
}
