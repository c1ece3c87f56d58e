// Package channels adapts the email and SMS transports to reminder.ChannelSender.
package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/drip/pkg/email"
	"github.com/dmitrymomot/drip/pkg/email/templates"
	"github.com/dmitrymomot/drip/pkg/reminder"
	"github.com/dmitrymomot/drip/pkg/sms"
)

// ErrTransportNil is returned when a channel is built without its transport.
var ErrTransportNil = errors.New("channel transport cannot be nil")

// EmailChannel renders the stage template and sends it as HTML email.
type EmailChannel struct {
	sender email.EmailSender
}

var _ reminder.ChannelSender = (*EmailChannel)(nil)

// NewEmailChannel wraps an email sender. Returns an error when sender is nil.
func NewEmailChannel(sender email.EmailSender) (*EmailChannel, error) {
	if sender == nil {
		return nil, ErrTransportNil
	}
	return &EmailChannel{sender: sender}, nil
}

// Send implements reminder.ChannelSender.
func (c *EmailChannel) Send(ctx context.Context, msg reminder.Message) error {
	tpl, err := templates.ForStage(msg.Stage, dataFrom(msg))
	if err != nil {
		return err
	}
	html, err := templates.Render(ctx, tpl.Body)
	if err != nil {
		return fmt.Errorf("failed to render %s email: %w", msg.Stage, err)
	}

	return c.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   msg.RecipientEmail,
		Subject:  tpl.Subject,
		BodyHTML: html,
		Tag:      string(msg.Stage),
	})
}

// SMSSender is satisfied by *sms.Client.
type SMSSender interface {
	Send(ctx context.Context, msg sms.Message) error
}

// SMSChannel sends the short stage text to the recipient's phone.
type SMSChannel struct {
	client SMSSender
}

var _ reminder.ChannelSender = (*SMSChannel)(nil)

// NewSMSChannel wraps an SMS client. Returns an error when client is nil.
func NewSMSChannel(client SMSSender) (*SMSChannel, error) {
	if client == nil {
		return nil, ErrTransportNil
	}
	return &SMSChannel{client: client}, nil
}

// Send implements reminder.ChannelSender.
func (c *SMSChannel) Send(ctx context.Context, msg reminder.Message) error {
	text, err := templates.SMSText(msg.Stage, dataFrom(msg))
	if err != nil {
		return err
	}

	return c.client.Send(ctx, sms.Message{
		To:        msg.RecipientPhone,
		Text:      text,
		Reference: msg.TaskID.String(),
	})
}

func dataFrom(msg reminder.Message) templates.Data {
	return templates.Data{
		RecipientName: msg.RecipientName,
		Payload:       msg.Payload,
	}
}
