package reminder

import "context"

// ConversionOracle answers whether a recipient has already converted,
// e.g. booked an appointment.
type ConversionOracle interface {
	HasConverted(ctx context.Context, recipientEmail string) (bool, error)
}

// OracleFunc adapts a function to ConversionOracle.
type OracleFunc func(ctx context.Context, recipientEmail string) (bool, error)

func (f OracleFunc) HasConverted(ctx context.Context, recipientEmail string) (bool, error) {
	return f(ctx, recipientEmail)
}

// NeverConverted is an oracle for deployments without conversion tracking.
var NeverConverted = OracleFunc(func(context.Context, string) (bool, error) {
	return false, nil
})

// Channel identifies a delivery transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ChannelSender delivers one rendered reminder over a single transport.
type ChannelSender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to ChannelSender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
