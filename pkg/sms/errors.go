package sms

import "errors"

var (
	ErrInvalidConfig     = errors.New("invalid sms gateway config")
	ErrInvalidMessage    = errors.New("invalid sms message")
	ErrPermanentFailure  = errors.New("sms gateway rejected the message")
	ErrTemporaryFailure  = errors.New("temporary sms gateway failure")
	ErrTimeout           = errors.New("sms gateway request timed out")
	ErrSMSDeliveryFailed = errors.New("sms delivery failed")
)
