package pgstore

import (
	"context"
	"fmt"
)

// DefaultAppointmentQuery checks the booking site's appointments table.
const DefaultAppointmentQuery = `SELECT EXISTS (SELECT 1 FROM appointments WHERE lower(email) = $1)`

// AppointmentOracle answers reminder.ConversionOracle from a SQL query that
// takes the normalized recipient email as $1 and returns a single boolean.
type AppointmentOracle struct {
	db    DB
	query string
}

// NewAppointmentOracle creates an oracle. An empty query uses DefaultAppointmentQuery.
func NewAppointmentOracle(db DB, query string) *AppointmentOracle {
	if query == "" {
		query = DefaultAppointmentQuery
	}
	return &AppointmentOracle{db: db, query: query}
}

// HasConverted implements reminder.ConversionOracle.
func (o *AppointmentOracle) HasConverted(ctx context.Context, recipientEmail string) (bool, error) {
	var booked bool
	if err := o.db.QueryRow(ctx, o.query, recipientEmail).Scan(&booked); err != nil {
		return false, fmt.Errorf("failed to check appointments for %s: %w", recipientEmail, err)
	}
	return booked, nil
}
