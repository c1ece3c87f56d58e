package conversion

import (
	"context"

	"github.com/dmitrymomot/drip/pkg/reminder"
)

// Any combines oracles: a recipient converted if any of them says so.
// Oracles are asked in order; the first error aborts.
func Any(oracles ...reminder.ConversionOracle) reminder.ConversionOracle {
	active := make([]reminder.ConversionOracle, 0, len(oracles))
	for _, o := range oracles {
		if o != nil {
			active = append(active, o)
		}
	}

	return reminder.OracleFunc(func(ctx context.Context, email string) (bool, error) {
		for _, o := range active {
			converted, err := o.HasConverted(ctx, email)
			if err != nil {
				return false, err
			}
			if converted {
				return true, nil
			}
		}
		return false, nil
	})
}
