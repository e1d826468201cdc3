package watch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/shelfwatch/tracking"
	"github.com/shopspring/decimal"
)

// ChangeEvent announces a price change of a tracked item.
type ChangeEvent struct {
	ID         uuid.UUID       `json:"id"`
	Identifier string          `json:"identifier"`
	Title      string          `json:"title"`
	OldPrice   decimal.Decimal `json:"old_price"`
	NewPrice   decimal.Decimal `json:"new_price"`
	At         time.Time       `json:"at"`
}

// Notifier receives change events. Delivery failures are logged by the
// scheduler and never retried.
type Notifier interface {
	Notify(ctx context.Context, event ChangeEvent) error
}

func newChangeEvent(change *tracking.Change) ChangeEvent {
	return ChangeEvent{
		ID:         uuid.New(),
		Identifier: change.Identifier,
		Title:      change.Title,
		OldPrice:   change.OldPrice,
		NewPrice:   change.NewPrice,
		At:         change.At,
	}
}

// Dropped reports whether the price went down.
func (e ChangeEvent) Dropped() bool {
	return e.NewPrice.LessThan(e.OldPrice)
}

// PercentChange returns the relative change in percent, rounded to one
// decimal place. It is zero when the old price was zero.
func (e ChangeEvent) PercentChange() decimal.Decimal {
	if e.OldPrice.IsZero() {
		return decimal.Zero
	}
	return e.NewPrice.Sub(e.OldPrice).Div(e.OldPrice).Mul(decimal.NewFromInt(100)).Round(1)
}
