package model

import "time"

// AlertDirection is the side of the threshold a price alert watches.
type AlertDirection string

// Alert directions.
const (
	AlertAbove AlertDirection = "above"
	AlertBelow AlertDirection = "below"
)

// PriceAlert is a user-defined one-shot threshold watch on one investment
// option. The trigger deactivates it the moment the condition is satisfied;
// it never re-fires.
type PriceAlert struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId"`
	Email       string         `json:"email,omitempty"`
	OptionID    string         `json:"optionId"`
	Direction   AlertDirection `json:"direction"`
	TargetPrice float64        `json:"targetPrice"`
	Active      bool           `json:"active"`
	TriggeredAt *time.Time     `json:"triggeredAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Triggered reports whether latestPrice satisfies the alert condition.
func (a PriceAlert) Triggered(latestPrice float64) bool {
	switch a.Direction {
	case AlertAbove:
		return latestPrice >= a.TargetPrice
	case AlertBelow:
		return latestPrice <= a.TargetPrice
	default:
		return false
	}
}
