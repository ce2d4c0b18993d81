package models

import "time"

// Court is read-only to the engine: which days it operates and which
// fixed time-of-day slots it offers. Capacity is always 4 for padel.
type Court struct {
	ID       int            `json:"id" db:"id"`
	Name     string         `json:"name" db:"name"`
	Type     string         `json:"type" db:"type"` // "indoor" / "outdoor"
	Active   bool           `json:"active" db:"active"`
	Days     []time.Weekday `json:"days" db:"days"`
	Slots    []string       `json:"slots" db:"slots"` // "HH:MM", ordered
	Capacity int            `json:"capacity" db:"capacity"`
}

func (c *Court) OffersDay(day time.Weekday) bool {
	for _, d := range c.Days {
		if d == day {
			return true
		}
	}
	return false
}

func (c *Court) OffersSlot(slot string) bool {
	for _, s := range c.Slots {
		if s == slot {
			return true
		}
	}
	return false
}
