package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/padeliga/matchday/models"
)

// CourtSlot is one allocatable (court, time) pair for a target date.
type CourtSlot struct {
	Court *models.Court
	Time  time.Time
}

// BuildSlotSequence produces the ordered pool of court slots for a date.
// Iteration is slots outer, courts inner, so consecutive groups land on
// different courts at the same time (round-robin) instead of exhausting one
// court before moving to the next. A pair is included only if the court
// actually offers that slot. Courts are expected to be pre-filtered for the
// date's weekday.
func BuildSlotSequence(courts []*models.Court, canonicalSlots []string, date time.Time) []CourtSlot {
	sequence := make([]CourtSlot, 0, len(courts)*len(canonicalSlots))
	for _, slot := range canonicalSlots {
		at, err := slotTime(date, slot)
		if err != nil {
			continue
		}
		for _, court := range courts {
			if court.OffersSlot(slot) {
				sequence = append(sequence, CourtSlot{Court: court, Time: at})
			}
		}
	}
	return sequence
}

// CanonicalSlots returns the ordered union of the slots offered by the given
// courts.
func CanonicalSlots(courts []*models.Court) []string {
	seen := make(map[string]bool)
	slots := make([]string, 0)
	for _, court := range courts {
		for _, s := range court.Slots {
			if !seen[s] {
				seen[s] = true
				slots = append(slots, s)
			}
		}
	}
	sort.Strings(slots)
	return slots
}

func slotTime(date time.Time, slot string) (time.Time, error) {
	t, err := time.Parse("15:04", slot)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid slot %q: %w", slot, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}
