package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDailyRun(t *testing.T) {
	s := &Scheduler{dailyHour: 9}

	beforeHour := time.Date(2026, 9, 1, 7, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC), s.nextDailyRun(beforeHour))

	exactlyAtHour := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC), s.nextDailyRun(exactlyAtHour))

	afterHour := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC), s.nextDailyRun(afterHour))
}
